package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/apiplatform/backend/internal/application/identity"
	"github.com/apiplatform/backend/internal/application/keys"
	"github.com/apiplatform/backend/internal/interfaces/http/dto"
)

// AdminHandler serves the operator endpoints: account management and the
// global key inventory.
type AdminHandler struct {
	BaseHandler
	userService *identity.UserService
	keyService  *keys.Service
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(userService *identity.UserService, keyService *keys.Service) *AdminHandler {
	return &AdminHandler{userService: userService, keyService: keyService}
}

// ListUsers returns every account.
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewUserViews(users))
}

// GetUser returns one account.
// GET /api/v1/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewUserView(user))
}

// SuspendUser deactivates an account and revokes its keys, stopping metered
// traffic immediately.
// POST /api/v1/admin/users/:id/suspend
func (h *AdminHandler) SuspendUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, err := h.userService.Suspend(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewUserView(user))
}

// ActivateUser re-enables a suspended account. Revoked keys stay revoked.
// POST /api/v1/admin/users/:id/activate
func (h *AdminHandler) ActivateUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, err := h.userService.Activate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewUserView(user))
}

// ListAllKeys returns every key in the directory.
// GET /api/v1/admin/keys
func (h *AdminHandler) ListAllKeys(c *gin.Context) {
	keyList, err := h.keyService.ListAllKeys(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAPIKeyViews(keyList))
}
