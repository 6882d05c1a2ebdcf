package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/apiplatform/backend/internal/application/keys"
	"github.com/apiplatform/backend/internal/domain/identity"
	"github.com/apiplatform/backend/internal/interfaces/http/dto"
)

// APIKeyHandler serves key issuance, listing, revocation and rotation.
type APIKeyHandler struct {
	BaseHandler
	keyService *keys.Service
}

// NewAPIKeyHandler creates a new APIKeyHandler
func NewAPIKeyHandler(keyService *keys.Service) *APIKeyHandler {
	return &APIKeyHandler{keyService: keyService}
}

// Issue mints a new key. The response is the only place the full key appears.
// POST /api/v1/keys
func (h *APIKeyHandler) Issue(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var req dto.IssueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	issued, err := h.keyService.IssueKey(c.Request.Context(), claims.UserID, req.Name, req.AllowedServices, req.ExpiresInDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.NewIssuedKeyView(issued))
}

// List returns the caller's keys.
// GET /api/v1/keys
func (h *APIKeyHandler) List(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	keyList, err := h.keyService.ListKeys(c.Request.Context(), claims.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewAPIKeyViews(keyList))
}

// Revoke deactivates a key. Admins may revoke any key, clients only their own.
// DELETE /api/v1/keys/:id
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	admin := claims.Role == identity.RoleAdmin
	if err := h.keyService.RevokeKey(c.Request.Context(), id, claims.UserID, admin); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Rotate replaces a key with fresh material and returns the new full key once.
// POST /api/v1/keys/:id/rotate
func (h *APIKeyHandler) Rotate(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	issued, err := h.keyService.RotateKey(c.Request.Context(), id, claims.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewIssuedKeyView(issued))
}
