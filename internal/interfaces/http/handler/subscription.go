package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/apiplatform/backend/internal/application/billing"
	"github.com/apiplatform/backend/internal/interfaces/http/dto"
)

// SubscriptionHandler serves plan assignment and quota status reads.
type SubscriptionHandler struct {
	BaseHandler
	subscriptionService *billing.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subscriptionService *billing.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

// Assign gives an account a plan. Re-assigning resets the counter and
// boundary.
// POST /api/v1/admin/subscriptions
func (h *SubscriptionHandler) Assign(c *gin.Context) {
	var req dto.AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	view, err := h.subscriptionService.Subscribe(c.Request.Context(), req.UserID, req.PlanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSubscriptionStatusView(view))
}

// Status returns the caller's subscription with the current quota state.
// GET /api/v1/subscriptions/me
func (h *SubscriptionHandler) Status(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	view, err := h.subscriptionService.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSubscriptionStatusView(view))
}

// ListAll returns every subscription, for admin views.
// GET /api/v1/admin/subscriptions
func (h *SubscriptionHandler) ListAll(c *gin.Context) {
	views, err := h.subscriptionService.ListAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSubscriptionStatusViews(views))
}
