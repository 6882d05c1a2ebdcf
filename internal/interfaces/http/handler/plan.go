package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/apiplatform/backend/internal/application/billing"
	"github.com/apiplatform/backend/internal/interfaces/http/dto"
)

// PlanHandler serves the plan catalog. Reads are open to any authenticated
// user; writes are admin-only (enforced by route middleware).
type PlanHandler struct {
	BaseHandler
	planService *billing.PlanService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(planService *billing.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// List returns the whole catalog.
// GET /api/v1/plans
func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.planService.ListPlans(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPlanViews(plans))
}

// Get returns one plan.
// GET /api/v1/plans/:id
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	plan, err := h.planService.GetPlan(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPlanView(plan))
}

// Create adds a plan to the catalog.
// POST /api/v1/admin/plans
func (h *PlanHandler) Create(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), req.Name, req.MonthlyLimit, req.RateLimitPerMinute, req.AllowedServices)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewPlanView(plan))
}

// Update changes a plan's limits.
// PUT /api/v1/admin/plans/:id
func (h *PlanHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	plan, err := h.planService.UpdatePlan(c.Request.Context(), id, req.Name, req.MonthlyLimit, req.RateLimitPerMinute, req.AllowedServices)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPlanView(plan))
}

// Delete removes a plan that no subscription references.
// DELETE /api/v1/admin/plans/:id
func (h *PlanHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.planService.DeletePlan(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
