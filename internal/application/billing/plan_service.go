package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/apiplatform/backend/internal/domain/billing"
)

// PlanService manages the plan catalog.
type PlanService struct {
	planRepo billing.PlanRepository
}

// NewPlanService creates a new PlanService
func NewPlanService(planRepo billing.PlanRepository) *PlanService {
	return &PlanService{planRepo: planRepo}
}

// CreatePlan validates and persists a new plan.
func (s *PlanService) CreatePlan(ctx context.Context, name string, monthlyLimit, rateLimitPerMinute int64, allowedServices []string) (*billing.Plan, error) {
	plan, err := billing.NewPlan(name, monthlyLimit, rateLimitPerMinute, allowedServices)
	if err != nil {
		return nil, err
	}
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan changes a plan's limits. Existing subscriptions keep their
// counters; the new limits bite on the next reservation.
func (s *PlanService) UpdatePlan(ctx context.Context, id uuid.UUID, name string, monthlyLimit, rateLimitPerMinute int64, allowedServices []string) (*billing.Plan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := billing.NewPlan(name, monthlyLimit, rateLimitPerMinute, allowedServices)
	if err != nil {
		return nil, err
	}
	plan.Name = updated.Name
	plan.MonthlyLimit = updated.MonthlyLimit
	plan.RateLimitPerMinute = updated.RateLimitPerMinute
	plan.AllowedServices = updated.AllowedServices

	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlan returns a plan by id.
func (s *PlanService) GetPlan(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	return s.planRepo.FindByID(ctx, id)
}

// ListPlans returns the whole catalog.
func (s *PlanService) ListPlans(ctx context.Context) ([]*billing.Plan, error) {
	return s.planRepo.FindAll(ctx)
}

// DeletePlan removes a plan that no subscription references.
func (s *PlanService) DeletePlan(ctx context.Context, id uuid.UUID) error {
	return s.planRepo.Delete(ctx, id)
}
