package billing

import (
	"context"

	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Plan defines the limits a subscription grants. Updates apply prospectively:
// an existing subscription keeps its current counter and boundary, the new
// limit simply takes effect on the next reservation.
type Plan struct {
	shared.BaseEntity
	Name               string
	MonthlyLimit       int64
	RateLimitPerMinute int64
	AllowedServices    []string
}

// NewPlan creates a plan. A MonthlyLimit of zero admits nothing; a
// RateLimitPerMinute of zero disables the per-minute window for the plan.
func NewPlan(name string, monthlyLimit, rateLimitPerMinute int64, allowedServices []string) (*Plan, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan name cannot be empty")
	}
	if monthlyLimit < 0 {
		return nil, shared.NewDomainError("INVALID_LIMIT", "Monthly limit cannot be negative")
	}
	if rateLimitPerMinute < 0 {
		return nil, shared.NewDomainError("INVALID_LIMIT", "Per-minute rate limit cannot be negative")
	}
	if allowedServices == nil {
		allowedServices = []string{}
	}

	return &Plan{
		BaseEntity:         shared.NewBaseEntity(),
		Name:               name,
		MonthlyLimit:       monthlyLimit,
		RateLimitPerMinute: rateLimitPerMinute,
		AllowedServices:    allowedServices,
	}, nil
}

// AllowsService reports whether the plan admits the named service.
// An empty allowed-service set means the plan admits anything.
func (p *Plan) AllowsService(service string) bool {
	if len(p.AllowedServices) == 0 {
		return true
	}
	for _, s := range p.AllowedServices {
		if s == service {
			return true
		}
	}
	return false
}

// PlanRepository is the persistence port for plans.
type PlanRepository interface {
	Save(ctx context.Context, plan *Plan) error
	Update(ctx context.Context, plan *Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	FindAll(ctx context.Context) ([]*Plan, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
