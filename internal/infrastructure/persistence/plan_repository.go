package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/infrastructure/persistence/models"
)

// GormPlanRepository implements billing.PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// Save persists a new plan. Plan names are unique.
func (r *GormPlanRepository) Save(ctx context.Context, plan *billing.Plan) error {
	model := models.PlanModelFromDomain(plan)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists changes to an existing plan. Existing subscriptions keep
// their counters; the new limits apply on the next reservation.
func (r *GormPlanRepository) Update(ctx context.Context, plan *billing.Plan) error {
	model := models.PlanModelFromDomain(plan)
	result := r.db.WithContext(ctx).Model(&models.PlanModel{}).
		Where("id = ?", plan.ID).
		Updates(map[string]interface{}{
			"name":                  model.Name,
			"monthly_limit":         model.MonthlyLimit,
			"rate_limit_per_minute": model.RateLimitPerMinute,
			"allowed_services":      model.AllowedServicesJSON,
			"updated_at":            model.UpdatedAt,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a plan by its ID
func (r *GormPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every plan
func (r *GormPlanRepository) FindAll(ctx context.Context) ([]*billing.Plan, error) {
	var planModels []models.PlanModel
	if err := r.db.WithContext(ctx).
		Order("monthly_limit ASC").
		Find(&planModels).Error; err != nil {
		return nil, err
	}

	plans := make([]*billing.Plan, len(planModels))
	for i := range planModels {
		plans[i] = planModels[i].ToDomain()
	}
	return plans, nil
}

// Delete removes a plan. Fails when any subscription still references it.
func (r *GormPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SubscriptionModel{}).
			Where("plan_id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.NewDomainError("PLAN_IN_USE", "Plan has active subscriptions")
		}

		result := tx.Delete(&models.PlanModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}
