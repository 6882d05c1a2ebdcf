package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/infrastructure/persistence/models"
)

// GormSubscriptionRepository implements billing.SubscriptionRepository using
// GORM. The reservation methods are single conditional UPDATEs; the database's
// row-level atomicity is what keeps concurrent reservations from overshooting
// the limit, so no method here ever does a read-modify-write on usage_count.
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Save persists a new subscription. One per owner.
func (r *GormSubscriptionRepository) Save(ctx context.Context, sub *billing.Subscription) error {
	model := models.SubscriptionModelFromDomain(sub)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByOwner finds the subscription for an owner
func (r *GormSubscriptionRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every subscription
func (r *GormSubscriptionRepository) FindAll(ctx context.Context) ([]*billing.Subscription, error) {
	var subModels []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&subModels).Error; err != nil {
		return nil, err
	}
	return toSubscriptions(subModels), nil
}

// FindExpired returns subscriptions whose period boundary has passed.
func (r *GormSubscriptionRepository) FindExpired(ctx context.Context, now time.Time) ([]*billing.Subscription, error) {
	var subModels []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("reset_at <= ?", now.UTC()).
		Find(&subModels).Error; err != nil {
		return nil, err
	}
	return toSubscriptions(subModels), nil
}

// AssignPlan re-points an owner's subscription at a plan, resetting the
// counter and boundary in the same update.
func (r *GormSubscriptionRepository) AssignPlan(ctx context.Context, ownerID, planID uuid.UUID, resetAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.SubscriptionModel{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]interface{}{
			"plan_id":     planID,
			"usage_count": 0,
			"reset_at":    resetAt.UTC(),
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TryReserve increments the counter iff it is below limit and the period is
// still open. Returns false with no error when the condition did not hold;
// the caller re-reads the row to classify the miss.
func (r *GormSubscriptionRepository) TryReserve(ctx context.Context, ownerID uuid.UUID, limit int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.SubscriptionModel{}).
		Where("owner_id = ? AND usage_count < ? AND reset_at > ?", ownerID, limit, now.UTC()).
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  now.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RollOverAndReserve handles an expired period in one conditional update: iff
// reset_at <= now, the counter becomes firstUsage and the boundary advances.
// When two requests race across the boundary only one update matches; the
// loser retries through TryReserve against the fresh period.
func (r *GormSubscriptionRepository) RollOverAndReserve(ctx context.Context, ownerID uuid.UUID, newResetAt time.Time, now time.Time, firstUsage int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.SubscriptionModel{}).
		Where("owner_id = ? AND reset_at <= ?", ownerID, now.UTC()).
		Updates(map[string]interface{}{
			"usage_count": firstUsage,
			"reset_at":    newResetAt.UTC(),
			"updated_at":  now.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release undoes one reservation without ever driving the counter negative.
func (r *GormSubscriptionRepository) Release(ctx context.Context, ownerID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.SubscriptionModel{}).
		Where("owner_id = ? AND usage_count > 0", ownerID).
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count - 1"),
			"updated_at":  time.Now().UTC(),
		}).Error
}

func toSubscriptions(subModels []models.SubscriptionModel) []*billing.Subscription {
	subs := make([]*billing.Subscription, len(subModels))
	for i := range subModels {
		subs[i] = subModels[i].ToDomain()
	}
	return subs
}
