package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/infrastructure/persistence/models"
)

// GormUsageEventRepository implements billing.UsageEventRepository using GORM
type GormUsageEventRepository struct {
	db *gorm.DB
}

// NewGormUsageEventRepository creates a new GormUsageEventRepository
func NewGormUsageEventRepository(db *gorm.DB) *GormUsageEventRepository {
	return &GormUsageEventRepository{db: db}
}

// Save persists a single usage event
func (r *GormUsageEventRepository) Save(ctx context.Context, event *billing.UsageEvent) error {
	model := models.UsageEventModelFromDomain(event)
	return r.db.WithContext(ctx).Create(model).Error
}

// SaveBatch persists a batch of usage events in one insert
func (r *GormUsageEventRepository) SaveBatch(ctx context.Context, events []*billing.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}
	eventModels := make([]models.UsageEventModel, len(events))
	for i, e := range events {
		eventModels[i].FromDomain(e)
	}
	return r.db.WithContext(ctx).CreateInBatches(eventModels, 500).Error
}

// FindByOwnerSince returns an owner's events at or after the cutoff, oldest first
func (r *GormUsageEventRepository) FindByOwnerSince(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]*billing.UsageEvent, error) {
	var eventModels []models.UsageEventModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND occurred_at >= ?", ownerID, since.UTC()).
		Order("occurred_at ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	return toUsageEvents(eventModels), nil
}

// FindSince returns all events at or after the cutoff, oldest first
func (r *GormUsageEventRepository) FindSince(ctx context.Context, since time.Time) ([]*billing.UsageEvent, error) {
	var eventModels []models.UsageEventModel
	if err := r.db.WithContext(ctx).
		Where("occurred_at >= ?", since.UTC()).
		Order("occurred_at ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	return toUsageEvents(eventModels), nil
}

// DeleteBefore prunes events older than the cutoff and reports how many went.
func (r *GormUsageEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff.UTC()).
		Delete(&models.UsageEventModel{})
	return result.RowsAffected, result.Error
}

func toUsageEvents(eventModels []models.UsageEventModel) []*billing.UsageEvent {
	events := make([]*billing.UsageEvent, len(eventModels))
	for i := range eventModels {
		events[i] = eventModels[i].ToDomain()
	}
	return events
}
