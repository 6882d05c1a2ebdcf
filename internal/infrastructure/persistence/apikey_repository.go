package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/infrastructure/persistence/models"
)

// GormAPIKeyRepository implements credential.Repository using GORM
type GormAPIKeyRepository struct {
	db *gorm.DB
}

// NewGormAPIKeyRepository creates a new GormAPIKeyRepository
func NewGormAPIKeyRepository(db *gorm.DB) *GormAPIKeyRepository {
	return &GormAPIKeyRepository{db: db}
}

// Save persists a new API key. A duplicate digest surfaces as
// shared.ErrIntegrityViolation so issuance can retry with fresh material.
func (r *GormAPIKeyRepository) Save(ctx context.Context, key *credential.APIKey) error {
	model := models.APIKeyModelFromDomain(key)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrIntegrityViolation
		}
		return err
	}
	return nil
}

// FindByDigest looks up a key by the digest of its presented form.
func (r *GormAPIKeyRepository) FindByDigest(ctx context.Context, digest string) (*credential.APIKey, error) {
	var model models.APIKeyModel
	if err := r.db.WithContext(ctx).
		Where("key_digest = ?", digest).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a key by its ID
func (r *GormAPIKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*credential.APIKey, error) {
	var model models.APIKeyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOwner returns every key belonging to the owner, newest first
func (r *GormAPIKeyRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*credential.APIKey, error) {
	var keyModels []models.APIKeyModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&keyModels).Error; err != nil {
		return nil, err
	}
	return toAPIKeys(keyModels), nil
}

// FindAll returns every key in the directory, newest first
func (r *GormAPIKeyRepository) FindAll(ctx context.Context) ([]*credential.APIKey, error) {
	var keyModels []models.APIKeyModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&keyModels).Error; err != nil {
		return nil, err
	}
	return toAPIKeys(keyModels), nil
}

// Revoke deactivates a key. The owner filter keeps one user from revoking
// another's key; admins skip it. Revoking an already inactive key succeeds.
func (r *GormAPIKeyRepository) Revoke(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, admin bool) error {
	query := r.db.WithContext(ctx).Model(&models.APIKeyModel{}).Where("id = ?", id)
	if !admin {
		query = query.Where("owner_id = ?", ownerID)
	}

	result := query.Updates(map[string]interface{}{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RevokeAllForOwner deactivates every key belonging to the owner.
func (r *GormAPIKeyRepository) RevokeAllForOwner(ctx context.Context, ownerID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.APIKeyModel{}).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}

// Rotate deactivates the old key and inserts its successor in one transaction.
func (r *GormAPIKeyRepository) Rotate(ctx context.Context, oldID uuid.UUID, ownerID uuid.UUID, successor *credential.APIKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.APIKeyModel{}).
			Where("id = ? AND owner_id = ?", oldID, ownerID).
			Updates(map[string]interface{}{
				"is_active":  false,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}

		model := models.APIKeyModelFromDomain(successor)
		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrIntegrityViolation
			}
			return err
		}
		return nil
	})
}

func toAPIKeys(keyModels []models.APIKeyModel) []*credential.APIKey {
	keys := make([]*credential.APIKey, len(keyModels))
	for i := range keyModels {
		keys[i] = keyModels[i].ToDomain()
	}
	return keys
}
