package credential

import (
	"context"
	"time"

	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// APIKey is the stored form of an issued credential. The full key never appears
// here: KeyDigest is its only persisted representation, and Prefix exists purely
// so users can tell their keys apart in a dashboard.
//
// Keys are never deleted, only deactivated, so the audit trail of every
// credential ever issued survives revocation and rotation.
type APIKey struct {
	shared.BaseEntity
	OwnerID         uuid.UUID
	Name            string
	Prefix          string
	KeyDigest       string
	AllowedServices []string
	IsActive        bool
	ExpiresAt       *time.Time
}

// NewAPIKey builds the stored record for a freshly issued key.
func NewAPIKey(ownerID uuid.UUID, name string, issued IssuedKey, allowedServices []string, expiresAt *time.Time) (*APIKey, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Key name cannot be empty")
	}
	if allowedServices == nil {
		allowedServices = []string{}
	}

	return &APIKey{
		BaseEntity:      shared.NewBaseEntity(),
		OwnerID:         ownerID,
		Name:            name,
		Prefix:          issued.Prefix,
		KeyDigest:       issued.Digest,
		AllowedServices: allowedServices,
		IsActive:        true,
		ExpiresAt:       expiresAt,
	}, nil
}

// IsUsable reports whether the key can authenticate a request at the given time.
func (k *APIKey) IsUsable(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}

// AllowsService reports whether the key may call the named service.
// An empty allowed-service set means the key may call anything.
func (k *APIKey) AllowsService(service string) bool {
	if len(k.AllowedServices) == 0 {
		return true
	}
	for _, s := range k.AllowedServices {
		if s == service {
			return true
		}
	}
	return false
}

// Revoke deactivates the key. Revoking an already revoked key is a no-op.
func (k *APIKey) Revoke() {
	k.IsActive = false
	k.UpdatedAt = time.Now().UTC()
}

// Successor creates the replacement record for a rotation, copying everything
// but the credential material from the old key.
func (k *APIKey) Successor(issued IssuedKey) *APIKey {
	next := &APIKey{
		BaseEntity:      shared.NewBaseEntity(),
		OwnerID:         k.OwnerID,
		Name:            k.Name,
		Prefix:          issued.Prefix,
		KeyDigest:       issued.Digest,
		AllowedServices: append([]string(nil), k.AllowedServices...),
		IsActive:        true,
		ExpiresAt:       k.ExpiresAt,
	}
	return next
}

// Repository is the persistence port for API keys. The digest carries a unique
// index; Save surfaces shared.ErrIntegrityViolation on a digest collision.
type Repository interface {
	Save(ctx context.Context, key *APIKey) error
	FindByDigest(ctx context.Context, digest string) (*APIKey, error)
	FindByID(ctx context.Context, id uuid.UUID) (*APIKey, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*APIKey, error)
	FindAll(ctx context.Context) ([]*APIKey, error)
	// Revoke sets is_active=false. ownerID filters the update unless admin is
	// set; revoking an inactive key succeeds (idempotent).
	Revoke(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, admin bool) error
	// RevokeAllForOwner deactivates every key belonging to the owner.
	RevokeAllForOwner(ctx context.Context, ownerID uuid.UUID) error
	// Rotate deactivates the old key and persists its successor in one
	// transaction, so readers never observe both active or both inactive.
	Rotate(ctx context.Context, oldID uuid.UUID, ownerID uuid.UUID, successor *APIKey) error
}
