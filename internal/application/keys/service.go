// Package keys manages the lifecycle of API keys: issuance, listing,
// revocation and rotation.
package keys

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/apiplatform/backend/internal/domain/shared"
)

// issueRetries bounds retries on digest collision. With 28 random bytes a
// collision means a broken random source, not bad luck, but the insert path
// still refuses to overwrite an existing digest.
const issueRetries = 3

// IssuedKey pairs the stored record with the full key material. The full key
// exists only in this response; afterwards the digest is all that remains.
type IssuedKey struct {
	Key     *credential.APIKey
	FullKey string
}

// Service manages API keys for their owners.
type Service struct {
	keyRepo credential.Repository
}

// NewService creates a new key service
func NewService(keyRepo credential.Repository) *Service {
	return &Service{keyRepo: keyRepo}
}

// IssueKey mints a new key for the owner. expiresInDays of zero means the key
// never expires.
func (s *Service) IssueKey(ctx context.Context, ownerID uuid.UUID, name string, allowedServices []string, expiresInDays int) (*IssuedKey, error) {
	if expiresInDays < 0 {
		return nil, shared.NewDomainError("INVALID_EXPIRY", "Expiry days cannot be negative")
	}

	var expiresAt *time.Time
	if expiresInDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, expiresInDays)
		expiresAt = &t
	}

	for attempt := 0; attempt < issueRetries; attempt++ {
		issued, err := credential.Issue()
		if err != nil {
			return nil, err
		}

		key, err := credential.NewAPIKey(ownerID, name, issued, allowedServices, expiresAt)
		if err != nil {
			return nil, err
		}

		if err := s.keyRepo.Save(ctx, key); err != nil {
			if errors.Is(err, shared.ErrIntegrityViolation) {
				continue
			}
			return nil, err
		}
		return &IssuedKey{Key: key, FullKey: issued.FullKey}, nil
	}
	return nil, shared.ErrIntegrityViolation
}

// ListKeys returns the owner's keys. The full key material is gone; only
// prefixes identify them.
func (s *Service) ListKeys(ctx context.Context, ownerID uuid.UUID) ([]*credential.APIKey, error) {
	return s.keyRepo.FindByOwner(ctx, ownerID)
}

// ListAllKeys returns every key, for admin views.
func (s *Service) ListAllKeys(ctx context.Context) ([]*credential.APIKey, error) {
	return s.keyRepo.FindAll(ctx)
}

// RevokeKey deactivates a key. Non-admins may only revoke their own.
func (s *Service) RevokeKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, admin bool) error {
	return s.keyRepo.Revoke(ctx, id, ownerID, admin)
}

// RotateKey replaces a key with fresh material, keeping its name, service
// scope and expiry. The old key dies and the successor is born atomically.
func (s *Service) RotateKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*IssuedKey, error) {
	old, err := s.keyRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.OwnerID != ownerID {
		return nil, shared.ErrNotFound
	}
	if !old.IsActive {
		return nil, shared.ErrCredentialInactive
	}

	issued, err := credential.Issue()
	if err != nil {
		return nil, err
	}
	successor := old.Successor(issued)

	if err := s.keyRepo.Rotate(ctx, id, ownerID, successor); err != nil {
		return nil, err
	}
	return &IssuedKey{Key: successor, FullKey: issued.FullKey}, nil
}
