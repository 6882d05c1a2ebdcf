package identity

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/apiplatform/backend/internal/domain/identity"
)

// UserService handles the admin account operations.
type UserService struct {
	userRepo identity.Repository
	keyRepo  credential.Repository
	logger   *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo identity.Repository, keyRepo credential.Repository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{userRepo: userRepo, keyRepo: keyRepo, logger: logger}
}

// ListUsers returns every account.
func (s *UserService) ListUsers(ctx context.Context) ([]*identity.User, error) {
	return s.userRepo.FindAll(ctx)
}

// GetUser returns one account by id.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

// Suspend deactivates an account and revokes all of its API keys, so metered
// traffic stops immediately rather than at the next key expiry.
func (s *UserService) Suspend(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Suspend()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.keyRepo.RevokeAllForOwner(ctx, id); err != nil {
		// The account is already inactive, which the admission path checks;
		// surviving active key rows are cosmetic.
		s.logger.Error("Failed to revoke keys for suspended user",
			zap.String("user_id", id.String()),
			zap.Error(err))
	}

	return user, nil
}

// Activate re-enables an account. Revoked keys stay revoked; the user issues
// fresh ones.
func (s *UserService) Activate(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Activate()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
