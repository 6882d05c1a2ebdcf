// Package identity holds the application services for dashboard accounts.
package identity

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/apiplatform/backend/internal/domain/identity"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/infrastructure/auth"
)

// Session is a successful login: the user plus a signed access token.
type Session struct {
	User      *identity.User
	Token     string
	ExpiresAt time.Time
}

// AuthService handles registration and dashboard login.
type AuthService struct {
	userRepo identity.Repository
	jwt      *auth.JWTService
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo identity.Repository, jwt *auth.JWTService) *AuthService {
	return &AuthService{userRepo: userRepo, jwt: jwt}
}

// Register creates a client account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string) (*identity.User, error) {
	if len(password) < 8 {
		return nil, shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := identity.NewUser(email, string(hash), identity.RoleClient)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password and issues an access token. Wrong email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidLoginDetails
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidLoginDetails
	}

	if !user.IsActive {
		return nil, shared.ErrUserSuspended
	}

	token, expiresAt, err := s.jwt.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// CurrentUser loads the account behind a validated token's subject.
func (s *AuthService) CurrentUser(ctx context.Context, claims *auth.Claims) (*identity.User, error) {
	return s.userRepo.FindByID(ctx, claims.UserID)
}
