package identity

import (
	"context"
	"time"

	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Role determines which parts of the dashboard API a user may call.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// IsValid returns true if the role is a known value
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleClient
}

// User is a dashboard account. Metered traffic never authenticates as a user
// directly; it presents an API key owned by one.
type User struct {
	shared.BaseEntity
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
}

// NewUser creates a user with an already-hashed password.
func NewUser(email, passwordHash string, role Role) (*User, error) {
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	if passwordHash == "" {
		return nil, shared.NewDomainError("INVALID_PASSWORD", "Password hash cannot be empty")
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ROLE", "Role must be admin or client")
	}

	return &User{
		BaseEntity:   shared.NewBaseEntity(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
	}, nil
}

// Suspend deactivates the account.
func (u *User) Suspend() {
	u.IsActive = false
	u.UpdatedAt = time.Now().UTC()
}

// Activate re-enables the account.
func (u *User) Activate() {
	u.IsActive = true
	u.UpdatedAt = time.Now().UTC()
}

// IsAdmin returns true for admin accounts
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Repository is the persistence port for users. Email carries a unique index.
type Repository interface {
	Save(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindAll(ctx context.Context) ([]*User, error)
}
