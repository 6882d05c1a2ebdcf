package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/apiplatform/backend/internal/application/billing"
	appkeys "github.com/apiplatform/backend/internal/application/keys"
	domainbilling "github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/apiplatform/backend/internal/domain/identity"
)

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the payload for dashboard login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// IssueKeyRequest is the payload for minting a new API key.
type IssueKeyRequest struct {
	Name            string   `json:"name" binding:"required,max=100"`
	AllowedServices []string `json:"allowed_services"`
	ExpiresInDays   int      `json:"expires_in_days" binding:"min=0"`
}

// PlanRequest is the payload for creating or updating a plan.
type PlanRequest struct {
	Name               string   `json:"name" binding:"required,max=100"`
	MonthlyLimit       int64    `json:"monthly_limit" binding:"min=0"`
	RateLimitPerMinute int64    `json:"rate_limit_per_minute" binding:"min=0"`
	AllowedServices    []string `json:"allowed_services"`
}

// AssignPlanRequest is the payload for assigning a plan to an account.
type AssignPlanRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	PlanID uuid.UUID `json:"plan_id" binding:"required"`
}

// UserView is the public shape of an account. The password hash never leaves
// the application layer.
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserView converts a user to its public shape
func NewUserView(user *identity.User) UserView {
	return UserView{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// NewUserViews converts a slice of users
func NewUserViews(users []*identity.User) []UserView {
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, NewUserView(u))
	}
	return views
}

// SessionView is a successful login response.
type SessionView struct {
	User      UserView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APIKeyView is the stored shape of a key. Only the prefix identifies it; the
// full key is shown once, at issuance or rotation, via IssuedKeyView.
type APIKeyView struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	Name            string     `json:"name"`
	Prefix          string     `json:"prefix"`
	AllowedServices []string   `json:"allowed_services"`
	IsActive        bool       `json:"is_active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewAPIKeyView converts a key to its public shape
func NewAPIKeyView(key *credential.APIKey) APIKeyView {
	return APIKeyView{
		ID:              key.ID,
		OwnerID:         key.OwnerID,
		Name:            key.Name,
		Prefix:          key.Prefix,
		AllowedServices: key.AllowedServices,
		IsActive:        key.IsActive,
		ExpiresAt:       key.ExpiresAt,
		CreatedAt:       key.CreatedAt,
	}
}

// NewAPIKeyViews converts a slice of keys
func NewAPIKeyViews(keys []*credential.APIKey) []APIKeyView {
	views := make([]APIKeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, NewAPIKeyView(k))
	}
	return views
}

// IssuedKeyView carries the full key material exactly once.
type IssuedKeyView struct {
	Key     APIKeyView `json:"key"`
	FullKey string     `json:"full_key"`
}

// NewIssuedKeyView converts an issuance result
func NewIssuedKeyView(issued *appkeys.IssuedKey) IssuedKeyView {
	return IssuedKeyView{
		Key:     NewAPIKeyView(issued.Key),
		FullKey: issued.FullKey,
	}
}

// PlanView is the public shape of a plan.
type PlanView struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	MonthlyLimit       int64     `json:"monthly_limit"`
	RateLimitPerMinute int64     `json:"rate_limit_per_minute"`
	AllowedServices    []string  `json:"allowed_services"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewPlanView converts a plan to its public shape
func NewPlanView(plan *domainbilling.Plan) PlanView {
	return PlanView{
		ID:                 plan.ID,
		Name:               plan.Name,
		MonthlyLimit:       plan.MonthlyLimit,
		RateLimitPerMinute: plan.RateLimitPerMinute,
		AllowedServices:    plan.AllowedServices,
		CreatedAt:          plan.CreatedAt,
	}
}

// NewPlanViews converts a slice of plans
func NewPlanViews(plans []*domainbilling.Plan) []PlanView {
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, NewPlanView(p))
	}
	return views
}

// SubscriptionStatusView joins a subscription with its plan and quota state.
type SubscriptionStatusView struct {
	OwnerID    uuid.UUID `json:"owner_id"`
	Plan       PlanView  `json:"plan"`
	UsageCount int64     `json:"usage_count"`
	Remaining  int64     `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
}

// NewSubscriptionStatusView converts a joined subscription view
func NewSubscriptionStatusView(view *billing.SubscriptionView) SubscriptionStatusView {
	return SubscriptionStatusView{
		OwnerID:    view.Subscription.OwnerID,
		Plan:       NewPlanView(view.Plan),
		UsageCount: view.Subscription.UsageCount,
		Remaining:  view.Remaining,
		ResetAt:    view.Subscription.ResetAt,
	}
}

// NewSubscriptionStatusViews converts a slice of joined views
func NewSubscriptionStatusViews(views []*billing.SubscriptionView) []SubscriptionStatusView {
	out := make([]SubscriptionStatusView, 0, len(views))
	for _, v := range views {
		out = append(out, NewSubscriptionStatusView(v))
	}
	return out
}
