package models

import (
	"time"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/google/uuid"
)

// PlanModel is the persistence model for the Plan domain entity.
type PlanModel struct {
	BaseModel
	Name                string `gorm:"type:varchar(100);not null;uniqueIndex"`
	MonthlyLimit        int64  `gorm:"not null"`
	RateLimitPerMinute  int64  `gorm:"not null;default:0"`
	AllowedServicesJSON string `gorm:"column:allowed_services;type:text;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (PlanModel) TableName() string {
	return "plans"
}

// ToDomain converts the persistence model to a domain Plan entity.
func (m *PlanModel) ToDomain() *billing.Plan {
	return &billing.Plan{
		BaseEntity:         m.BaseModel.ToDomain(),
		Name:               m.Name,
		MonthlyLimit:       m.MonthlyLimit,
		RateLimitPerMinute: m.RateLimitPerMinute,
		AllowedServices:    unmarshalStringSlice(m.AllowedServicesJSON),
	}
}

// FromDomain populates the persistence model from a domain Plan entity.
func (m *PlanModel) FromDomain(p *billing.Plan) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Name = p.Name
	m.MonthlyLimit = p.MonthlyLimit
	m.RateLimitPerMinute = p.RateLimitPerMinute
	m.AllowedServicesJSON = marshalStringSlice(p.AllowedServices)
}

// PlanModelFromDomain creates a new persistence model from a domain Plan entity.
func PlanModelFromDomain(p *billing.Plan) *PlanModel {
	m := &PlanModel{}
	m.FromDomain(p)
	return m
}

// SubscriptionModel is the persistence model for the Subscription domain
// entity. The unique index on owner_id enforces one ledger per owner.
type SubscriptionModel struct {
	BaseModel
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	PlanID     uuid.UUID `gorm:"type:uuid;not null;index"`
	UsageCount int64     `gorm:"not null;default:0"`
	ResetAt    time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the persistence model to a domain Subscription entity.
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		BaseEntity: m.BaseModel.ToDomain(),
		OwnerID:    m.OwnerID,
		PlanID:     m.PlanID,
		UsageCount: m.UsageCount,
		ResetAt:    m.ResetAt,
	}
}

// FromDomain populates the persistence model from a domain Subscription entity.
func (m *SubscriptionModel) FromDomain(s *billing.Subscription) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.OwnerID = s.OwnerID
	m.PlanID = s.PlanID
	m.UsageCount = s.UsageCount
	m.ResetAt = s.ResetAt
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription entity.
func SubscriptionModelFromDomain(s *billing.Subscription) *SubscriptionModel {
	m := &SubscriptionModel{}
	m.FromDomain(s)
	return m
}

// UsageEventModel is the persistence model for the UsageEvent domain entity.
type UsageEventModel struct {
	BaseModel
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_owner_time"`
	KeyID      uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_key_time"`
	Endpoint   string    `gorm:"type:varchar(255);not null"`
	StatusCode int       `gorm:"not null"`
	OccurredAt time.Time `gorm:"not null;index:idx_usage_owner_time;index:idx_usage_key_time"`
}

// TableName returns the table name for GORM
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToDomain converts the persistence model to a domain UsageEvent entity.
func (m *UsageEventModel) ToDomain() *billing.UsageEvent {
	return &billing.UsageEvent{
		BaseEntity: m.BaseModel.ToDomain(),
		OwnerID:    m.OwnerID,
		KeyID:      m.KeyID,
		Endpoint:   m.Endpoint,
		StatusCode: m.StatusCode,
		OccurredAt: m.OccurredAt,
	}
}

// FromDomain populates the persistence model from a domain UsageEvent entity.
func (m *UsageEventModel) FromDomain(e *billing.UsageEvent) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.OwnerID = e.OwnerID
	m.KeyID = e.KeyID
	m.Endpoint = e.Endpoint
	m.StatusCode = e.StatusCode
	m.OccurredAt = e.OccurredAt
}

// UsageEventModelFromDomain creates a new persistence model from a domain UsageEvent entity.
func UsageEventModelFromDomain(e *billing.UsageEvent) *UsageEventModel {
	m := &UsageEventModel{}
	m.FromDomain(e)
	return m
}
