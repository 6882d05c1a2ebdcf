package models

import (
	"time"

	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/google/uuid"
)

// APIKeyModel is the persistence model for the APIKey domain entity. The digest
// column carries the unique index that makes a collision on insert visible.
type APIKeyModel struct {
	BaseModel
	OwnerID             uuid.UUID `gorm:"type:uuid;not null;index"`
	Name                string    `gorm:"type:varchar(100);not null"`
	Prefix              string    `gorm:"type:varchar(16);not null;index"`
	KeyDigest           string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	AllowedServicesJSON string    `gorm:"column:allowed_services;type:text;not null;default:'[]'"`
	IsActive            bool      `gorm:"not null;default:true;index"`
	ExpiresAt           *time.Time
}

// TableName returns the table name for GORM
func (APIKeyModel) TableName() string {
	return "api_keys"
}

// ToDomain converts the persistence model to a domain APIKey entity.
func (m *APIKeyModel) ToDomain() *credential.APIKey {
	return &credential.APIKey{
		BaseEntity:      m.BaseModel.ToDomain(),
		OwnerID:         m.OwnerID,
		Name:            m.Name,
		Prefix:          m.Prefix,
		KeyDigest:       m.KeyDigest,
		AllowedServices: unmarshalStringSlice(m.AllowedServicesJSON),
		IsActive:        m.IsActive,
		ExpiresAt:       m.ExpiresAt,
	}
}

// FromDomain populates the persistence model from a domain APIKey entity.
func (m *APIKeyModel) FromDomain(k *credential.APIKey) {
	m.FromDomainBaseEntity(k.BaseEntity)
	m.OwnerID = k.OwnerID
	m.Name = k.Name
	m.Prefix = k.Prefix
	m.KeyDigest = k.KeyDigest
	m.AllowedServicesJSON = marshalStringSlice(k.AllowedServices)
	m.IsActive = k.IsActive
	m.ExpiresAt = k.ExpiresAt
}

// APIKeyModelFromDomain creates a new persistence model from a domain APIKey entity.
func APIKeyModelFromDomain(k *credential.APIKey) *APIKeyModel {
	m := &APIKeyModel{}
	m.FromDomain(k)
	return m
}
