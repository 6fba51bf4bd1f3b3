package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// BaseModel holds the identity and audit columns every table shares
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AggregateModel adds the version column checked by optimistic-lock updates
// (UPDATE ... WHERE id = ? AND version = ?)
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// ToDomain returns the entity header
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// FromDomainBaseEntity copies the entity header into the row
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	*m = BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

// ToAggregateRoot returns the aggregate header with no pending events
func (m *AggregateModel) ToAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{BaseEntity: m.BaseModel.ToDomain(), Version: m.Version}
}

// FromDomainAggregateRoot copies the aggregate header into the row
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}
