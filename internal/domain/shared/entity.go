package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity is the identity and audit timestamps shared by every entity
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates an entity with a random ID stamped at Now
func NewBaseEntity() BaseEntity {
	now := Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch refreshes the update timestamp
func (e *BaseEntity) Touch() {
	e.UpdatedAt = Now()
}

// Now returns the current time in UTC. Persisted timestamps are always UTC so
// range comparisons behave the same on every database driver. Tests replace it
// to pin the clock.
var Now = func() time.Time {
	return time.Now().UTC()
}
