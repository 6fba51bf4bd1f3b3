package enrollment

import (
	"github.com/google/uuid"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// EventTypeEnrollmentMaterialized is published after a successful upsert
const EventTypeEnrollmentMaterialized = "EnrollmentMaterialized"

// MaterializedEvent is raised when a payment creates or renews an enrollment
type MaterializedEvent struct {
	shared.BaseDomainEvent
	EnrollmentID  uuid.UUID `json:"enrollment_id"`
	StudentID     uuid.UUID `json:"student_id"`
	ClassID       uuid.UUID `json:"class_id"`
	TransactionID string    `json:"transaction_id"`
	Kind          Kind      `json:"kind"`
}

// NewMaterializedEvent creates a new MaterializedEvent
func NewMaterializedEvent(e *Enrollment, transactionID string, kind Kind) *MaterializedEvent {
	return &MaterializedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEnrollmentMaterialized, "Enrollment", e.ID),
		EnrollmentID:    e.ID,
		StudentID:       e.StudentID,
		ClassID:         e.ClassID,
		TransactionID:   transactionID,
		Kind:            kind,
	}
}
