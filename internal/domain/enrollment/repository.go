package enrollment

import (
	"context"

	"github.com/google/uuid"
)

// EnrollmentRepository defines the interface for enrollment persistence
type EnrollmentRepository interface {
	// Upsert atomically creates the active enrollment for the settlement's pair,
	// or renews the existing one, and appends the history entry. It must be
	// safe under concurrent calls for the same pair and replays of the same
	// transaction.
	Upsert(ctx context.Context, s Settlement) (*Enrollment, Kind, error)

	// FindByID finds an enrollment with its payment history.
	// Returns ErrEnrollmentNotFound if it does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)

	// FindActive returns the active enrollment for a pair, or nil
	FindActive(ctx context.Context, studentID, classID uuid.UUID) (*Enrollment, error)

	// FindByStudent returns every enrollment of a student, newest first
	FindByStudent(ctx context.Context, studentID uuid.UUID) ([]Enrollment, error)

	// UpdateStatus persists a status change
	UpdateStatus(ctx context.Context, e *Enrollment) error
}
