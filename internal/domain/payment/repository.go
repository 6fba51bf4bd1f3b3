package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	StudentID   *uuid.UUID
	ClassID     *uuid.UUID
	Status      *Status
	CollectedBy *uuid.UUID
	Unsettled   *bool
	From        *time.Time
	To          *time.Time
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByTransactionID finds a payment by its transaction ID.
	// Returns ErrPaymentNotFound if it does not exist.
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// Create inserts a new payment. A duplicate transaction ID yields shared.ErrAlreadyExists.
	Create(ctx context.Context, payment *Payment) error

	// SaveWithLock updates a payment if its version is unchanged since it was
	// loaded, then bumps the version. Returns shared.ErrConcurrencyConflict otherwise.
	SaveWithLock(ctx context.Context, payment *Payment) error

	// FindAll returns a page of payments and the total count
	FindAll(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)

	// FindUnsettled returns paid payments still missing their enrollment, oldest first
	FindUnsettled(ctx context.Context, limit int) ([]Payment, error)

	// CountUnsettled counts paid payments still missing their enrollment
	CountUnsettled(ctx context.Context) (int64, error)

	// FindSettledCollectedBy returns settled payments collected by a cashier
	// with processed_at in [from, to]
	FindSettledCollectedBy(ctx context.Context, cashierID uuid.UUID, from, to time.Time) ([]Payment, error)
}
