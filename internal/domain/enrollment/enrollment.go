package enrollment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Enrollment errors
var (
	ErrEnrollmentNotFound = shared.NewNotFoundError("Enrollment not found")
	ErrPaymentRequired    = shared.NewValidationError("Settlement requires a payment ID and transaction ID")
	ErrPairRequired       = shared.NewValidationError("Settlement requires a student ID and class ID")
	ErrNegativeAmount     = shared.NewValidationError("Settled amount must not be negative")
)

// Status is whether an enrollment currently grants attendance
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusCancelled
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// PaymentStatus is the billing standing of an enrollment
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Kind tells whether a materialization created or renewed the enrollment
type Kind string

const (
	KindNew     Kind = "new"
	KindRenewal Kind = "renewal"
)

// HistoryEntry is one payment applied to an enrollment. History is append-only.
type HistoryEntry struct {
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transaction_id"`
}

// Enrollment links a student to a class they paid to attend.
// At most one active enrollment exists per (student, class).
type Enrollment struct {
	shared.BaseEntity
	StudentID       uuid.UUID
	ClassID         uuid.UUID
	PaymentID       uuid.UUID
	AmountPaid      decimal.Decimal
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	EnrollmentDate  time.Time
	NextPaymentDate time.Time
	Status          Status
	PaymentHistory  []HistoryEntry
}

// Settlement is a successful payment to be materialized
type Settlement struct {
	PaymentID     uuid.UUID
	TransactionID string
	StudentID     uuid.UUID
	ClassID       uuid.UUID
	Amount        decimal.Decimal
	Method        string
	PaidAt        time.Time
	Frequency     catalog.Frequency
}

// Validate checks the settlement can be applied
func (s Settlement) Validate() error {
	if s.PaymentID == uuid.Nil || s.TransactionID == "" {
		return ErrPaymentRequired
	}
	if s.StudentID == uuid.Nil || s.ClassID == uuid.Nil {
		return ErrPairRequired
	}
	if s.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// NextPaymentDate is when the next installment falls due
func (s Settlement) NextPaymentDate() time.Time {
	return s.Frequency.NextDate(s.PaidAt)
}

// HistoryEntry returns the history row this settlement appends
func (s Settlement) HistoryEntry() HistoryEntry {
	return HistoryEntry{
		Date:          s.PaidAt,
		Amount:        s.Amount,
		Method:        s.Method,
		Status:        PaymentStatusPaid,
		TransactionID: s.TransactionID,
	}
}

// NewFromSettlement builds the first active enrollment for a pair
func NewFromSettlement(s Settlement) (*Enrollment, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Enrollment{
		BaseEntity:      shared.NewBaseEntity(),
		StudentID:       s.StudentID,
		ClassID:         s.ClassID,
		PaymentID:       s.PaymentID,
		AmountPaid:      s.Amount,
		PaymentMethod:   s.Method,
		PaymentStatus:   PaymentStatusPaid,
		EnrollmentDate:  s.PaidAt,
		NextPaymentDate: s.NextPaymentDate(),
		Status:          StatusActive,
		PaymentHistory:  []HistoryEntry{s.HistoryEntry()},
	}, nil
}

// Renew applies a later payment for the same pair. Replays of an already
// recorded transaction leave the enrollment unchanged.
func (e *Enrollment) Renew(s Settlement) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if e.Status != StatusActive {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot renew enrollment in %s status", e.Status))
	}
	if e.StudentID != s.StudentID || e.ClassID != s.ClassID {
		return shared.NewValidationError("Settlement belongs to a different student or class")
	}
	if e.HasTransaction(s.TransactionID) {
		return nil
	}
	e.PaymentID = s.PaymentID
	e.AmountPaid = s.Amount
	e.PaymentMethod = s.Method
	e.PaymentStatus = PaymentStatusPaid
	e.NextPaymentDate = s.NextPaymentDate()
	e.PaymentHistory = append(e.PaymentHistory, s.HistoryEntry())
	e.Touch()
	return nil
}

// HasTransaction reports whether the transaction is already in the history
func (e *Enrollment) HasTransaction(transactionID string) bool {
	for _, h := range e.PaymentHistory {
		if h.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// Cancel ends the enrollment, freeing the pair for a new active enrollment
func (e *Enrollment) Cancel() error {
	if e.Status != StatusActive {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot cancel enrollment in %s status", e.Status))
	}
	e.Status = StatusCancelled
	e.Touch()
	return nil
}

// IsActive returns true if the enrollment grants attendance
func (e *Enrollment) IsActive() bool {
	return e.Status == StatusActive
}
