package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Payment errors
var (
	ErrPaymentNotFound       = shared.NewNotFoundError("Payment not found")
	ErrTransactionIDRequired = shared.NewValidationError("Transaction ID is required")
	ErrStudentRequired       = shared.NewValidationError("Student ID is required")
	ErrClassRequired         = shared.NewValidationError("Class ID is required")
	ErrInvalidMethod         = shared.NewValidationError("Invalid payment method")
	ErrAmountMismatch        = shared.NewValidationError("Gateway amount does not match the payment total")
	ErrNotUnsettled          = shared.NewInvalidStateError("Payment is not awaiting settlement")
	ErrGatewayUnavailable    = errors.New("payment: gateway unavailable")
)

// Status represents the lifecycle of a payment.
// created -> pending -> {paid, failed, cancelled}; paid, failed and cancelled are terminal.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCancelled
}

// IsRetryable returns true while a gateway call may still be retried
func (s Status) IsRetryable() bool {
	return s == StatusCreated || s == StatusPending
}

// CanSubmit returns true if the payment can be sent to the gateway
func (s Status) CanSubmit() bool {
	return s == StatusCreated
}

// CanComplete returns true if a gateway outcome can be applied
func (s Status) CanComplete() bool {
	return s == StatusPending
}

// CanCancel returns true if the payment can still be cancelled
func (s Status) CanCancel() bool {
	return s == StatusCreated
}

// Method is how the student paid
type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodOnline       Method = "online"
)

// IsValid checks if the method is valid
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodOnline:
		return true
	}
	return false
}

// String returns the string representation
func (m Method) String() string {
	return string(m)
}

// Payment is one checkout attempt for a (student, class) pair
type Payment struct {
	shared.BaseAggregateRoot
	TransactionID      string
	StudentID          uuid.UUID
	ClassID            uuid.UUID
	Fee                fee.Breakdown
	PaymentMethod      Method
	Status             Status
	Unsettled          bool
	SettlementError    string
	SettlementAttempts int
	EnrollmentID       *uuid.UUID
	GatewayReference   string
	CollectedBy        *uuid.UUID
	ProcessedAt        *time.Time
	SettledAt          *time.Time
	Notes              string
}

// NewPayment creates a payment in the created state
func NewPayment(
	transactionID string,
	studentID, classID uuid.UUID,
	breakdown fee.Breakdown,
	method Method,
	collectedBy *uuid.UUID,
	notes string,
) (*Payment, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, ErrTransactionIDRequired
	}
	if studentID == uuid.Nil {
		return nil, ErrStudentRequired
	}
	if classID == uuid.Nil {
		return nil, ErrClassRequired
	}
	if !method.IsValid() {
		return nil, ErrInvalidMethod
	}
	if err := breakdown.Validate(); err != nil {
		return nil, err
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TransactionID:     transactionID,
		StudentID:         studentID,
		ClassID:           classID,
		Fee:               breakdown,
		PaymentMethod:     method,
		Status:            StatusCreated,
		CollectedBy:       collectedBy,
		Notes:             notes,
	}
	p.AddDomainEvent(NewPaymentCreatedEvent(p))
	return p, nil
}

// Amount returns the total the student is charged
func (p *Payment) Amount() decimal.Decimal {
	return p.Fee.TotalAmount
}

// MarkPending records that the gateway accepted the charge request
func (p *Payment) MarkPending(reference string) error {
	if !p.Status.CanSubmit() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot submit payment in %s status", p.Status))
	}
	p.Status = StatusPending
	if reference != "" {
		p.GatewayReference = reference
	}
	p.Touch()
	return nil
}

// MarkPaid applies a successful gateway outcome. The payment stays flagged
// unsettled until MarkSettled records its enrollment, so a paid row is never
// stored looking settled without one.
func (p *Payment) MarkPaid(reference, notes string) error {
	if !p.Status.CanComplete() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot mark payment paid in %s status", p.Status))
	}
	now := shared.Now()
	p.Status = StatusPaid
	p.Unsettled = true
	p.ProcessedAt = &now
	if reference != "" {
		p.GatewayReference = reference
	}
	p.appendNotes(notes)
	p.UpdatedAt = now
	return nil
}

// MarkFailed applies a failed gateway outcome or an exhausted gateway call
func (p *Payment) MarkFailed(reason string) error {
	if !p.Status.IsRetryable() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot fail payment in %s status", p.Status))
	}
	now := shared.Now()
	p.Status = StatusFailed
	p.ProcessedAt = &now
	p.appendNotes(reason)
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentFailedEvent(p, reason))
	return nil
}

// Cancel abandons the payment before it reaches the gateway
func (p *Payment) Cancel(reason string) error {
	if !p.Status.CanCancel() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot cancel payment in %s status", p.Status))
	}
	now := shared.Now()
	p.Status = StatusCancelled
	p.ProcessedAt = &now
	p.appendNotes(reason)
	p.UpdatedAt = now
	return nil
}

// MarkSettled records the enrollment materialized for this paid payment
func (p *Payment) MarkSettled(enrollmentID uuid.UUID) error {
	if p.Status != StatusPaid {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot settle payment in %s status", p.Status))
	}
	now := shared.Now()
	p.Unsettled = false
	p.SettlementError = ""
	p.SettlementAttempts++
	p.EnrollmentID = &enrollmentID
	p.SettledAt = &now
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentSettledEvent(p))
	return nil
}

// MarkUnsettled flags a paid payment whose enrollment could not be materialized
func (p *Payment) MarkUnsettled(cause error) error {
	if p.Status != StatusPaid {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot flag payment in %s status", p.Status))
	}
	p.Unsettled = true
	p.SettlementAttempts++
	if cause != nil {
		p.SettlementError = cause.Error()
	}
	p.Touch()
	p.AddDomainEvent(NewPaymentUnsettledEvent(p))
	return nil
}

// IsSettled returns true once the payment is paid and its enrollment exists
func (p *Payment) IsSettled() bool {
	return p.Status == StatusPaid && !p.Unsettled && p.EnrollmentID != nil
}

func (p *Payment) appendNotes(notes string) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return
	}
	if p.Notes == "" {
		p.Notes = notes
		return
	}
	p.Notes = p.Notes + "\n" + notes
}
