package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypePaymentCreated   = "PaymentCreated"
	EventTypePaymentFailed    = "PaymentFailed"
	EventTypePaymentSettled   = "PaymentSettled"
	EventTypePaymentUnsettled = "PaymentUnsettled"

	aggregateTypePayment = "Payment"
)

// PaymentCreatedEvent is raised when a checkout attempt is recorded
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	TransactionID string          `json:"transaction_id"`
	StudentID     uuid.UUID       `json:"student_id"`
	ClassID       uuid.UUID       `json:"class_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod Method          `json:"payment_method"`
}

// NewPaymentCreatedEvent creates a new PaymentCreatedEvent
func NewPaymentCreatedEvent(p *Payment) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCreated, aggregateTypePayment, p.ID),
		TransactionID:   p.TransactionID,
		StudentID:       p.StudentID,
		ClassID:         p.ClassID,
		Amount:          p.Amount(),
		PaymentMethod:   p.PaymentMethod,
	}
}

// PaymentFailedEvent is raised when the gateway rejects a payment
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// NewPaymentFailedEvent creates a new PaymentFailedEvent
func NewPaymentFailedEvent(p *Payment, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, aggregateTypePayment, p.ID),
		TransactionID:   p.TransactionID,
		Reason:          reason,
	}
}

// PaymentSettledEvent is raised once a paid payment has its enrollment.
// Cash sessions attribute collections from this event.
type PaymentSettledEvent struct {
	shared.BaseDomainEvent
	TransactionID string           `json:"transaction_id"`
	StudentID     uuid.UUID        `json:"student_id"`
	ClassID       uuid.UUID        `json:"class_id"`
	EnrollmentID  uuid.UUID        `json:"enrollment_id"`
	Amount        decimal.Decimal  `json:"amount"`
	CardType      catalog.CardType `json:"card_type"`
	PaymentMethod Method           `json:"payment_method"`
	CollectedBy   *uuid.UUID       `json:"collected_by,omitempty"`
	ProcessedAt   time.Time        `json:"processed_at"`
	SettledAt     time.Time        `json:"settled_at"`
}

// NewPaymentSettledEvent creates a new PaymentSettledEvent
func NewPaymentSettledEvent(p *Payment) *PaymentSettledEvent {
	e := &PaymentSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentSettled, aggregateTypePayment, p.ID),
		TransactionID:   p.TransactionID,
		StudentID:       p.StudentID,
		ClassID:         p.ClassID,
		Amount:          p.Amount(),
		CardType:        p.Fee.CardType,
		PaymentMethod:   p.PaymentMethod,
		CollectedBy:     p.CollectedBy,
	}
	if p.EnrollmentID != nil {
		e.EnrollmentID = *p.EnrollmentID
	}
	if p.ProcessedAt != nil {
		e.ProcessedAt = *p.ProcessedAt
	}
	if p.SettledAt != nil {
		e.SettledAt = *p.SettledAt
	}
	return e
}

// PaymentUnsettledEvent is raised when enrollment materialization fails
// after the payment was marked paid
type PaymentUnsettledEvent struct {
	shared.BaseDomainEvent
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
	Attempts      int    `json:"attempts"`
}

// NewPaymentUnsettledEvent creates a new PaymentUnsettledEvent
func NewPaymentUnsettledEvent(p *Payment) *PaymentUnsettledEvent {
	return &PaymentUnsettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentUnsettled, aggregateTypePayment, p.ID),
		TransactionID:   p.TransactionID,
		Error:           p.SettlementError,
		Attempts:        p.SettlementAttempts,
	}
}
