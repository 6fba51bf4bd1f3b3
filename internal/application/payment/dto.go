package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// CreatePaymentRequest starts a checkout. When FeeBreakdown is omitted the
// fee is quoted from PromoCode and Collection.
type CreatePaymentRequest struct {
	StudentID     uuid.UUID      `json:"student_id" binding:"required"`
	ClassID       uuid.UUID      `json:"class_id" binding:"required"`
	PaymentMethod string         `json:"payment_method" binding:"required,oneof=cash card bank_transfer online"`
	FeeBreakdown  *fee.Breakdown `json:"fee_breakdown"`
	PromoCode     string         `json:"promo_code" binding:"max=50"`
	Collection    string         `json:"collection" binding:"omitempty,oneof=counter speed_post"`
	CollectedBy   *uuid.UUID     `json:"collected_by"`
	Notes         string         `json:"notes" binding:"max=1000"`
}

// CounterPaymentRequest records cash taken at the counter by a cashier
type CounterPaymentRequest struct {
	StudentID     uuid.UUID `json:"student_id" binding:"required"`
	ClassID       uuid.UUID `json:"class_id" binding:"required"`
	CashierID     uuid.UUID `json:"cashier_id" binding:"required"`
	PaymentMethod string    `json:"payment_method" binding:"omitempty,oneof=cash card bank_transfer"`
	PromoCode     string    `json:"promo_code" binding:"max=50"`
	Collection    string    `json:"collection" binding:"omitempty,oneof=counter speed_post"`
	Notes         string    `json:"notes" binding:"max=1000"`
}

// ProcessPaymentRequest applies a gateway outcome entered by an operator
type ProcessPaymentRequest struct {
	Status        string          `json:"status" binding:"required,oneof=PENDING PAID FAILED"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" binding:"omitempty,oneof=cash card bank_transfer online"`
	Reference     string          `json:"reference" binding:"max=100"`
	Notes         string          `json:"notes" binding:"max=1000"`
}

// ToGatewayResult converts the request into a gateway result for a transaction
func (r ProcessPaymentRequest) ToGatewayResult(transactionID string) payment.GatewayResult {
	return payment.GatewayResult{
		TransactionID: transactionID,
		Status:        payment.GatewayStatus(r.Status),
		Amount:        r.Amount,
		PaymentMethod: payment.Method(r.PaymentMethod),
		RawNotes:      r.Notes,
		Reference:     r.Reference,
	}
}

// CancelPaymentRequest abandons a payment before submission
type CancelPaymentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// PaymentListFilter holds query parameters for listing payments
type PaymentListFilter struct {
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	StudentID   *uuid.UUID `form:"student_id"`
	ClassID     *uuid.UUID `form:"class_id"`
	Status      string     `form:"status" binding:"omitempty,oneof=created pending paid failed cancelled"`
	CollectedBy *uuid.UUID `form:"collected_by"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ToDomain converts the query into a repository filter
func (f PaymentListFilter) ToDomain() payment.PaymentFilter {
	base := shared.DefaultFilter()
	if f.Page > 0 {
		base.Page = f.Page
	}
	if f.PageSize > 0 {
		base.PageSize = f.PageSize
	}
	filter := payment.PaymentFilter{
		Filter:      base,
		StudentID:   f.StudentID,
		ClassID:     f.ClassID,
		CollectedBy: f.CollectedBy,
		From:        f.From,
		To:          f.To,
	}
	if f.Status != "" {
		status := payment.Status(f.Status)
		filter.Status = &status
	}
	return filter
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TransactionID      string          `json:"transaction_id"`
	StudentID          uuid.UUID       `json:"student_id"`
	ClassID            uuid.UUID       `json:"class_id"`
	Amount             decimal.Decimal `json:"amount"`
	FeeBreakdown       fee.Breakdown   `json:"fee_breakdown"`
	PaymentMethod      string          `json:"payment_method"`
	Status             string          `json:"status"`
	Unsettled          bool            `json:"unsettled"`
	SettlementError    string          `json:"settlement_error,omitempty"`
	SettlementAttempts int             `json:"settlement_attempts"`
	EnrollmentID       *uuid.UUID      `json:"enrollment_id,omitempty"`
	GatewayReference   string          `json:"gateway_reference,omitempty"`
	CollectedBy        *uuid.UUID      `json:"collected_by,omitempty"`
	ProcessedAt        *time.Time      `json:"processed_at,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Version            int             `json:"version"`
}

// ToPaymentResponse converts a domain Payment to PaymentResponse
func ToPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                 p.ID,
		TransactionID:      p.TransactionID,
		StudentID:          p.StudentID,
		ClassID:            p.ClassID,
		Amount:             p.Amount(),
		FeeBreakdown:       p.Fee,
		PaymentMethod:      p.PaymentMethod.String(),
		Status:             p.Status.String(),
		Unsettled:          p.Unsettled,
		SettlementError:    p.SettlementError,
		SettlementAttempts: p.SettlementAttempts,
		EnrollmentID:       p.EnrollmentID,
		GatewayReference:   p.GatewayReference,
		CollectedBy:        p.CollectedBy,
		ProcessedAt:        p.ProcessedAt,
		Notes:              p.Notes,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		Version:            p.Version,
	}
}

// ToPaymentResponses converts a slice of payments
func ToPaymentResponses(list []payment.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(list))
	for i := range list {
		out[i] = ToPaymentResponse(&list[i])
	}
	return out
}

// ProcessResult is the outcome of applying a gateway result
type ProcessResult struct {
	Payment         PaymentResponse `json:"payment"`
	Replayed        bool            `json:"replayed"`
	Unsettled       bool            `json:"unsettled"`
	SettlementError string          `json:"settlement_error,omitempty"`
	EnrollmentID    *uuid.UUID      `json:"enrollment_id,omitempty"`
	EnrollmentKind  string          `json:"enrollment_kind,omitempty"`
}

// RedriveSummary reports one batch of the unsettled re-drive
type RedriveSummary struct {
	Attempted int `json:"attempted"`
	Settled   int `json:"settled"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}
