package enrollment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/enrollment"
)

// EnrollmentResponse represents an enrollment in API responses
type EnrollmentResponse struct {
	ID              uuid.UUID              `json:"id"`
	StudentID       uuid.UUID              `json:"student_id"`
	ClassID         uuid.UUID              `json:"class_id"`
	PaymentID       uuid.UUID              `json:"payment_id"`
	AmountPaid      decimal.Decimal        `json:"amount_paid"`
	PaymentMethod   string                 `json:"payment_method"`
	PaymentStatus   string                 `json:"payment_status"`
	EnrollmentDate  time.Time              `json:"enrollment_date"`
	NextPaymentDate time.Time              `json:"next_payment_date"`
	Status          string                 `json:"status"`
	PaymentHistory  []HistoryEntryResponse `json:"payment_history"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// HistoryEntryResponse is one payment applied to an enrollment
type HistoryEntryResponse struct {
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
}

// MaterializeResult is the outcome of applying a payment to enrollments
type MaterializeResult struct {
	Enrollment *EnrollmentResponse `json:"enrollment"`
	Kind       string              `json:"kind"`
}

// ToEnrollmentResponse converts a domain Enrollment to EnrollmentResponse
func ToEnrollmentResponse(e *enrollment.Enrollment) EnrollmentResponse {
	history := make([]HistoryEntryResponse, len(e.PaymentHistory))
	for i, h := range e.PaymentHistory {
		history[i] = HistoryEntryResponse{
			Date:          h.Date,
			Amount:        h.Amount,
			Method:        h.Method,
			Status:        string(h.Status),
			TransactionID: h.TransactionID,
		}
	}
	return EnrollmentResponse{
		ID:              e.ID,
		StudentID:       e.StudentID,
		ClassID:         e.ClassID,
		PaymentID:       e.PaymentID,
		AmountPaid:      e.AmountPaid,
		PaymentMethod:   e.PaymentMethod,
		PaymentStatus:   string(e.PaymentStatus),
		EnrollmentDate:  e.EnrollmentDate,
		NextPaymentDate: e.NextPaymentDate,
		Status:          string(e.Status),
		PaymentHistory:  history,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

// ToEnrollmentResponses converts a slice of enrollments
func ToEnrollmentResponses(list []enrollment.Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, len(list))
	for i := range list {
		out[i] = ToEnrollmentResponse(&list[i])
	}
	return out
}
