package cashsession

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// OpenSessionRequest starts a cashier shift
type OpenSessionRequest struct {
	CashierID      uuid.UUID       `json:"cashier_id" binding:"required"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	SessionDate    *time.Time      `json:"session_date"`
}

// CashOutRequest removes cash from the drawer
type CashOutRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason" binding:"max=500"`
	PerformedBy uuid.UUID       `json:"performed_by" binding:"required"`
}

// GenerateReportRequest selects the report detail level
type GenerateReportRequest struct {
	ReportType string `json:"report_type" binding:"omitempty,oneof=summary full"`
}

// AnnotateReportRequest sets operator notes on a draft report
type AnnotateReportRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// ReportListFilter holds query parameters for the report history
type ReportListFilter struct {
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	CashierID *uuid.UUID `form:"cashier_id"`
	SessionID *uuid.UUID `form:"session_id"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	IsFinal   *bool      `form:"is_final"`
}

// ToDomain converts the query into a repository filter
func (f ReportListFilter) ToDomain() cashsession.ReportFilter {
	base := shared.DefaultFilter()
	base.OrderBy = "generated_at"
	if f.Page > 0 {
		base.Page = f.Page
	}
	if f.PageSize > 0 {
		base.PageSize = f.PageSize
	}
	return cashsession.ReportFilter{
		Filter:    base,
		CashierID: f.CashierID,
		SessionID: f.SessionID,
		From:      f.From,
		To:        f.To,
		IsFinal:   f.IsFinal,
	}
}

// SessionResponse represents a cash session in API responses
type SessionResponse struct {
	ID                uuid.UUID              `json:"id"`
	CashierID         uuid.UUID              `json:"cashier_id"`
	SessionDate       time.Time              `json:"session_date"`
	OpeningBalance    decimal.Decimal        `json:"opening_balance"`
	StartTime         time.Time              `json:"start_time"`
	EndTime           *time.Time             `json:"end_time,omitempty"`
	Status            string                 `json:"status"`
	TotalCollections  decimal.Decimal        `json:"total_collections"`
	TotalReceipts     int                    `json:"total_receipts"`
	CashOutAmount     decimal.Decimal        `json:"cash_out_amount"`
	ExpectedClosing   decimal.Decimal        `json:"expected_closing"`
	CashDrawerBalance decimal.Decimal        `json:"cash_drawer_balance"`
	CashOuts          []CashMovementResponse `json:"cash_outs,omitempty"`
	Version           int                    `json:"version"`
}

// ToSessionResponse converts a domain CashSession to SessionResponse
func ToSessionResponse(s *cashsession.CashSession) SessionResponse {
	return SessionResponse{
		ID:                s.ID,
		CashierID:         s.CashierID,
		SessionDate:       s.SessionDate,
		OpeningBalance:    s.OpeningBalance,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		Status:            s.Status.String(),
		TotalCollections:  s.TotalCollections,
		TotalReceipts:     s.TotalReceipts,
		CashOutAmount:     s.CashOutAmount,
		ExpectedClosing:   s.ExpectedClosing(),
		CashDrawerBalance: s.CashDrawerBalance(),
		Version:           s.Version,
	}
}

// CashMovementResponse represents a cash-out
type CashMovementResponse struct {
	ID          uuid.UUID       `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	PerformedBy uuid.UUID       `json:"performed_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToCashMovementResponse converts a domain CashMovement
func ToCashMovementResponse(m *cashsession.CashMovement) CashMovementResponse {
	return CashMovementResponse{
		ID:          m.ID,
		Amount:      m.Amount,
		Reason:      m.Reason,
		PerformedBy: m.PerformedBy,
		CreatedAt:   m.CreatedAt,
	}
}

// CashOutResult is the session after an accepted cash-out
type CashOutResult struct {
	Session  SessionResponse      `json:"session"`
	Movement CashMovementResponse `json:"movement"`
}

// ReportResponse represents a session report in API responses
type ReportResponse struct {
	ID                uuid.UUID                    `json:"id"`
	SessionID         uuid.UUID                    `json:"session_id"`
	CashierID         uuid.UUID                    `json:"cashier_id"`
	SessionDate       time.Time                    `json:"session_date"`
	ReportType        string                       `json:"report_type"`
	GeneratedAt       time.Time                    `json:"generated_at"`
	CutoffAt          time.Time                    `json:"cutoff_at"`
	OpeningBalance    decimal.Decimal              `json:"opening_balance"`
	TotalCollections  decimal.Decimal              `json:"total_collections"`
	TotalReceipts     int                          `json:"total_receipts"`
	CashOutAmount     decimal.Decimal              `json:"cash_out_amount"`
	ExpectedClosing   decimal.Decimal              `json:"expected_closing"`
	CashDrawerBalance decimal.Decimal              `json:"cash_drawer_balance"`
	CardSummary       cashsession.CardSummary      `json:"card_summary"`
	PerClassBreakdown []cashsession.ClassBreakdown `json:"per_class_breakdown"`
	Transactions      []cashsession.ReportLine     `json:"transactions,omitempty"`
	IsFinal           bool                         `json:"is_final"`
	Notes             string                       `json:"notes,omitempty"`
}

// ToReportResponse converts a domain SessionReport to ReportResponse
func ToReportResponse(r *cashsession.SessionReport) ReportResponse {
	return ReportResponse{
		ID:                r.ID,
		SessionID:         r.SessionID,
		CashierID:         r.CashierID,
		SessionDate:       r.SessionDate,
		ReportType:        string(r.ReportType),
		GeneratedAt:       r.GeneratedAt,
		CutoffAt:          r.CutoffAt,
		OpeningBalance:    r.OpeningBalance,
		TotalCollections:  r.TotalCollections,
		TotalReceipts:     r.TotalReceipts,
		CashOutAmount:     r.CashOutAmount,
		ExpectedClosing:   r.ExpectedClosing,
		CashDrawerBalance: r.CashDrawerBalance,
		CardSummary:       r.CardSummary,
		PerClassBreakdown: r.PerClassBreakdown,
		Transactions:      r.Transactions,
		IsFinal:           r.IsFinal,
		Notes:             r.Notes,
	}
}

// ToReportResponses converts a slice of reports
func ToReportResponses(list []cashsession.SessionReport) []ReportResponse {
	out := make([]ReportResponse, len(list))
	for i := range list {
		out[i] = ToReportResponse(&list[i])
	}
	return out
}

// CloseResult is the closed session with its final report
type CloseResult struct {
	Session     SessionResponse `json:"session"`
	FinalReport ReportResponse  `json:"final_report"`
}
