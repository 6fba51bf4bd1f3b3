package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/catalog"
)

// CashSessionModel is the persistence model for the CashSession aggregate root
type CashSessionModel struct {
	AggregateModel
	CashierID        uuid.UUID          `gorm:"type:uuid;not null;index;uniqueIndex:idx_cash_sessions_open_cashier,where:status = 'open'"`
	SessionDate      time.Time          `gorm:"not null;index"`
	OpeningBalance   decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	StartTime        time.Time          `gorm:"not null"`
	EndTime          *time.Time         `gorm:""`
	Status           cashsession.Status `gorm:"type:varchar(10);not null;default:'open'"`
	TotalCollections decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	TotalReceipts    int                `gorm:"not null;default:0"`
	CashOutAmount    decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (CashSessionModel) TableName() string {
	return "cash_sessions"
}

// ToDomain converts the persistence model to a domain CashSession
func (m *CashSessionModel) ToDomain() *cashsession.CashSession {
	return &cashsession.CashSession{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CashierID:         m.CashierID,
		SessionDate:       m.SessionDate.UTC(),
		OpeningBalance:    m.OpeningBalance,
		StartTime:         m.StartTime.UTC(),
		EndTime:           utcPtr(m.EndTime),
		Status:            m.Status,
		TotalCollections:  m.TotalCollections,
		TotalReceipts:     m.TotalReceipts,
		CashOutAmount:     m.CashOutAmount,
	}
}

// CashSessionModelFromDomain creates a persistence model from a domain CashSession
func CashSessionModelFromDomain(s *cashsession.CashSession) *CashSessionModel {
	m := &CashSessionModel{
		CashierID:        s.CashierID,
		SessionDate:      s.SessionDate,
		OpeningBalance:   s.OpeningBalance,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		Status:           s.Status,
		TotalCollections: s.TotalCollections,
		TotalReceipts:    s.TotalReceipts,
		CashOutAmount:    s.CashOutAmount,
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	return m
}

// SessionEntryModel is one attributed payment in a session ledger
type SessionEntryModel struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key"`
	SessionID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	TransactionID string           `gorm:"type:varchar(64);not null;uniqueIndex"`
	ClassID       uuid.UUID        `gorm:"type:uuid;not null"`
	CardType      catalog.CardType `gorm:"type:varchar(10);not null"`
	Amount        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	SettledAt     time.Time        `gorm:"not null;index"`
	CreatedAt     time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SessionEntryModel) TableName() string {
	return "cash_session_entries"
}

// ToDomain converts the row to a domain SessionEntry
func (m *SessionEntryModel) ToDomain() cashsession.SessionEntry {
	return cashsession.SessionEntry{
		ID:            m.ID,
		SessionID:     m.SessionID,
		TransactionID: m.TransactionID,
		ClassID:       m.ClassID,
		CardType:      m.CardType,
		Amount:        m.Amount,
		SettledAt:     m.SettledAt.UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

// SessionEntryModelFromDomain creates a row from a domain SessionEntry
func SessionEntryModelFromDomain(e *cashsession.SessionEntry) *SessionEntryModel {
	return &SessionEntryModel{
		ID:            e.ID,
		SessionID:     e.SessionID,
		TransactionID: e.TransactionID,
		ClassID:       e.ClassID,
		CardType:      e.CardType,
		Amount:        e.Amount,
		SettledAt:     e.SettledAt,
		CreatedAt:     e.CreatedAt,
	}
}

// CashMovementModel is one cash-out row
type CashMovementModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	SessionID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Reason      string          `gorm:"type:varchar(500)"`
	PerformedBy uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CashMovementModel) TableName() string {
	return "cash_movements"
}

// ToDomain converts the row to a domain CashMovement
func (m *CashMovementModel) ToDomain() cashsession.CashMovement {
	return cashsession.CashMovement{
		ID:          m.ID,
		SessionID:   m.SessionID,
		Amount:      m.Amount,
		Reason:      m.Reason,
		PerformedBy: m.PerformedBy,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

// CashMovementModelFromDomain creates a row from a domain CashMovement
func CashMovementModelFromDomain(c *cashsession.CashMovement) *CashMovementModel {
	return &CashMovementModel{
		ID:          c.ID,
		SessionID:   c.SessionID,
		Amount:      c.Amount,
		Reason:      c.Reason,
		PerformedBy: c.PerformedBy,
		CreatedAt:   c.CreatedAt,
	}
}

// SessionReportModel is the persistence model for a SessionReport. Card
// summary, per-class breakdown and transactions are stored as JSON.
// A partial unique index allows a single final report per session.
type SessionReportModel struct {
	ID                uuid.UUID              `gorm:"type:uuid;primary_key"`
	SessionID         uuid.UUID              `gorm:"type:uuid;not null;index;uniqueIndex:idx_session_reports_final,where:is_final"`
	CashierID         uuid.UUID              `gorm:"type:uuid;not null;index"`
	SessionDate       time.Time              `gorm:"not null;index"`
	ReportType        cashsession.ReportType `gorm:"type:varchar(10);not null"`
	GeneratedAt       time.Time              `gorm:"not null;index"`
	CutoffAt          time.Time              `gorm:"not null"`
	OpeningBalance    decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	TotalCollections  decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	TotalReceipts     int                    `gorm:"not null"`
	CashOutAmount     decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	ExpectedClosing   decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	CashDrawerBalance decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	CardSummaryJSON   string                 `gorm:"column:card_summary;type:jsonb;not null"`
	PerClassJSON      string                 `gorm:"column:per_class_breakdown;type:jsonb;not null"`
	TransactionsJSON  string                 `gorm:"column:transactions;type:jsonb"`
	IsFinal           bool                   `gorm:"not null;default:false"`
	Notes             string                 `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SessionReportModel) TableName() string {
	return "session_reports"
}

// ToDomain converts the row to a domain SessionReport. Malformed JSON columns
// are logged and left empty.
func (m *SessionReportModel) ToDomain() *cashsession.SessionReport {
	r := &cashsession.SessionReport{
		ID:                m.ID,
		SessionID:         m.SessionID,
		CashierID:         m.CashierID,
		SessionDate:       m.SessionDate.UTC(),
		ReportType:        m.ReportType,
		GeneratedAt:       m.GeneratedAt.UTC(),
		CutoffAt:          m.CutoffAt.UTC(),
		OpeningBalance:    m.OpeningBalance,
		TotalCollections:  m.TotalCollections,
		TotalReceipts:     m.TotalReceipts,
		CashOutAmount:     m.CashOutAmount,
		ExpectedClosing:   m.ExpectedClosing,
		CashDrawerBalance: m.CashDrawerBalance,
		IsFinal:           m.IsFinal,
		Notes:             m.Notes,
	}
	decodeJSON(m.ID, "card_summary", m.CardSummaryJSON, &r.CardSummary)
	decodeJSON(m.ID, "per_class_breakdown", m.PerClassJSON, &r.PerClassBreakdown)
	decodeJSON(m.ID, "transactions", m.TransactionsJSON, &r.Transactions)
	return r
}

// SessionReportModelFromDomain creates a row from a domain SessionReport
func SessionReportModelFromDomain(r *cashsession.SessionReport) (*SessionReportModel, error) {
	cards, err := json.Marshal(r.CardSummary)
	if err != nil {
		return nil, err
	}
	perClass, err := json.Marshal(r.PerClassBreakdown)
	if err != nil {
		return nil, err
	}
	m := &SessionReportModel{
		ID:                r.ID,
		SessionID:         r.SessionID,
		CashierID:         r.CashierID,
		SessionDate:       r.SessionDate,
		ReportType:        r.ReportType,
		GeneratedAt:       r.GeneratedAt,
		CutoffAt:          r.CutoffAt,
		OpeningBalance:    r.OpeningBalance,
		TotalCollections:  r.TotalCollections,
		TotalReceipts:     r.TotalReceipts,
		CashOutAmount:     r.CashOutAmount,
		ExpectedClosing:   r.ExpectedClosing,
		CashDrawerBalance: r.CashDrawerBalance,
		CardSummaryJSON:   string(cards),
		PerClassJSON:      string(perClass),
		IsFinal:           r.IsFinal,
		Notes:             r.Notes,
	}
	if r.Transactions != nil {
		tx, err := json.Marshal(r.Transactions)
		if err != nil {
			return nil, err
		}
		m.TransactionsJSON = string(tx)
	}
	return m, nil
}

func decodeJSON(id uuid.UUID, column, raw string, dst any) {
	if raw == "" || raw == "null" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		zap.L().Named("persistence.models").Warn("failed to parse report JSON column",
			zap.String("report_id", id.String()),
			zap.String("column", column),
			zap.Error(err))
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
