package cashsession

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypeSessionOpened = "CashSessionOpened"
	EventTypeSessionClosed = "CashSessionClosed"

	aggregateTypeSession = "CashSession"
)

// SessionOpenedEvent is raised when a cashier starts a shift
type SessionOpenedEvent struct {
	shared.BaseDomainEvent
	CashierID      uuid.UUID       `json:"cashier_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	SessionDate    time.Time       `json:"session_date"`
}

// NewSessionOpenedEvent creates a new SessionOpenedEvent
func NewSessionOpenedEvent(s *CashSession) *SessionOpenedEvent {
	return &SessionOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionOpened, aggregateTypeSession, s.ID),
		CashierID:       s.CashierID,
		OpeningBalance:  s.OpeningBalance,
		SessionDate:     s.SessionDate,
	}
}

// SessionClosedEvent is raised after the final report has been stored
type SessionClosedEvent struct {
	shared.BaseDomainEvent
	CashierID     uuid.UUID      `json:"cashier_id"`
	FinalReportID uuid.UUID      `json:"final_report_id"`
	Report        *SessionReport `json:"-"`
}

// NewSessionClosedEvent creates a new SessionClosedEvent
func NewSessionClosedEvent(s *CashSession, report *SessionReport) *SessionClosedEvent {
	return &SessionClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionClosed, aggregateTypeSession, s.ID),
		CashierID:       s.CashierID,
		FinalReportID:   report.ID,
		Report:          report,
	}
}
