package cashsession

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// SessionRepository defines the interface for cash session persistence
type SessionRepository interface {
	// Create inserts a new open session. A second open session for the same
	// cashier yields ErrSessionAlreadyOpen.
	Create(ctx context.Context, session *CashSession) error

	// FindByID returns ErrSessionNotFound if the session does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*CashSession, error)

	// FindOpenByCashier returns the cashier's open session, or nil
	FindOpenByCashier(ctx context.Context, cashierID uuid.UUID) (*CashSession, error)

	// AddEntry stores the entry and the session's updated running totals in one
	// transaction. Returns false without changes if the transaction was
	// already attributed, and shared.ErrConcurrencyConflict if the session
	// version moved.
	AddEntry(ctx context.Context, session *CashSession, entry *SessionEntry) (bool, error)

	// FindLedger returns the session and all of its entries from one
	// consistent read, so the counters and the entries agree with each other.
	// Returns ErrSessionNotFound if the session does not exist.
	FindLedger(ctx context.Context, sessionID uuid.UUID) (*CashSession, []SessionEntry, error)

	// RecordCashOut stores the movement and the session's new cash-out total
	// in one transaction, guarded by the session version
	RecordCashOut(ctx context.Context, session *CashSession, movement *CashMovement) error

	// FindCashOuts lists the cash movements of a session, oldest first
	FindCashOuts(ctx context.Context, sessionID uuid.UUID) ([]CashMovement, error)

	// CloseWithReport stores the closed session and its final report in one
	// transaction, guarded by the session version
	CloseWithReport(ctx context.Context, session *CashSession, report *SessionReport) error
}

// ReportFilter defines filtering options for report history
type ReportFilter struct {
	shared.Filter
	CashierID *uuid.UUID
	SessionID *uuid.UUID
	From      *time.Time
	To        *time.Time
	IsFinal   *bool
}

// ReportRepository is append-only storage of session reports
type ReportRepository interface {
	// Append inserts a report row
	Append(ctx context.Context, report *SessionReport) error

	// FindByID returns ErrReportNotFound if the report does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*SessionReport, error)

	// FindFinal returns the final report of a session, or nil
	FindFinal(ctx context.Context, sessionID uuid.UUID) (*SessionReport, error)

	// FindAll lists reports ordered by generation time, newest first
	FindAll(ctx context.Context, filter ReportFilter) ([]SessionReport, int64, error)

	// UpdateNotes changes the notes of a draft. Final rows are never updated
	// and yield an IMMUTABLE_REPORT error.
	UpdateNotes(ctx context.Context, report *SessionReport) error
}
