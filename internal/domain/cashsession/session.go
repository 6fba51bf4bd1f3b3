package cashsession

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Session errors
var (
	ErrSessionNotFound       = shared.NewNotFoundError("Cash session not found")
	ErrCashierRequired       = shared.NewValidationError("Cashier ID is required")
	ErrNegativeOpening       = shared.NewValidationError("Opening balance must not be negative")
	ErrCashOutNotPositive    = shared.NewValidationError("Cash-out amount must be positive")
	ErrSessionAlreadyOpen    = shared.NewInvalidStateError("Cashier already has an open session")
	ErrEntryNotAttributable  = shared.NewValidationError("Entry does not belong to this session")
	ErrNegativeEntryAmount   = shared.NewValidationError("Entry amount must not be negative")
	ErrEntryTransactionEmpty = shared.NewValidationError("Entry transaction ID is required")
	ErrSettlementInFlight    = shared.NewDomainError(shared.CodeConcurrentModification,
		"Payments collected in this session are still being attributed; retry shortly")
)

// Status represents the lifecycle of a cash session: open -> closed
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusClosed
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// CashSession is one cashier shift. Running totals are fed by attributed
// payments and are re-checked against payment records when reports are built.
type CashSession struct {
	shared.BaseAggregateRoot
	CashierID        uuid.UUID
	SessionDate      time.Time
	OpeningBalance   decimal.Decimal
	StartTime        time.Time
	EndTime          *time.Time
	Status           Status
	TotalCollections decimal.Decimal
	TotalReceipts    int
	CashOutAmount    decimal.Decimal
}

// OpenSession starts a shift for a cashier. sessionDate is truncated to the day;
// a zero sessionDate means today.
func OpenSession(cashierID uuid.UUID, openingBalance decimal.Decimal, sessionDate time.Time) (*CashSession, error) {
	if cashierID == uuid.Nil {
		return nil, ErrCashierRequired
	}
	if openingBalance.IsNegative() {
		return nil, ErrNegativeOpening
	}
	now := shared.Now()
	if sessionDate.IsZero() {
		sessionDate = now
	}
	s := &CashSession{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CashierID:         cashierID,
		SessionDate:       truncateDay(sessionDate),
		OpeningBalance:    openingBalance.Round(2),
		StartTime:         now,
		Status:            StatusOpen,
		TotalCollections:  decimal.Zero,
		CashOutAmount:     decimal.Zero,
	}
	s.AddDomainEvent(NewSessionOpenedEvent(s))
	return s, nil
}

// ExpectedClosing is what the drawer should hold before any cash-out
func (s *CashSession) ExpectedClosing() decimal.Decimal {
	return s.OpeningBalance.Add(s.TotalCollections)
}

// CashDrawerBalance is opening + collections - cash-outs
func (s *CashSession) CashDrawerBalance() decimal.Decimal {
	return s.ExpectedClosing().Sub(s.CashOutAmount)
}

// IsOpen returns true while the shift accepts payments and cash-outs
func (s *CashSession) IsOpen() bool {
	return s.Status == StatusOpen
}

// Cutoff is the instant up to which payments count towards this session:
// now while open, the end time once closed.
func (s *CashSession) Cutoff(now time.Time) time.Time {
	if s.EndTime != nil {
		return *s.EndTime
	}
	return now
}

// Accepts reports whether a payment collected by collectedBy and settled at
// settledAt belongs to this session's running totals
func (s *CashSession) Accepts(collectedBy *uuid.UUID, settledAt time.Time) bool {
	if !s.IsOpen() || collectedBy == nil || *collectedBy != s.CashierID {
		return false
	}
	return !settledAt.Before(s.StartTime)
}

// Attribute adds a settled payment to the running totals
func (s *CashSession) Attribute(entry *SessionEntry) error {
	if !s.IsOpen() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot attribute payments to a %s session", s.Status))
	}
	if entry.SessionID != s.ID {
		return ErrEntryNotAttributable
	}
	s.TotalCollections = s.TotalCollections.Add(entry.Amount)
	s.TotalReceipts++
	s.Touch()
	return nil
}

// CashOut removes cash from the drawer. The drawer balance can never go negative.
func (s *CashSession) CashOut(amount decimal.Decimal, reason string, performedBy uuid.UUID) (*CashMovement, error) {
	if !s.IsOpen() {
		return nil, shared.NewInvalidStateError(fmt.Sprintf("Cannot cash out from a %s session", s.Status))
	}
	if !amount.IsPositive() {
		return nil, ErrCashOutNotPositive
	}
	balance := s.CashDrawerBalance()
	if amount.GreaterThan(balance) {
		return nil, NewNegativeBalanceError(amount, balance)
	}
	s.CashOutAmount = s.CashOutAmount.Add(amount)
	s.Touch()
	return &CashMovement{
		ID:          uuid.New(),
		SessionID:   s.ID,
		Amount:      amount,
		Reason:      reason,
		PerformedBy: performedBy,
		CreatedAt:   shared.Now(),
	}, nil
}

// Close ends the shift
func (s *CashSession) Close() error {
	if !s.IsOpen() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot close a %s session", s.Status))
	}
	now := shared.Now()
	s.Status = StatusClosed
	s.EndTime = &now
	s.UpdatedAt = now
	return nil
}

// NewNegativeBalanceError reports a rejected cash-out
func NewNegativeBalanceError(requested, balance decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError(shared.CodeNegativeBalance,
		fmt.Sprintf("Cash-out of %s exceeds drawer balance of %s", requested.StringFixed(2), balance.StringFixed(2)))
}

// SessionEntry is one settled payment attributed to a session's running totals
type SessionEntry struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	TransactionID string
	ClassID       uuid.UUID
	CardType      catalog.CardType
	Amount        decimal.Decimal
	SettledAt     time.Time
	CreatedAt     time.Time
}

// NewSessionEntry creates an entry for the session
func NewSessionEntry(sessionID uuid.UUID, transactionID string, classID uuid.UUID, cardType catalog.CardType, amount decimal.Decimal, settledAt time.Time) (*SessionEntry, error) {
	if transactionID == "" {
		return nil, ErrEntryTransactionEmpty
	}
	if amount.IsNegative() {
		return nil, ErrNegativeEntryAmount
	}
	if !cardType.IsValid() {
		cardType = catalog.CardTypeFull
	}
	return &SessionEntry{
		ID:            uuid.New(),
		SessionID:     sessionID,
		TransactionID: transactionID,
		ClassID:       classID,
		CardType:      cardType,
		Amount:        amount,
		SettledAt:     settledAt,
		CreatedAt:     shared.Now(),
	}, nil
}

// EntriesUpTo returns the entries settled at or before cutoff
func EntriesUpTo(entries []SessionEntry, cutoff time.Time) []SessionEntry {
	out := make([]SessionEntry, 0, len(entries))
	for _, e := range entries {
		if !e.SettledAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// CashMovement is a cash-out from the drawer
type CashMovement struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	PerformedBy uuid.UUID
	CreatedAt   time.Time
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
