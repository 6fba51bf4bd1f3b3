package cashsession

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Report errors
var (
	ErrReportNotFound     = shared.NewNotFoundError("Session report not found")
	ErrInvalidReportType  = shared.NewValidationError("Report type must be summary or full")
	ErrInconsistentTotals = shared.NewDomainError(shared.CodeReconciliationMismatch, "Per-class breakdown does not add up to report totals")
)

// ReportType selects how much detail a report carries
type ReportType string

const (
	// ReportTypeSummary carries totals, card summary and per-class breakdown
	ReportTypeSummary ReportType = "summary"
	// ReportTypeFull additionally lists every transaction
	ReportTypeFull ReportType = "full"
)

// IsValid checks if the report type is valid
func (t ReportType) IsValid() bool {
	return t == ReportTypeSummary || t == ReportTypeFull
}

// CardSummary buckets collections by the card tier used
type CardSummary struct {
	FullCount  int             `json:"full_count"`
	FullAmount decimal.Decimal `json:"full_amount"`
	HalfCount  int             `json:"half_count"`
	HalfAmount decimal.Decimal `json:"half_amount"`
	FreeCount  int             `json:"free_count"`
	FreeAmount decimal.Decimal `json:"free_amount"`
}

func (c *CardSummary) add(cardType catalog.CardType, amount decimal.Decimal) {
	switch cardType {
	case catalog.CardTypeHalf:
		c.HalfCount++
		c.HalfAmount = c.HalfAmount.Add(amount)
	case catalog.CardTypeFree:
		c.FreeCount++
		c.FreeAmount = c.FreeAmount.Add(amount)
	default:
		c.FullCount++
		c.FullAmount = c.FullAmount.Add(amount)
	}
}

// Count returns the number of receipts across all tiers
func (c CardSummary) Count() int {
	return c.FullCount + c.HalfCount + c.FreeCount
}

// Amount returns the collected amount across all tiers
func (c CardSummary) Amount() decimal.Decimal {
	return c.FullAmount.Add(c.HalfAmount).Add(c.FreeAmount)
}

// ClassBreakdown is the per-class line of a report
type ClassBreakdown struct {
	ClassID     uuid.UUID       `json:"class_id"`
	ClassName   string          `json:"class_name"`
	Teacher     string          `json:"teacher"`
	FullCount   int             `json:"full_count"`
	HalfCount   int             `json:"half_count"`
	FreeCount   int             `json:"free_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TxCount     int             `json:"tx_count"`
}

// ReportLine is one transaction counted in a report
type ReportLine struct {
	TransactionID string           `json:"transaction_id"`
	ClassID       uuid.UUID        `json:"class_id"`
	CardType      catalog.CardType `json:"card_type"`
	Amount        decimal.Decimal  `json:"amount"`
	SettledAt     time.Time        `json:"settled_at"`
}

// Totals is the aggregate of a set of report lines
type Totals struct {
	Collections decimal.Decimal
	Receipts    int
	Cards       CardSummary
	PerClass    []ClassBreakdown
}

// Aggregate buckets lines by class and card tier. Class names come from the
// directory snapshot; unknown classes keep an empty name. The breakdown is
// ordered by class name then ID so equal inputs give equal reports.
func Aggregate(lines []ReportLine, classes map[uuid.UUID]*catalog.Class) Totals {
	t := Totals{
		Collections: decimal.Zero,
		Cards: CardSummary{
			FullAmount: decimal.Zero,
			HalfAmount: decimal.Zero,
			FreeAmount: decimal.Zero,
		},
	}
	byClass := make(map[uuid.UUID]*ClassBreakdown)

	for _, l := range lines {
		t.Collections = t.Collections.Add(l.Amount)
		t.Receipts++
		t.Cards.add(l.CardType, l.Amount)

		cb, ok := byClass[l.ClassID]
		if !ok {
			cb = &ClassBreakdown{ClassID: l.ClassID, TotalAmount: decimal.Zero}
			if c, found := classes[l.ClassID]; found && c != nil {
				cb.ClassName = c.DisplayName()
				cb.Teacher = c.Teacher
			}
			byClass[l.ClassID] = cb
		}
		switch l.CardType {
		case catalog.CardTypeHalf:
			cb.HalfCount++
		case catalog.CardTypeFree:
			cb.FreeCount++
		default:
			cb.FullCount++
		}
		cb.TotalAmount = cb.TotalAmount.Add(l.Amount)
		cb.TxCount++
	}

	t.PerClass = make([]ClassBreakdown, 0, len(byClass))
	for _, cb := range byClass {
		t.PerClass = append(t.PerClass, *cb)
	}
	sort.Slice(t.PerClass, func(i, j int) bool {
		a, b := t.PerClass[i], t.PerClass[j]
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		return a.ClassID.String() < b.ClassID.String()
	})
	return t
}

// CheckConsistency verifies the per-class breakdown and card summary add up
// to the totals
func (t Totals) CheckConsistency() error {
	sum := decimal.Zero
	count := 0
	for _, cb := range t.PerClass {
		sum = sum.Add(cb.TotalAmount)
		count += cb.TxCount
		if cb.FullCount+cb.HalfCount+cb.FreeCount != cb.TxCount {
			return ErrInconsistentTotals
		}
	}
	if !sum.Equal(t.Collections) || count != t.Receipts {
		return ErrInconsistentTotals
	}
	if t.Cards.Count() != t.Receipts || !t.Cards.Amount().Equal(t.Collections) {
		return ErrInconsistentTotals
	}
	return nil
}

// MismatchError reports recomputed totals that disagree with stored totals.
// It is never resolved automatically.
type MismatchError struct {
	SessionID             uuid.UUID
	Cutoff                time.Time
	RecomputedCollections decimal.Decimal
	StoredCollections     decimal.Decimal
	RecomputedReceipts    int
	StoredReceipts        int
	Details               []string
}

// Error implements the error interface
func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("Session %s totals mismatch at %s: recomputed %s/%d, stored %s/%d",
		e.SessionID, e.Cutoff.Format(time.RFC3339),
		e.RecomputedCollections.StringFixed(2), e.RecomputedReceipts,
		e.StoredCollections.StringFixed(2), e.StoredReceipts)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// Unwrap lets errors.Is match shared.ErrReconciliationMismatch
func (e *MismatchError) Unwrap() error {
	return shared.ErrReconciliationMismatch
}

// Compare returns a MismatchError when the two totals differ in collections,
// receipts or any per-class figure, and nil when they agree
func Compare(sessionID uuid.UUID, cutoff time.Time, recomputed, stored Totals) error {
	var details []string
	if !recomputed.Collections.Equal(stored.Collections) {
		details = append(details, "collections differ")
	}
	if recomputed.Receipts != stored.Receipts {
		details = append(details, "receipt counts differ")
	}

	storedByClass := make(map[uuid.UUID]ClassBreakdown, len(stored.PerClass))
	for _, cb := range stored.PerClass {
		storedByClass[cb.ClassID] = cb
	}
	for _, r := range recomputed.PerClass {
		s, ok := storedByClass[r.ClassID]
		if !ok {
			details = append(details, fmt.Sprintf("class %s missing from stored totals", r.ClassID))
			continue
		}
		delete(storedByClass, r.ClassID)
		if !r.TotalAmount.Equal(s.TotalAmount) || r.TxCount != s.TxCount {
			details = append(details, fmt.Sprintf("class %s differs", r.ClassID))
		}
	}
	for id := range storedByClass {
		details = append(details, fmt.Sprintf("class %s has no recomputed payments", id))
	}

	if len(details) == 0 {
		return nil
	}
	sort.Strings(details)
	return &MismatchError{
		SessionID:             sessionID,
		Cutoff:                cutoff,
		RecomputedCollections: recomputed.Collections,
		StoredCollections:     stored.Collections,
		RecomputedReceipts:    recomputed.Receipts,
		StoredReceipts:        stored.Receipts,
		Details:               details,
	}
}

// SessionReport is a snapshot of a session's aggregates. A final report is
// written once, at close, and never changes afterwards.
type SessionReport struct {
	ID                uuid.UUID
	SessionID         uuid.UUID
	CashierID         uuid.UUID
	SessionDate       time.Time
	ReportType        ReportType
	GeneratedAt       time.Time
	CutoffAt          time.Time
	OpeningBalance    decimal.Decimal
	TotalCollections  decimal.Decimal
	TotalReceipts     int
	CashOutAmount     decimal.Decimal
	ExpectedClosing   decimal.Decimal
	CashDrawerBalance decimal.Decimal
	CardSummary       CardSummary
	PerClassBreakdown []ClassBreakdown
	Transactions      []ReportLine
	IsFinal           bool
	Notes             string
}

// NewReport builds a draft report from recomputed totals
func NewReport(s *CashSession, reportType ReportType, totals Totals, lines []ReportLine, cutoff time.Time) (*SessionReport, error) {
	if !reportType.IsValid() {
		return nil, ErrInvalidReportType
	}
	if err := totals.CheckConsistency(); err != nil {
		return nil, err
	}
	expected := s.OpeningBalance.Add(totals.Collections)
	r := &SessionReport{
		ID:                uuid.New(),
		SessionID:         s.ID,
		CashierID:         s.CashierID,
		SessionDate:       s.SessionDate,
		ReportType:        reportType,
		GeneratedAt:       shared.Now(),
		CutoffAt:          cutoff,
		OpeningBalance:    s.OpeningBalance,
		TotalCollections:  totals.Collections,
		TotalReceipts:     totals.Receipts,
		CashOutAmount:     s.CashOutAmount,
		ExpectedClosing:   expected,
		CashDrawerBalance: expected.Sub(s.CashOutAmount),
		CardSummary:       totals.Cards,
		PerClassBreakdown: totals.PerClass,
	}
	if reportType == ReportTypeFull {
		r.Transactions = lines
	}
	return r, nil
}

// MarkFinal turns a draft into the session's final report
func (r *SessionReport) MarkFinal() error {
	if r.IsFinal {
		return ErrImmutable(r.ID)
	}
	r.IsFinal = true
	return nil
}

// Annotate sets operator notes on a draft report
func (r *SessionReport) Annotate(notes string) error {
	if r.IsFinal {
		return ErrImmutable(r.ID)
	}
	r.Notes = strings.TrimSpace(notes)
	return nil
}

// ErrImmutable is returned for any attempt to change a final report
func ErrImmutable(reportID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(shared.CodeImmutableReport,
		fmt.Sprintf("Report %s is final and cannot be modified; generate a correction instead", reportID))
}
