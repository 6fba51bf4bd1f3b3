// Package cashsession runs cashier shifts: it attributes settled counter
// payments to the open session, reconciles running totals against payment
// records and produces session reports.
package cashsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/telemetry"
)

// CollectedPayments reads the payment records a session is reconciled against
type CollectedPayments interface {
	// FindSettledCollectedBy returns settled payments collected by a cashier
	// with processed_at in [from, to]
	FindSettledCollectedBy(ctx context.Context, cashierID uuid.UUID, from, to time.Time) ([]payment.Payment, error)
}

// DefaultAttributionGrace is how long a settled payment may stay missing from
// the session ledger before a report treats it as a mismatch
const DefaultAttributionGrace = 30 * time.Second

// SessionServiceConfig holds the collaborators of the session service
type SessionServiceConfig struct {
	Sessions       cashsession.SessionRepository
	Reports        cashsession.ReportRepository
	Payments       CollectedPayments
	Classes        catalog.ClassDirectory
	EventPublisher shared.EventPublisher
	Metrics        *telemetry.SettlementMetrics
	Logger         *zap.Logger

	// AttributionGrace defaults to DefaultAttributionGrace when zero
	AttributionGrace time.Duration
}

// SessionService manages cash sessions and their reports
type SessionService struct {
	sessions       cashsession.SessionRepository
	reports        cashsession.ReportRepository
	payments       CollectedPayments
	classes        catalog.ClassDirectory
	eventPublisher shared.EventPublisher
	metrics        *telemetry.SettlementMetrics
	logger         *zap.Logger
	grace          time.Duration
}

// NewSessionService creates a new SessionService
func NewSessionService(cfg SessionServiceConfig) *SessionService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	grace := cfg.AttributionGrace
	if grace <= 0 {
		grace = DefaultAttributionGrace
	}
	return &SessionService{
		sessions:       cfg.Sessions,
		reports:        cfg.Reports,
		payments:       cfg.Payments,
		classes:        cfg.Classes,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         logger,
		grace:          grace,
	}
}

// Open starts a shift. A cashier can hold only one open session.
func (s *SessionService) Open(ctx context.Context, req OpenSessionRequest) (*SessionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cashsession", "open",
		telemetry.SpanAttrCashierID, req.CashierID.String(),
	)
	defer span.End()

	if req.CashierID != uuid.Nil {
		existing, err := s.sessions.FindOpenByCashier(ctx, req.CashierID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to check open sessions: %w", err)
		}
		if existing != nil {
			telemetry.RecordError(span, cashsession.ErrSessionAlreadyOpen)
			return nil, cashsession.ErrSessionAlreadyOpen
		}
	}

	var sessionDate time.Time
	if req.SessionDate != nil {
		sessionDate = *req.SessionDate
	}
	session, err := cashsession.OpenSession(req.CashierID, req.OpeningBalance, sessionDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, cashsession.ErrSessionAlreadyOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	s.logger.Info("Cash session opened",
		zap.String("session_id", session.ID.String()),
		zap.String("cashier_id", session.CashierID.String()),
		zap.String("opening_balance", session.OpeningBalance.StringFixed(2)))
	s.publishEvents(ctx, session)

	resp := ToSessionResponse(session)
	return &resp, nil
}

// GetSession returns a session with its cash-outs
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	movements, err := s.sessions.FindCashOuts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash-outs: %w", err)
	}

	resp := ToSessionResponse(session)
	for i := range movements {
		resp.CashOuts = append(resp.CashOuts, ToCashMovementResponse(&movements[i]))
	}
	return &resp, nil
}

// CashOut takes cash out of an open session's drawer. The drawer balance
// never goes negative.
func (s *SessionService) CashOut(ctx context.Context, sessionID uuid.UUID, req CashOutRequest) (*CashOutResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cashsession", "cash_out",
		telemetry.SpanAttrSessionID, sessionID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)
	defer span.End()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	movement, err := session.CashOut(req.Amount, req.Reason, req.PerformedBy)
	if err != nil {
		result := "rejected"
		if shared.ErrorCode(err) == shared.CodeNegativeBalance {
			result = "negative_balance"
		}
		s.metrics.RecordCashOut(ctx, result)
		s.logger.Warn("Cash-out rejected",
			zap.String("session_id", sessionID.String()),
			zap.String("amount", req.Amount.String()),
			zap.String("balance", session.CashDrawerBalance().StringFixed(2)),
			zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.sessions.RecordCashOut(ctx, session, movement); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record cash-out: %w", err)
	}
	s.metrics.RecordCashOut(ctx, "accepted")
	s.logger.Info("Cash-out recorded",
		zap.String("session_id", sessionID.String()),
		zap.String("amount", movement.Amount.StringFixed(2)),
		zap.String("performed_by", movement.PerformedBy.String()),
		zap.String("balance", session.CashDrawerBalance().StringFixed(2)))

	return &CashOutResult{
		Session:  ToSessionResponse(session),
		Movement: ToCashMovementResponse(movement),
	}, nil
}

// GenerateReport reconciles a session at its cutoff and appends a draft
// report. Reports on a closed session are correction rows; the final report
// is only written by Close. Payments settled moments ago that the ledger has
// not picked up yet are left out of the draft.
func (s *SessionService) GenerateReport(ctx context.Context, sessionID uuid.UUID, req GenerateReportRequest) (*ReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cashsession", "generate_report",
		telemetry.SpanAttrSessionID, sessionID.String(),
		telemetry.SpanAttrReportType, req.ReportType,
	)
	defer span.End()

	reportType := cashsession.ReportType(req.ReportType)
	if reportType == "" {
		reportType = cashsession.ReportTypeSummary
	}
	if !reportType.IsValid() {
		telemetry.RecordError(span, cashsession.ErrInvalidReportType)
		return nil, cashsession.ErrInvalidReportType
	}

	session, entries, err := s.sessions.FindLedger(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report, _, err := s.buildReport(ctx, session, entries, reportType, session.Cutoff(shared.Now()), "generate_report")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.reports.Append(ctx, report); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	s.logger.Info("Session report generated",
		zap.String("session_id", sessionID.String()),
		zap.String("report_id", report.ID.String()),
		zap.String("report_type", string(reportType)),
		zap.Bool("session_closed", !session.IsOpen()),
		zap.String("total_collections", report.TotalCollections.StringFixed(2)),
		zap.Int("total_receipts", report.TotalReceipts))

	resp := ToReportResponse(report)
	return &resp, nil
}

// Close ends the shift and stores its final report in the same transaction.
// A reconciliation mismatch blocks the close, and so does a settled payment
// still waiting for attribution, which returns a retryable conflict.
func (s *SessionService) Close(ctx context.Context, sessionID uuid.UUID) (*CloseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cashsession", "close",
		telemetry.SpanAttrSessionID, sessionID.String(),
	)
	defer span.End()

	session, entries, err := s.sessions.FindLedger(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := session.Close(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report, inFlight, err := s.buildReport(ctx, session, entries, cashsession.ReportTypeFull, *session.EndTime, "close")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(inFlight) > 0 {
		telemetry.RecordError(span, cashsession.ErrSettlementInFlight)
		return nil, cashsession.ErrSettlementInFlight
	}
	if err := report.MarkFinal(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.sessions.CloseWithReport(ctx, session, report); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	s.logger.Info("Cash session closed",
		zap.String("session_id", sessionID.String()),
		zap.String("cashier_id", session.CashierID.String()),
		zap.String("final_report_id", report.ID.String()),
		zap.String("total_collections", report.TotalCollections.StringFixed(2)),
		zap.String("cash_drawer_balance", report.CashDrawerBalance.StringFixed(2)))

	session.AddDomainEvent(cashsession.NewSessionClosedEvent(session, report))
	s.publishEvents(ctx, session)

	return &CloseResult{
		Session:     ToSessionResponse(session),
		FinalReport: ToReportResponse(report),
	}, nil
}

// buildReport checks a ledger snapshot against the payment records and drafts
// a report at cutoff. The session counters must match every entry in the
// snapshot. Payment records are read after the snapshot, so a payment settled
// within the grace window and missing from it is still being attributed: it
// is returned in inFlight and left out of the report.
func (s *SessionService) buildReport(
	ctx context.Context,
	session *cashsession.CashSession,
	entries []cashsession.SessionEntry,
	reportType cashsession.ReportType,
	cutoff time.Time,
	operation string,
) (report *cashsession.SessionReport, inFlight []string, err error) {
	attributed := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		attributed[e.TransactionID] = struct{}{}
	}

	readAt := shared.Now()
	paid, err := s.payments.FindSettledCollectedBy(ctx, session.CashierID, session.StartTime, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load collected payments: %w", err)
	}
	lines := make([]cashsession.ReportLine, 0, len(paid))
	for i := range paid {
		p := &paid[i]
		if _, ok := attributed[p.TransactionID]; !ok && s.awaitingAttribution(p, readAt) {
			inFlight = append(inFlight, p.TransactionID)
			continue
		}
		lines = append(lines, lineFromPayment(p))
	}
	if len(inFlight) > 0 {
		s.logger.Warn("Settled payments awaiting attribution left out of report",
			zap.String("session_id", session.ID.String()),
			zap.String("operation", operation),
			zap.Strings("transaction_ids", inFlight))
	}

	classes, err := s.lookupClasses(ctx, lines)
	if err != nil {
		return nil, nil, err
	}
	recomputed := cashsession.Aggregate(lines, classes)
	ledger := cashsession.Aggregate(ledgerLines(cashsession.EntriesUpTo(entries, cutoff)), classes)

	mismatch := compareCounters(session, cashsession.Aggregate(ledgerLines(entries), classes), cutoff)
	if mismatch == nil {
		mismatch = cashsession.Compare(session.ID, cutoff, recomputed, ledger)
	}
	if mismatch != nil {
		s.metrics.RecordReconciliationMismatch(ctx, operation)
		s.logger.Error("Cash session reconciliation mismatch",
			zap.String("session_id", session.ID.String()),
			zap.String("operation", operation),
			zap.Time("cutoff", cutoff),
			zap.Error(mismatch))
		return nil, nil, mismatch
	}

	report, err = cashsession.NewReport(session, reportType, recomputed, lines, cutoff)
	if err != nil {
		return nil, nil, err
	}
	return report, inFlight, nil
}

// awaitingAttribution reports whether p settled recently enough that its
// PaymentSettled event may not have reached the ledger yet
func (s *SessionService) awaitingAttribution(p *payment.Payment, readAt time.Time) bool {
	return p.SettledAt != nil && readAt.Sub(*p.SettledAt) < s.grace
}

func ledgerLines(entries []cashsession.SessionEntry) []cashsession.ReportLine {
	lines := make([]cashsession.ReportLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, cashsession.ReportLine{
			TransactionID: e.TransactionID,
			ClassID:       e.ClassID,
			CardType:      e.CardType,
			Amount:        e.Amount,
			SettledAt:     e.SettledAt,
		})
	}
	return lines
}

func (s *SessionService) lookupClasses(ctx context.Context, lines []cashsession.ReportLine) (map[uuid.UUID]*catalog.Class, error) {
	if s.classes == nil || len(lines) == 0 {
		return nil, nil
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ClassID]; ok {
			continue
		}
		seen[l.ClassID] = struct{}{}
		ids = append(ids, l.ClassID)
	}
	classes, err := s.classes.GetClasses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load classes: %w", err)
	}
	return classes, nil
}

func lineFromPayment(p *payment.Payment) cashsession.ReportLine {
	cardType := p.Fee.CardType
	if !cardType.IsValid() {
		cardType = catalog.CardTypeFull
	}
	line := cashsession.ReportLine{
		TransactionID: p.TransactionID,
		ClassID:       p.ClassID,
		CardType:      cardType,
		Amount:        p.Amount(),
	}
	if p.ProcessedAt != nil {
		line.SettledAt = *p.ProcessedAt
	}
	return line
}

func compareCounters(session *cashsession.CashSession, ledger cashsession.Totals, cutoff time.Time) error {
	if ledger.Collections.Equal(session.TotalCollections) && ledger.Receipts == session.TotalReceipts {
		return nil
	}
	return &cashsession.MismatchError{
		SessionID:             session.ID,
		Cutoff:                cutoff,
		RecomputedCollections: ledger.Collections,
		StoredCollections:     session.TotalCollections,
		RecomputedReceipts:    ledger.Receipts,
		StoredReceipts:        session.TotalReceipts,
		Details:               []string{"session counters differ from ledger"},
	}
}

// ListReports returns the report history
func (s *SessionService) ListReports(ctx context.Context, filter ReportListFilter) ([]ReportResponse, int64, error) {
	list, total, err := s.reports.FindAll(ctx, filter.ToDomain())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return ToReportResponses(list), total, nil
}

// GetReport returns a report by ID
func (s *SessionService) GetReport(ctx context.Context, id uuid.UUID) (*ReportResponse, error) {
	r, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToReportResponse(r)
	return &resp, nil
}

// AnnotateReport sets notes on a draft report. Final reports are immutable.
func (s *SessionService) AnnotateReport(ctx context.Context, id uuid.UUID, req AnnotateReportRequest) (*ReportResponse, error) {
	r, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.Annotate(req.Notes); err != nil {
		return nil, err
	}
	if err := s.reports.UpdateNotes(ctx, r); err != nil {
		if shared.ErrorCode(err) == shared.CodeImmutableReport {
			return nil, err
		}
		return nil, fmt.Errorf("failed to annotate report: %w", err)
	}
	resp := ToReportResponse(r)
	return &resp, nil
}

// publishEvents publishes and clears the session's pending domain events
func (s *SessionService) publishEvents(ctx context.Context, session *cashsession.CashSession) {
	events := session.PullDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish cash session events",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
	}
}
