package cashsession

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/telemetry"
)

const defaultAttributionAttempts = 5

// AttributionHandler adds settled counter payments to the collecting
// cashier's open session
type AttributionHandler struct {
	sessions    cashsession.SessionRepository
	maxAttempts int
	logger      *zap.Logger
}

// NewAttributionHandler creates a new handler for PaymentSettled events
func NewAttributionHandler(sessions cashsession.SessionRepository, logger *zap.Logger) *AttributionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttributionHandler{
		sessions:    sessions,
		maxAttempts: defaultAttributionAttempts,
		logger:      logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *AttributionHandler) EventTypes() []string {
	return []string{payment.EventTypePaymentSettled}
}

// Handle processes a PaymentSettledEvent
func (h *AttributionHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	settled, ok := event.(*payment.PaymentSettledEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", payment.EventTypePaymentSettled),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			payment.EventTypePaymentSettled, event.EventType())
	}
	if settled.CollectedBy == nil {
		return nil
	}
	return h.Attribute(ctx, settled)
}

// Attribute records the payment on the cashier's open session. Payments
// settled before the session started, or with no open session, are skipped.
// Version conflicts reload the session and try again; a transaction already
// in the ledger is not counted twice.
func (h *AttributionHandler) Attribute(ctx context.Context, e *payment.PaymentSettledEvent) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "cashsession", "attribute",
		telemetry.SpanAttrTransactionID, e.TransactionID,
	)
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		err := h.attributeOnce(ctx, e)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			telemetry.RecordError(span, err)
			return err
		}
		lastErr = err
		h.logger.Debug("Session changed during attribution, retrying",
			zap.String("transaction_id", e.TransactionID),
			zap.Int("attempt", attempt))
	}

	telemetry.RecordError(span, lastErr)
	h.logger.Error("Failed to attribute payment to cash session",
		zap.String("transaction_id", e.TransactionID),
		zap.Int("attempts", h.maxAttempts),
		zap.Error(lastErr))
	return fmt.Errorf("failed to attribute payment %s: %w", e.TransactionID, lastErr)
}

func (h *AttributionHandler) attributeOnce(ctx context.Context, e *payment.PaymentSettledEvent) error {
	session, err := h.sessions.FindOpenByCashier(ctx, *e.CollectedBy)
	if err != nil {
		return fmt.Errorf("failed to find open session: %w", err)
	}
	if session == nil || !session.Accepts(e.CollectedBy, e.ProcessedAt) {
		h.logger.Debug("Settled payment not attributable to an open session",
			zap.String("transaction_id", e.TransactionID),
			zap.String("cashier_id", e.CollectedBy.String()))
		return nil
	}

	entry, err := cashsession.NewSessionEntry(session.ID, e.TransactionID, e.ClassID, e.CardType, e.Amount, e.ProcessedAt)
	if err != nil {
		return err
	}
	if err := session.Attribute(entry); err != nil {
		return err
	}

	added, err := h.sessions.AddEntry(ctx, session, entry)
	if err != nil {
		return err
	}
	if !added {
		h.logger.Info("Payment already attributed to session",
			zap.String("transaction_id", e.TransactionID),
			zap.String("session_id", session.ID.String()))
		return nil
	}

	h.logger.Info("Payment attributed to cash session",
		zap.String("transaction_id", e.TransactionID),
		zap.String("session_id", session.ID.String()),
		zap.String("amount", e.Amount.StringFixed(2)),
		zap.String("total_collections", session.TotalCollections.StringFixed(2)),
		zap.Int("total_receipts", session.TotalReceipts))
	return nil
}
