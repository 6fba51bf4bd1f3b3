package event

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// DefaultEventDedupeTTL bounds how long a handled event ID is remembered
const DefaultEventDedupeTTL = 24 * time.Hour

const eventKeyPrefix = "event:"

// IdempotencyMetrics tracks idempotency-related statistics
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotentHandler wraps an EventHandler so each event ID is handled once.
// A failed handling releases the key so a later delivery can retry.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithDedupeTTL overrides DefaultEventDedupeTTL
func WithDedupeTTL(ttl time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// WithIdempotencyMetrics sets the metrics collector
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		ttl:     DefaultEventDedupeTTL,
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the event types of the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes the event unless its ID was already handled
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := eventKeyPrefix + event.EventID().String()
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	}

	isNew, err := h.store.MarkProcessed(ctx, key, h.ttl)
	switch {
	case err != nil:
		// store outage: handle anyway, downstream writes are idempotent
		h.logger.Warn("idempotency check failed, handling anyway", append(fields, zap.Error(err))...)
	case !isNew:
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("duplicate event skipped", fields...)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		if ferr := h.store.Forget(ctx, key); ferr != nil {
			h.logger.Warn("failed to release idempotency key", append(fields, zap.Error(ferr))...)
		}
		return err
	}

	h.metrics.EventsProcessed.Add(1)
	return nil
}

// GetMetrics returns the metrics for this handler
func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

// Unwrap returns the underlying handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.handler
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)

// WrapHandlersWithIdempotency wraps each handler with the same store and options
func WrapHandlersWithIdempotency(
	handlers []shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) []shared.EventHandler {
	wrapped := make([]shared.EventHandler, len(handlers))
	for i, h := range handlers {
		wrapped[i] = NewIdempotentHandler(h, store, logger, opts...)
	}
	return wrapped
}
