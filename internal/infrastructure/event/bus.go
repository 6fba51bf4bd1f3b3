package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// FailureRecorder is notified when a handler returns an error or panics
type FailureRecorder interface {
	RecordHandlerFailure(ctx context.Context, eventType string)
}

// InMemoryEventBus implements EventBus with synchronous in-process dispatch.
// Handlers run in subscription order on the publisher's goroutine; a failing
// handler never stops the others and never fails the publisher.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	failures FailureRecorder
	running  atomic.Bool
}

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithFailureRecorder attaches a recorder for handler failures
func WithFailureRecorder(r FailureRecorder) BusOption {
	return func(b *InMemoryEventBus) {
		b.failures = r
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish publishes events to all registered handlers synchronously
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatchToHandler(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("aggregate_id", event.AggregateID().String()),
					zap.Error(err),
				)
				if b.failures != nil {
					b.failures.RecordHandlerFailure(ctx, event.EventType())
				}
			}
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start marks the bus as running
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started", zap.Int("handlers", len(b.registry.GetAllHandlers())))
	return nil
}

// Stop marks the bus as stopped. Dispatch is synchronous so there is
// nothing in flight to drain once publishers have returned.
func (b *InMemoryEventBus) Stop(_ context.Context) error {
	b.running.Store(false)
	b.logger.Info("event bus stopped")
	return nil
}

// Running reports whether Start has been called without a matching Stop
func (b *InMemoryEventBus) Running() bool {
	return b.running.Load()
}

// dispatchToHandler dispatches an event to a handler, converting a panic to an error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
