package shared

import "context"

// EventHandler reacts to published domain events
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the subscribed types; empty means every event
	EventTypes() []string
}

// EventPublisher delivers events to subscribed handlers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is an EventPublisher that handlers can subscribe to
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
