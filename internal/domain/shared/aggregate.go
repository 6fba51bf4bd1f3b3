package shared

// BaseAggregateRoot carries the optimistic-lock version and the events an
// aggregate raised since it was loaded. Repositories persist Version and
// services publish the pending events after a successful save.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	pending []DomainEvent
}

// NewBaseAggregateRoot creates a root at version 1 with a fresh identity
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// AddDomainEvent queues an event for publication
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the queued events without clearing them
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

// ClearDomainEvents drops the queued events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

// PullDomainEvents returns the queued events and clears the queue
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
