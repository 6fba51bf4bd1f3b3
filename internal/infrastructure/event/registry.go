package event

import (
	"slices"
	"sync"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// HandlerRegistry maps event types to the handlers subscribed to them.
// Handlers registered without event types receive every event.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: make(map[string][]shared.EventHandler),
	}
}

// Register adds a handler for the given event types. Registering the same
// handler twice for a type is a no-op.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = appendUnique(r.wildcard, handler)
		return
	}
	for _, eventType := range eventTypes {
		r.byType[eventType] = appendUnique(r.byType[eventType], handler)
	}
}

// Unregister removes a handler from every event type
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for eventType, handlers := range r.byType {
		remaining := without(handlers, handler)
		if len(remaining) == 0 {
			delete(r.byType, eventType)
			continue
		}
		r.byType[eventType] = remaining
	}
}

// GetHandlers returns the type-specific handlers followed by the wildcard handlers
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.byType[eventType]
	result := make([]shared.EventHandler, 0, len(typed)+len(r.wildcard))
	result = append(result, typed...)
	return append(result, r.wildcard...)
}

// GetAllHandlers returns every distinct registered handler
func (r *HandlerRegistry) GetAllHandlers() []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []shared.EventHandler
	for _, h := range r.wildcard {
		result = appendUnique(result, h)
	}
	for _, eventType := range r.eventTypesLocked() {
		for _, h := range r.byType[eventType] {
			result = appendUnique(result, h)
		}
	}
	return result
}

// EventTypes returns the event types that have at least one handler, sorted
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eventTypesLocked()
}

func (r *HandlerRegistry) eventTypesLocked() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func appendUnique(handlers []shared.EventHandler, h shared.EventHandler) []shared.EventHandler {
	if slices.Contains(handlers, h) {
		return handlers
	}
	return append(handlers, h)
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	return slices.DeleteFunc(slices.Clone(handlers), func(h shared.EventHandler) bool { return h == target })
}
