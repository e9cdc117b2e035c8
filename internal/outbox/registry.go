package outbox

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

var (
	ErrEventTypeRequired = errors.New("event type is required")
	ErrHandlerRequired   = errors.New("event handler is required")
)

// Handler consumes one delivered event.
type Handler func(ctx context.Context, event domain.Event) error

// Registry stores handlers by event type, preserving registration order.
// Registration happens during startup; Handle runs concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Register appends a handler for an event type.
func (r *Registry) Register(eventType string, handler Handler) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return ErrEventTypeRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], handler)

	return nil
}

// RegisterAll appends a handler for every known event type.
func (r *Registry) RegisterAll(handler Handler) error {
	for _, eventType := range domain.EventTypes() {
		if err := r.Register(eventType, handler); err != nil {
			return err
		}
	}
	return nil
}

// HandlersFor returns the handlers registered for an event type, in
// registration order. The returned slice must not be mutated.
func (r *Registry) HandlersFor(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[eventType]
}
