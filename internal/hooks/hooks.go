// Package hooks lets callers attach named handlers to tool-loop events.
//
// A Manager implements chain.Observer, so it can be passed to chain.WithObserver
// directly; every loop event is re-emitted to the handlers registered for its kind.
package hooks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/soyeahso/chainkit/internal/chain"
	"github.com/soyeahso/chainkit/internal/logging"
)

// Event names for the hook system. They match the chain event kinds.
const (
	EventDispatch   = string(chain.EventDispatch)
	EventResponse   = string(chain.EventResponse)
	EventToolStart  = string(chain.EventToolStart)
	EventToolFinish = string(chain.EventToolFinish)
	EventLoopDone   = string(chain.EventLoopDone)
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventDispatch,
	EventResponse,
	EventToolStart,
	EventToolFinish,
	EventLoopDone,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	id      string
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event and returns its registration id.
// The name identifies the handler for logging and for Off.
func (m *Manager) On(event, name string, handler Handler) string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{id: id, name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Str("id", id).Msg("hook registered")
	return id
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.remove(event, func(h namedHandler) bool { return h.name == name })
}

// Remove removes the single registration with the given id, whatever its event.
func (m *Manager) Remove(id string) {
	m.mu.RLock()
	var events []string
	for event := range m.handlers {
		events = append(events, event)
	}
	m.mu.RUnlock()
	for _, event := range events {
		m.remove(event, func(h namedHandler) bool { return h.id == id })
	}
}

func (m *Manager) remove(event string, match func(namedHandler) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[event]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if !match(h) {
			filtered = append(filtered, h)
		}
	}
	m.handlers[event] = filtered
}

// Emit dispatches an event to all registered handlers synchronously.
// Handlers are called in registration order. Errors are logged but do not
// prevent subsequent handlers from running.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	m.mu.RLock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}

	for _, h := range handlers {
		if err := h.handler(ctx, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

// Observe implements chain.Observer by emitting the event under its kind.
func (m *Manager) Observe(ctx context.Context, e chain.Event) {
	m.Emit(ctx, string(e.Kind), EventData(e))
}

// EventData flattens a loop event into a hook payload. Keys that do not apply to
// the event kind are omitted.
func EventData(e chain.Event) map[string]any {
	data := map[string]any{"iteration": e.Iteration}
	if e.Model != "" {
		data["model"] = e.Model
	}
	if e.Tool != "" {
		data["tool"] = e.Tool
		data["callId"] = e.CallID
	}
	switch e.Kind {
	case chain.EventResponse:
		data["toolCalls"] = e.ToolCalls
		data["durationMs"] = e.Duration.Milliseconds()
	case chain.EventToolFinish:
		data["outcome"] = e.Outcome()
		data["durationMs"] = e.Duration.Milliseconds()
	}
	if e.Err != nil {
		data["error"] = e.Err.Error()
	}
	return data
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the list of events that have at least one handler registered.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	return events
}

var _ chain.Observer = (*Manager)(nil)
