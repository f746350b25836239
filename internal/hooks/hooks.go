// Package hooks dispatches named socket and lifecycle events to registered handlers.
package hooks

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/soyeahso/matchchat/internal/logging"
)

// Payload carries one event to handlers.
type Payload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event data into v.
func (p Payload) Decode(v any) error {
	if len(p.Data) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(p.Data, v)
}

// Handler handles one event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager holds handler registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates an empty dispatcher.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event. Registering the same name twice
// for one event replaces the earlier handler, so a component never receives
// the same event twice.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hs := m.handlers[event]
	for i, h := range hs {
		if h.name == name {
			hs[i].handler = handler
			return
		}
	}
	m.handlers[event] = append(hs, namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("handler registered")
}

// Off removes the named handler from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
	if len(m.handlers[event]) == 0 {
		delete(m.handlers, event)
	}
}

// Emit dispatches raw event data to all handlers synchronously, in
// registration order. Handler errors are logged and do not stop the others.
func (m *Manager) Emit(ctx context.Context, event string, data json.RawMessage) {
	m.mu.RLock()
	handlers := slices.Clone(m.handlers[event])
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
				Msg("handler error")
		}
	}
}

// EmitValue marshals v and dispatches it. A nil v dispatches no data.
func (m *Manager) EmitValue(ctx context.Context, event string, v any) {
	var data json.RawMessage
	if v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			m.log.Error().Err(err).Str("event", event).Msg("encoding event data")
			return
		}
		data = raw
	}
	m.Emit(ctx, event, data)
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted list of events with at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event := range m.handlers {
		events = append(events, event)
	}
	slices.Sort(events)
	return events
}
