// Package events carries module lifecycle notifications from the resolver
// to whoever wants them: metrics, logs, the HTTP layer.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Lifecycle event names.
const (
	ModuleLoaded   = "module.loaded"
	ModuleFailed   = "module.failed"
	ModuleNotFound = "module.not_found"
	ConfigReloaded = "config.reloaded"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "module.loaded").
	Name string

	// Module is the module the event concerns.
	Module string

	// Source is where the module was found, if anywhere.
	Source string

	// Records lists the record types of a loaded module.
	Records []string

	// Err is set for failures.
	Err error

	// Duration is how long the operation took.
	Duration time.Duration
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "module.loaded" - exact match
//   - "module.*" - all module events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish calls every matching handler synchronously, exact subscribers
// first, then prefix wildcards, then "*". Handler errors are logged and do
// not stop delivery.
func (b *Bus) Publish(ctx context.Context, event Event) {
	matched := b.match(event.Name)

	b.logger.Debug().
		Str("event", event.Name).
		Str("module", event.Module).
		Int("handlers", len(matched)).
		Msg("event emitted")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers would receive the event.
func (b *Bus) HasSubscribers(event string) bool {
	return len(b.match(event)) > 0
}

// match snapshots the handlers for name so that handlers may subscribe
// without deadlocking.
func (b *Bus) match(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if prefix, _, ok := strings.Cut(name, "."); ok && prefix != "" {
		matched = append(matched, b.handlers[prefix+".*"]...)
	}
	matched = append(matched, b.handlers["*"]...)
	return matched
}
