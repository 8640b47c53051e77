package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Publisher is the write side of the bus. Repositories depend on this, not on
// the full Bus, so relays and fan-outs can stand in.
type Publisher interface {
	Publish(ctx context.Context, evts ...Event)
}

// Handler reacts to one event. Returned errors are logged, never propagated
// to the publisher: by the time an event is published the transaction has
// already committed and nothing can roll it back.
type Handler func(ctx context.Context, e Event) error

// Subscription identifies one registered handler. Handlers are func values
// and not comparable, so unsubscribe works on the token instead.
type Subscription struct {
	id        uuid.UUID
	eventType string
}

// Bus is the in-process publish/subscribe mechanism. Dispatch is synchronous
// and per-event independent; no cross-entity ordering is guaranteed.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]busEntry
	logger   *slog.Logger

	onPublished      func(eventType string)
	onHandlerFailure func(eventType string)
}

type busEntry struct {
	id      uuid.UUID
	handler Handler
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger sets the logger for handler failures.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// WithPublishHooks wires observability counters for published events and
// handler failures.
func WithPublishHooks(onPublished, onHandlerFailure func(eventType string)) BusOption {
	return func(b *Bus) {
		b.onPublished = onPublished
		b.onHandlerFailure = onHandlerFailure
	}
}

// NewBus builds an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		handlers: make(map[string][]busEntry),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an event type (or WildcardType for all).
func (b *Bus) Subscribe(eventType string, h Handler) *Subscription {
	sub := &Subscription{id: uuid.New(), eventType: eventType}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], busEntry{id: sub.id, handler: h})
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a previously registered handler. Unknown subscriptions
// are a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.handlers[sub.eventType]
	for i, entry := range entries {
		if entry.id == sub.id {
			b.handlers[sub.eventType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Publish delivers each event to every handler registered for its type plus
// the wildcard handlers. Handler errors and panics are contained and logged
// individually; one failing subscriber cannot block the others.
func (b *Bus) Publish(ctx context.Context, evts ...Event) {
	for _, e := range evts {
		b.mu.RLock()
		entries := make([]busEntry, 0, len(b.handlers[e.Type])+len(b.handlers[WildcardType]))
		entries = append(entries, b.handlers[e.Type]...)
		entries = append(entries, b.handlers[WildcardType]...)
		b.mu.RUnlock()

		for _, entry := range entries {
			b.dispatch(ctx, entry, e)
		}
		if b.onPublished != nil {
			b.onPublished(e.Type)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, entry busEntry, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "event handler panicked",
				"event_type", e.Type, "event_id", e.ID, "panic", r)
			if b.onHandlerFailure != nil {
				b.onHandlerFailure(e.Type)
			}
		}
	}()
	if err := entry.handler(ctx, e); err != nil {
		b.logger.ErrorContext(ctx, "event handler failed",
			"event_type", e.Type, "event_id", e.ID,
			"aggregate_type", e.AggregateType, "aggregate_id", e.AggregateID,
			"error", err)
		if b.onHandlerFailure != nil {
			b.onHandlerFailure(e.Type)
		}
	}
}
