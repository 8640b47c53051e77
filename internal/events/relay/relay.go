// Package relay forwards committed domain events to external transports.
// Relays subscribe to the bus wildcard, so they only ever see events for data
// that durably persisted. Delivery stays at-least-once end to end; transport
// errors are logged, never propagated back into the publishing flow.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"praxis/internal/events"
)

// Sink is one external event transport.
type Sink interface {
	Name() string
	Send(ctx context.Context, e events.Event, payload []byte) error
}

// Attach subscribes the sink to every event on the bus. The returned
// subscription detaches it.
func Attach(bus *events.Bus, sink Sink, logger *slog.Logger) *events.Subscription {
	if logger == nil {
		logger = slog.Default()
	}
	return bus.Subscribe(events.WildcardType, func(ctx context.Context, e events.Event) error {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%s relay: marshal event %s: %w", sink.Name(), e.ID, err)
		}
		if err := sink.Send(ctx, e, payload); err != nil {
			return fmt.Errorf("%s relay: send event %s: %w", sink.Name(), e.ID, err)
		}
		logger.DebugContext(ctx, "event relayed",
			"sink", sink.Name(), "event_type", e.Type, "event_id", e.ID)
		return nil
	})
}
