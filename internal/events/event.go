// Package events carries domain events from entity mutations to subscribers.
// Events are collected by the repository before commit and published only
// after the enclosing transaction commits: no observer ever sees an event for
// data that did not durably persist. Delivery is at-least-once; subscribers
// must be idempotent.
package events

import (
	"time"

	"github.com/google/uuid"
)

// WildcardType subscribes a handler to every event regardless of type.
// Relays that forward committed events to external transports use it.
const WildcardType = "*"

// Event is a fact about a committed state change.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Type          string         `json:"type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Payload       map[string]any `json:"payload"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// New builds an event stamped with a fresh ID and the current time.
func New(eventType, aggregateType, aggregateID string, payload map[string]any) Event {
	return Event{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}
