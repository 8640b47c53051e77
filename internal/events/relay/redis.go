package relay

import (
	"context"

	"github.com/redis/go-redis/v9"

	"praxis/internal/events"
)

// RedisSink publishes events to Redis pub/sub, one channel per event type.
// Subscribers listen on "praxis.events.<type>" (or psubscribe the prefix).
type RedisSink struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSink builds a sink over an established Redis client.
func NewRedisSink(client redis.UniversalClient, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "praxis.events"
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, e events.Event, payload []byte) error {
	return s.client.Publish(ctx, s.prefix+"."+e.Type, payload).Err()
}
