package relay

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"praxis/internal/events"
	"praxis/internal/platform/config"
)

// KafkaSink produces events to a single topic, keyed by aggregate id so all
// events for one aggregate land on the same partition in order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects a producer for the configured brokers.
func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: cfg.Topic}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, e events.Event, payload []byte) error {
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(e.AggregateID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "aggregate_type", Value: []byte(e.AggregateType)},
		},
	}
	return s.client.ProduceSync(ctx, record).FirstErr()
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() {
	s.client.Close()
}
