// Package app composes the object graph: storage, event bus, relays,
// repositories, the guarded AI client and the domain services. Hosts embed the
// App and route requests to its services; cmd/server uses it for the ops
// binary.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"praxis/internal/ai"
	challengeservice "praxis/internal/challenge/service"
	challengestore "praxis/internal/challenge/store"
	evaluationservice "praxis/internal/evaluation/service"
	evaluationstore "praxis/internal/evaluation/store"
	"praxis/internal/events"
	"praxis/internal/events/relay"
	"praxis/internal/platform/config"
	"praxis/internal/platform/metrics"
	redisplatform "praxis/internal/platform/redis"
	"praxis/internal/storage"
	"praxis/internal/storage/postgres"
	domerrors "praxis/pkg/domain-errors"
	"praxis/pkg/platform/circuit"
	"praxis/pkg/platform/retry"
)

// App is the wired dependency graph.
type App struct {
	Bus         *events.Bus
	Challenges  *challengeservice.Service
	Evaluations *evaluationservice.Service
	AI          *ai.Guarded
	Metrics     *metrics.Metrics

	// DB and Redis are nil when the respective backend is not configured.
	DB    *sql.DB
	Redis *redisplatform.Client

	kafka *relay.KafkaSink
}

// New wires the App from configuration. Postgres backs storage when a
// database URL is configured, the in-memory client otherwise.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	m := metrics.New()
	a := &App{Metrics: m}

	var client storage.Client
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.DB = db
		client = postgres.New(db)
		log.Info("storage ready", "backend", "postgres")
	} else {
		client = storage.NewMemory()
		log.Warn("no database configured, using in-memory storage")
	}

	a.Bus = events.NewBus(
		events.WithBusLogger(log),
		events.WithPublishHooks(
			func(eventType string) { m.EventsPublished.WithLabelValues(eventType).Inc() },
			func(eventType string) { m.EventHandlerFailures.WithLabelValues(eventType).Inc() },
		),
	)

	redisClient, err := redisplatform.New(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if redisClient != nil {
		a.Redis = redisClient
		relay.Attach(a.Bus, relay.NewRedisSink(redisClient, ""), log)
		log.Info("redis event relay attached")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := relay.NewKafkaSink(cfg.Kafka)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.kafka = kafkaSink
		relay.Attach(a.Bus, kafkaSink, log)
		log.Info("kafka event relay attached", "topic", cfg.Kafka.Topic)
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Retry.MaxRetries
	policy.BaseDelay = cfg.Retry.BaseDelay
	policy.MaxDelay = cfg.Retry.MaxDelay
	policy.OnRetry = func(domain, operation string) {
		m.RetryAttempts.WithLabelValues(domain, operation).Inc()
	}

	challenges, err := challengestore.New(client, a.Bus, log, &policy)
	if err != nil {
		a.Close()
		return nil, err
	}
	evaluations, err := evaluationstore.New(client, a.Bus, log, &policy)
	if err != nil {
		a.Close()
		return nil, err
	}

	provider, err := ai.New(cfg.AI, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.AI = ai.Guard(provider, cfg.Breaker, []circuit.Option{
		circuit.WithOnStateChange(func(name string, change circuit.StateChange) {
			log.Warn("breaker state changed",
				"breaker", name, "from", change.From.String(), "to", change.To.String())
			m.BreakerTransitions.WithLabelValues(name, change.To.String()).Inc()
		}),
		circuit.WithOnRejection(func(name string) {
			m.BreakerRejections.WithLabelValues(name).Inc()
		}),
	})

	a.Challenges = challengeservice.New(challenges, a.AI,
		challengeservice.WithLogger(log), challengeservice.WithMetrics(m))
	a.Evaluations = evaluationservice.New(evaluations, challenges, a.AI,
		evaluationservice.WithLogger(log), evaluationservice.WithMetrics(m))

	// A scored evaluation completes its challenge. The handler runs after
	// the evaluation committed; completing an already-completed challenge is
	// a lifecycle validation error and not worth retrying.
	a.Bus.Subscribe("evaluation.scored", func(ctx context.Context, e events.Event) error {
		challengeID, _ := e.Payload["challengeId"].(string)
		if challengeID == "" {
			return nil
		}
		_, err := a.Challenges.Complete(ctx, challengeID)
		if domerrors.HasCode(err, domerrors.CodeValidation) {
			return nil
		}
		return err
	})

	return a, nil
}

// Close releases the backends the App opened.
func (a *App) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
