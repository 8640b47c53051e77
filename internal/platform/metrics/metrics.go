package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the resilience framework.
type Metrics struct {
	RetryAttempts        *prometheus.CounterVec
	BreakerTransitions   *prometheus.CounterVec
	BreakerRejections    *prometheus.CounterVec
	EventsPublished      *prometheus.CounterVec
	EventHandlerFailures *prometheus.CounterVec
	AICalls              *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "praxis_retry_attempts_total",
			Help: "Retry attempts per domain operation",
		}, []string{"domain", "operation"}),
		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "praxis_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"breaker", "to"}),
		BreakerRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "praxis_breaker_rejections_total",
			Help: "Calls rejected while a breaker was open",
		}, []string{"breaker"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "praxis_events_published_total",
			Help: "Domain events published after commit",
		}, []string{"type"}),
		EventHandlerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "praxis_event_handler_failures_total",
			Help: "Event handler errors and panics, contained by the bus",
		}, []string{"type"}),
		AICalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "praxis_ai_calls_total",
			Help: "Guarded AI provider calls by outcome",
		}, []string{"outcome"}),
	}
}
