package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"

	"praxis/internal/platform/config"
	domerrors "praxis/pkg/domain-errors"
	"praxis/pkg/platform/circuit"
)

// Guarded wraps a provider client so every call passes through the circuit
// breaker. Provider rate limits (429) signal backpressure, not
// unavailability, and are excluded from failure counting; breaker rejections
// surface as Unavailable-coded domain errors distinct from provider failures.
type Guarded struct {
	client   Client
	breaker  *circuit.Breaker
	fallback func(ctx context.Context, req Request, result any) (*Response, error)
}

// GuardOption configures a Guarded client.
type GuardOption func(*Guarded)

// WithFallback registers a degraded-mode response used while the breaker is
// open (canned content, cached result). Without one, open-breaker calls fail
// with an Unavailable error.
func WithFallback(fn func(ctx context.Context, req Request, result any) (*Response, error)) GuardOption {
	return func(g *Guarded) { g.fallback = fn }
}

// Guard wraps client with a breaker configured from cfg.
func Guard(client Client, cfg config.BreakerConfig, breakerOpts []circuit.Option, opts ...GuardOption) *Guarded {
	baseOpts := []circuit.Option{
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.SuccessThreshold),
		circuit.WithWindow(cfg.Window),
		circuit.WithCooldown(cfg.Cooldown),
		circuit.WithIgnore(IsBackpressure),
	}
	g := &Guarded{
		client:  client,
		breaker: circuit.New("ai-provider", append(baseOpts, breakerOpts...)...),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Breaker exposes the underlying breaker for observability wiring.
func (g *Guarded) Breaker() *circuit.Breaker {
	return g.breaker
}

func (g *Guarded) Model() string {
	return g.client.Model()
}

// Chat calls the provider under the breaker.
func (g *Guarded) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	resp, err := circuit.Execute(ctx, g.breaker, func(ctx context.Context) (*Response, error) {
		return g.client.Chat(ctx, req, result)
	})
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, circuit.ErrOpen) {
		if g.fallback != nil {
			return g.fallback(ctx, req, result)
		}
		return nil, domerrors.Wrap(err, domerrors.CodeUnavailable, "ai provider circuit open")
	}
	return nil, domerrors.Wrap(err, domerrors.CodeUnavailable, "ai provider call failed")
}

// IsBackpressure reports provider rate-limit responses, which must not trip
// the breaker.
func IsBackpressure(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
