// Package retry wraps store and provider round-trips with bounded
// exponential-backoff retry. Only errors classified transient are retried;
// validation and not-found failures fail fast on the first attempt.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"praxis/pkg/platform/sentinel"
)

// Policy bounds the retry behavior for one logical operation.
type Policy struct {
	// MaxRetries is the number of re-attempts after the first call.
	// Total attempts never exceed MaxRetries+1.
	MaxRetries int
	// BaseDelay is doubled on every failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth. Zero means uncapped.
	MaxDelay time.Duration
	// Timeout bounds the whole wrapped call including backoff sleeps.
	// Zero means no wrapper-level deadline.
	Timeout time.Duration
	// Classify reports whether an error is transient. Nil falls back to
	// Transient.
	Classify func(error) bool
	// OnRetry is invoked each time a re-attempt is scheduled, before the
	// backoff sleep. Used to wire counters.
	OnRetry func(domain, operation string)
}

// DefaultPolicy matches the store defaults: three re-attempts starting at
// 100ms, capped at 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Classify:   Transient,
	}
}

// OpContext keys every retry log line so failures are traceable to the
// domain operation that triggered them.
type OpContext struct {
	Domain    string
	Operation string
	Meta      map[string]any
}

func (c OpContext) attrs() []any {
	attrs := []any{"domain", c.Domain, "operation", c.Operation}
	for k, v := range c.Meta {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// Transient is the default classifier: network/unavailability, timeouts and
// lock conflicts are retryable, everything else is not.
func Transient(err error) bool {
	return errors.Is(err, sentinel.ErrUnavailable) ||
		errors.Is(err, sentinel.ErrTimeout) ||
		errors.Is(err, sentinel.ErrLockConflict)
}

// Do invokes fn under the policy. Retries are strictly sequential. The last
// error is returned unchanged when the budget is exhausted; no new error type
// is introduced for exhaustion.
func Do(ctx context.Context, policy Policy, opCtx OpContext, logger *slog.Logger, fn func(context.Context) error) error {
	_, err := DoValue(ctx, policy, opCtx, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, policy Policy, opCtx OpContext, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	classify := policy.Classify
	if classify == nil {
		classify = Transient
	}
	if logger == nil {
		logger = slog.Default()
	}

	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, wrapCtxErr(err, lastErr)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.InfoContext(ctx, "operation succeeded after retry",
					append(opCtx.attrs(), "attempt", attempt+1)...)
			}
			return result, nil
		}
		lastErr = err

		if !classify(err) {
			logger.DebugContext(ctx, "operation failed, not retryable",
				append(opCtx.attrs(), "attempt", attempt+1, "error", err)...)
			return zero, err
		}
		if attempt == policy.MaxRetries {
			break
		}

		logger.WarnContext(ctx, "operation failed, retrying",
			append(opCtx.attrs(), "attempt", attempt+1, "delay", delay.String(), "error", err)...)
		if policy.OnRetry != nil {
			policy.OnRetry(opCtx.Domain, opCtx.Operation)
		}

		select {
		case <-ctx.Done():
			return zero, wrapCtxErr(ctx.Err(), lastErr)
		case <-time.After(delay):
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	logger.ErrorContext(ctx, "operation failed, retries exhausted",
		append(opCtx.attrs(), "attempts", policy.MaxRetries+1, "error", lastErr)...)
	return zero, lastErr
}

// wrapCtxErr keeps the last operation error visible when the wrapper deadline
// fires between attempts.
func wrapCtxErr(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return errors.Join(ctxErr, lastErr)
}
