package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis/pkg/platform/sentinel"
)

func fastPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Classify:   Transient,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), OpContext{Domain: "test", Operation: "op"}, nil,
		func(context.Context) error {
			calls++
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), OpContext{Domain: "test", Operation: "op"}, nil,
		func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("flaky: %w", sentinel.ErrUnavailable)
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsBudgetAndReturnsLastError(t *testing.T) {
	calls := 0
	wrapped := fmt.Errorf("still down: %w", sentinel.ErrUnavailable)
	err := Do(context.Background(), fastPolicy(), OpContext{Domain: "test", Operation: "op"}, nil,
		func(context.Context) error {
			calls++
			return wrapped
		})
	// MaxRetries re-attempts after the first call, last error unchanged.
	assert.Equal(t, 4, calls)
	assert.Equal(t, wrapped, err)
}

func TestDo_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	notFound := fmt.Errorf("missing: %w", sentinel.ErrNotFound)
	err := Do(context.Background(), fastPolicy(), OpContext{Domain: "test", Operation: "op"}, nil,
		func(context.Context) error {
			calls++
			return notFound
		})
	assert.Equal(t, 1, calls)
	assert.Equal(t, notFound, err)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastPolicy(), OpContext{Domain: "test", Operation: "op"}, nil,
		func(context.Context) error {
			calls++
			cancel()
			return fmt.Errorf("down: %w", sentinel.ErrUnavailable)
		})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	// The last operation error stays visible through the join.
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestDo_PolicyTimeoutBoundsTheWholeCall(t *testing.T) {
	policy := Policy{
		MaxRetries: 100,
		BaseDelay:  10 * time.Millisecond,
		Timeout:    25 * time.Millisecond,
		Classify:   Transient,
	}
	err := Do(context.Background(), policy, OpContext{Domain: "test", Operation: "op"}, nil,
		func(context.Context) error {
			return fmt.Errorf("down: %w", sentinel.ErrUnavailable)
		})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoValue_ReturnsResult(t *testing.T) {
	calls := 0
	got, err := DoValue(context.Background(), fastPolicy(), OpContext{Domain: "test", Operation: "op"}, nil,
		func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", fmt.Errorf("locked: %w", sentinel.ErrLockConflict)
			}
			return "value", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "value", got)
	assert.Equal(t, 2, calls)
}

func TestDo_OnRetryHookCountsScheduledRetries(t *testing.T) {
	policy := fastPolicy()
	var hooked []string
	policy.OnRetry = func(domain, operation string) {
		hooked = append(hooked, domain+"/"+operation)
	}
	_ = Do(context.Background(), policy, OpContext{Domain: "challenge", Operation: "save"}, nil,
		func(context.Context) error {
			return fmt.Errorf("down: %w", sentinel.ErrUnavailable)
		})
	// One hook call per scheduled re-attempt, none for the final failure.
	assert.Equal(t, []string{"challenge/save", "challenge/save", "challenge/save"}, hooked)
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(sentinel.ErrUnavailable))
	assert.True(t, Transient(sentinel.ErrTimeout))
	assert.True(t, Transient(fmt.Errorf("wrap: %w", sentinel.ErrLockConflict)))
	assert.False(t, Transient(sentinel.ErrNotFound))
	assert.False(t, Transient(errors.New("arbitrary")))
}
