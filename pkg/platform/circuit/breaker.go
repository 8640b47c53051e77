// Package circuit isolates callers from a failing dependency. Once failures
// cross a threshold within the rolling window the breaker opens and calls
// fail fast without touching the dependency; after a cooldown a limited
// number of trial calls decide whether to close again.
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"praxis/pkg/platform/sentinel"
)

// State is the breaker's only mutable state machine.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned for calls rejected while the breaker is open. It is
// distinct from dependency errors so callers can tell "the dependency is
// being protected" from "the dependency failed".
var ErrOpen = fmt.Errorf("%w", sentinel.ErrBreakerOpen)

// StateChange describes a transition, delivered to the OnStateChange hook.
type StateChange struct {
	From State
	To   State
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many non-ignored failures within the window
// open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive half-open successes close
// the circuit.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithWindow sets the rolling window over which failures are counted while
// closed. Failures older than the window do not count toward the threshold.
func WithWindow(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithCooldown sets how long the breaker stays open before permitting trial
// calls.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithIgnore registers a predicate for errors excluded from failure counting.
// Provider backpressure (rate limits) signals load, not unavailability, and
// must not trip the breaker.
func WithIgnore(pred func(error) bool) Option {
	return func(b *Breaker) {
		b.ignore = pred
	}
}

// WithFallback registers a fallback invoked instead of returning ErrOpen.
func WithFallback(fn func(ctx context.Context, err error) error) Option {
	return func(b *Breaker) {
		b.fallback = fn
	}
}

// WithOnStateChange registers a hook observing every transition. The hook is
// called outside the breaker lock.
func WithOnStateChange(hook func(name string, change StateChange)) Option {
	return func(b *Breaker) {
		b.onStateChange = hook
	}
}

// WithOnRejection registers a hook counting calls rejected while open.
func WithOnRejection(hook func(name string)) Option {
	return func(b *Breaker) {
		b.onRejection = hook
	}
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// Breaker guards a single dependency. Safe for concurrent use; the counters
// and state are the one piece of shared mutable state and sit behind a mutex.
type Breaker struct {
	name string

	failureThreshold int
	successThreshold int
	window           time.Duration
	cooldown         time.Duration
	ignore           func(error) bool
	fallback         func(ctx context.Context, err error) error
	onStateChange    func(name string, change StateChange)
	onRejection      func(name string)
	now              func() time.Time

	mu               sync.Mutex
	state            State
	failures         int
	windowStart      time.Time
	successes        int
	openedAt         time.Time
	halfOpenInFlight bool
}

// New builds a closed Breaker with teacher-default thresholds.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		window:           time.Minute,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

// State returns the current state, promoting Open to HalfOpen once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// IsOpen reports whether calls are currently rejected.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Reset manually closes the circuit and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	change := b.transition(StateClosed)
	b.failures = 0
	b.successes = 0
	b.halfOpenInFlight = false
	b.mu.Unlock()
	b.notify(change)
}

// Do runs fn under the breaker. While open, fn is not invoked: the fallback
// runs if registered, otherwise ErrOpen is returned immediately.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.acquire()
	if err != nil {
		if b.onRejection != nil {
			b.onRejection(b.name)
		}
		if b.fallback != nil {
			return b.fallback(ctx, err)
		}
		return err
	}

	callErr := fn(ctx)
	b.record(trial, callErr)
	return callErr
}

// Execute is Do for calls that produce a value. The zero value is returned
// alongside ErrOpen (or the fallback error) when the breaker rejects the call.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := b.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}

// acquire decides whether the call may proceed. The returned flag marks
// half-open trial calls, which are limited to one in flight.
func (b *Breaker) acquire() (trial bool, err error) {
	b.mu.Lock()

	var change *StateChange
	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return false, ErrOpen
		}
		change = b.transition(StateHalfOpen)
		b.successes = 0
		b.halfOpenInFlight = false
		fallthrough
	case StateHalfOpen:
		if b.halfOpenInFlight {
			b.mu.Unlock()
			b.notify(change)
			return false, ErrOpen
		}
		b.halfOpenInFlight = true
		b.mu.Unlock()
		b.notify(change)
		return true, nil
	}
	b.mu.Unlock()
	return false, nil
}

func (b *Breaker) record(trial bool, callErr error) {
	if callErr != nil && b.ignore != nil && b.ignore(callErr) {
		// Backpressure from the dependency: counts neither as failure nor
		// as success. Release the trial slot so the next probe can run.
		if trial {
			b.mu.Lock()
			b.halfOpenInFlight = false
			b.mu.Unlock()
		}
		return
	}
	if callErr != nil {
		b.recordFailure(trial)
		return
	}
	b.recordSuccess(trial)
}

func (b *Breaker) recordSuccess(trial bool) {
	b.mu.Lock()
	var change *StateChange
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if trial {
			b.halfOpenInFlight = false
			b.successes++
			if b.successes >= b.successThreshold {
				change = b.transition(StateClosed)
				b.failures = 0
				b.successes = 0
			}
		}
	case StateOpen:
		// Stale result from a call admitted before the breaker opened.
	}
	b.mu.Unlock()
	b.notify(change)
}

func (b *Breaker) recordFailure(trial bool) {
	b.mu.Lock()
	var change *StateChange
	now := b.now()
	switch b.state {
	case StateClosed:
		if b.failures == 0 || now.Sub(b.windowStart) > b.window {
			b.failures = 0
			b.windowStart = now
		}
		b.failures++
		if b.failures >= b.failureThreshold {
			change = b.transition(StateOpen)
			b.openedAt = now
		}
	case StateHalfOpen:
		if trial {
			b.halfOpenInFlight = false
			change = b.transition(StateOpen)
			b.openedAt = now
			b.successes = 0
		}
	case StateOpen:
	}
	b.mu.Unlock()
	b.notify(change)
}

// transition must be called with the lock held; the caller delivers the
// returned change to the hook after unlocking.
func (b *Breaker) transition(to State) *StateChange {
	if b.state == to {
		return nil
	}
	change := &StateChange{From: b.state, To: to}
	b.state = to
	return change
}

func (b *Breaker) notify(change *StateChange) {
	if change != nil && b.onStateChange != nil {
		b.onStateChange(b.name, *change)
	}
}
