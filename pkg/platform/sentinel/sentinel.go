package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Storage clients and provider
// adapters return these (optionally wrapped) so the layers above can translate
// them into domain errors without branching on driver types.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: uniqueness or concurrent-update conflict
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: store or provider temporarily unreachable
// - ErrTimeout: operation exceeded its deadline
// - ErrLockConflict: serialization failure or deadlock, safe to retry
// - ErrBreakerOpen: call short-circuited by a circuit breaker
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrTimeout      = errors.New("timeout")
	ErrLockConflict = errors.New("lock conflict")
	ErrBreakerOpen  = errors.New("circuit breaker open")
)
