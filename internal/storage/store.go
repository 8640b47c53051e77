// Package storage defines the minimal store-client contract the repository
// base depends on: per-table filtered reads and writes keyed by column name,
// plus a transaction boundary. Implementations exist for Postgres and, for
// tests and local runs, in memory.
package storage

import "context"

// Record is one stored row keyed by column name.
type Record map[string]any

// Query bounds and orders a Select.
type Query struct {
	Limit    int
	Offset   int
	SortBy   string // storage column name
	SortDesc bool
}

// Client is the store collaborator. All methods honor a transaction carried
// in ctx (see pkg/platform/tx); RunInTx establishes one. Implementations must
// be safe for concurrent use.
type Client interface {
	// Get returns the single record matching the filters, or
	// sentinel.ErrNotFound.
	Get(ctx context.Context, table string, filters Record) (Record, error)

	// Select returns the records matching the filters under the query
	// bounds, plus the total match count ignoring limit/offset.
	Select(ctx context.Context, table string, filters Record, q Query) ([]Record, int, error)

	// Insert stores a new record and returns it as persisted (including
	// store-assigned columns).
	Insert(ctx context.Context, table string, rec Record) (Record, error)

	// Update rewrites the record with the given id and returns it as
	// persisted, or sentinel.ErrNotFound.
	Update(ctx context.Context, table string, id string, rec Record) (Record, error)

	// Delete removes the record with the given id, or sentinel.ErrNotFound.
	Delete(ctx context.Context, table string, id string) error

	// RunInTx runs fn inside a transaction. The transaction is committed when
	// fn returns nil and rolled back otherwise. Nested calls join the
	// enclosing transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
