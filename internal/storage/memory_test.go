package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis/pkg/platform/sentinel"
)

func TestMemory_InsertAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stored, err := m.Insert(ctx, "things", Record{"name": "one"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored["id"])

	got, err := m.Get(ctx, "things", Record{"id": stored["id"]})
	require.NoError(t, err)
	assert.Equal(t, "one", got["name"])

	_, err = m.Get(ctx, "things", Record{"id": "nope"})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemory_InsertConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "things", Record{"id": "x"})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "things", Record{"id": "x"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestMemory_UpdatePreservesID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stored, err := m.Insert(ctx, "things", Record{"id": "x", "name": "one"})
	require.NoError(t, err)

	updated, err := m.Update(ctx, "things", "x", Record{"id": "hijack", "name": "two"})
	require.NoError(t, err)
	assert.Equal(t, "x", updated["id"])
	assert.Equal(t, "two", updated["name"])
	_ = stored

	_, err = m.Update(ctx, "things", "missing", Record{"name": "n"})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "things", Record{"id": "x"})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "things", "x"))
	assert.Zero(t, m.Len("things"))

	assert.ErrorIs(t, m.Delete(ctx, "things", "x"), sentinel.ErrNotFound)
}

func TestMemory_SelectFilterSortPage(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, rec := range []Record{
		{"id": "1", "user_id": "u1", "score": 30},
		{"id": "2", "user_id": "u1", "score": 10},
		{"id": "3", "user_id": "u2", "score": 20},
		{"id": "4", "user_id": "u1", "score": 20},
	} {
		_, err := m.Insert(ctx, "things", rec)
		require.NoError(t, err)
	}

	rows, total, err := m.Select(ctx, "things", Record{"user_id": "u1"},
		Query{SortBy: "score", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 2)
	assert.Equal(t, 10, rows[0]["score"])
	assert.Equal(t, 20, rows[1]["score"])

	rows, total, err = m.Select(ctx, "things", Record{"user_id": "u1"},
		Query{SortBy: "score", SortDesc: true, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0]["score"])
}

func TestMemory_RunInTxRollsBackOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "things", Record{"id": "kept"})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = m.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := m.Insert(ctx, "things", Record{"id": "discarded"}); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, m.Len("things"))

	_, err = m.Get(ctx, "things", Record{"id": "kept"})
	assert.NoError(t, err)
}

func TestMemory_RunInTxCommits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.RunInTx(ctx, func(ctx context.Context) error {
		_, err := m.Insert(ctx, "things", Record{"id": "a"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len("things"))
}

func TestMemory_NestedTxJoinsOuter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := m.RunInTx(ctx, func(ctx context.Context) error {
		if err := m.RunInTx(ctx, func(ctx context.Context) error {
			_, err := m.Insert(ctx, "things", Record{"id": "inner"})
			return err
		}); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	// The inner write joined the outer transaction and rolled back with it.
	assert.Zero(t, m.Len("things"))
}

func TestMemory_HookInjectsFailures(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	calls := 0
	m.Hook = func(op, table string) error {
		calls++
		if calls == 1 {
			return sentinel.ErrUnavailable
		}
		return nil
	}

	_, err := m.Insert(ctx, "things", Record{"id": "x"})
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	_, err = m.Insert(ctx, "things", Record{"id": "x"})
	assert.NoError(t, err)
}
