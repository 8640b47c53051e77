package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"praxis/pkg/platform/sentinel"
)

// Memory is an in-memory Client used by unit tests and local runs. A coarse
// lock stands in for the transaction boundary; RunInTx snapshots all tables
// and restores them when fn fails, so rollback semantics match the SQL
// implementation closely enough for repository tests.
type Memory struct {
	mu     sync.Mutex
	tables map[string]map[string]Record

	// Hook, when set, runs before every operation and can inject failures.
	// Tests use it to simulate transient store errors.
	Hook func(op, table string) error
}

type memTxKey struct{}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[string]Record)}
}

func (m *Memory) hook(op, table string) error {
	if m.Hook != nil {
		return m.Hook(op, table)
	}
	return nil
}

func (m *Memory) table(name string) map[string]Record {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]Record)
		m.tables[name] = t
	}
	return t
}

func (m *Memory) Get(ctx context.Context, table string, filters Record) (Record, error) {
	if err := m.hook("get", table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.table(table) {
		if matches(rec, filters) {
			return cloneRecord(rec), nil
		}
	}
	return nil, fmt.Errorf("get %s: %w", table, sentinel.ErrNotFound)
}

func (m *Memory) Select(ctx context.Context, table string, filters Record, q Query) ([]Record, int, error) {
	if err := m.hook("select", table); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Record
	for _, rec := range m.table(table) {
		if matches(rec, filters) {
			matched = append(matched, cloneRecord(rec))
		}
	}
	total := len(matched)

	if q.SortBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			cmp := compareValues(matched[i][q.SortBy], matched[j][q.SortBy])
			if q.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (m *Memory) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := m.hook("insert", table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneRecord(rec)
	id, _ := stored["id"].(string)
	if id == "" {
		id = uuid.NewString()
		stored["id"] = id
	}
	if _, exists := m.table(table)[id]; exists {
		return nil, fmt.Errorf("insert %s id %s: %w", table, id, sentinel.ErrConflict)
	}
	m.table(table)[id] = stored
	return cloneRecord(stored), nil
}

func (m *Memory) Update(ctx context.Context, table string, id string, rec Record) (Record, error) {
	if err := m.hook("update", table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.table(table)[id]
	if !ok {
		return nil, fmt.Errorf("update %s id %s: %w", table, id, sentinel.ErrNotFound)
	}
	updated := cloneRecord(existing)
	for k, v := range rec {
		if k == "id" {
			continue
		}
		updated[k] = v
	}
	m.table(table)[id] = updated
	return cloneRecord(updated), nil
}

func (m *Memory) Delete(ctx context.Context, table string, id string) error {
	if err := m.hook("delete", table); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.table(table)[id]; !ok {
		return fmt.Errorf("delete %s id %s: %w", table, id, sentinel.ErrNotFound)
	}
	delete(m.table(table), id)
	return nil
}

// RunInTx snapshots the store, runs fn, and restores the snapshot when fn
// fails. Nested calls join the outer pseudo-transaction.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	snapshot := make(map[string]map[string]Record, len(m.tables))
	for name, t := range m.tables {
		ct := make(map[string]Record, len(t))
		for id, rec := range t {
			ct[id] = cloneRecord(rec)
		}
		snapshot[name] = ct
	}
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.tables = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// Len reports the number of records in a table. Test helper.
func (m *Memory) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table(table))
}

func matches(rec, filters Record) bool {
	for k, want := range filters {
		if compareValues(rec[k], want) != 0 {
			return false
		}
	}
	return true
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// compareValues orders the value types that show up in records: times,
// numbers, strings, bools. Mixed or unknown types compare by string form.
func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
