// Package postgres implements the storage.Client contract on database/sql
// with the lib/pq driver. Driver failures are classified into the sentinel
// taxonomy at this boundary; nothing above it sees a *pq.Error.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"praxis/internal/storage"
	"praxis/pkg/platform/sentinel"
	txcontext "praxis/pkg/platform/tx"
)

// Client implements storage.Client against a Postgres database.
type Client struct {
	db *sql.DB
}

// Open connects and verifies the database connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", classify(err))
	}
	return db, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Client {
	return &Client{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *Client) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return c.db
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ident validates a table or column identifier before it is interpolated.
// Filter keys are schema-validated upstream; this is the storage-side check.
func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q: %w", name, sentinel.ErrInvalidState)
	}
	return name, nil
}

func (c *Client) Get(ctx context.Context, table string, filters storage.Record) (storage.Record, error) {
	tbl, err := ident(table)
	if err != nil {
		return nil, err
	}
	where, args, err := whereClause(filters, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s%s LIMIT 1", tbl, where)
	rows, err := c.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, classify(err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get %s: %w", table, sentinel.ErrNotFound)
	}
	return recs[0], nil
}

func (c *Client) Select(ctx context.Context, table string, filters storage.Record, q storage.Query) ([]storage.Record, int, error) {
	tbl, err := ident(table)
	if err != nil {
		return nil, 0, err
	}
	where, args, err := whereClause(filters, 1)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", tbl, where)
	if err := c.execer(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	query := fmt.Sprintf("SELECT * FROM %s%s", tbl, where)
	if q.SortBy != "" {
		col, err := ident(q.SortBy)
		if err != nil {
			return nil, 0, err
		}
		dir := "ASC"
		if q.SortDesc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", col, dir)
	}
	n := len(args)
	if q.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, q.Limit)
	}
	if q.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, q.Offset)
	}

	rows, err := c.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify(err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, 0, classify(err)
	}
	return recs, total, nil
}

func (c *Client) Insert(ctx context.Context, table string, rec storage.Record) (storage.Record, error) {
	tbl, err := ident(table)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(rec))
	placeholders := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))
	for k, v := range rec {
		col, err := ident(k)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, driverValue(v))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		tbl, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	rows, err := c.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, classify(err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("insert %s returned no row: %w", table, sentinel.ErrInvalidState)
	}
	return recs[0], nil
}

func (c *Client) Update(ctx context.Context, table string, id string, rec storage.Record) (storage.Record, error) {
	tbl, err := ident(table)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec)+1)
	for k, v := range rec {
		if k == "id" {
			continue
		}
		col, err := ident(k)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, driverValue(v))
	}
	if len(sets) == 0 {
		return c.Get(ctx, table, storage.Record{"id": id})
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING *",
		tbl, strings.Join(sets, ", "), len(args))
	rows, err := c.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, classify(err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("update %s id %s: %w", table, id, sentinel.ErrNotFound)
	}
	return recs[0], nil
}

func (c *Client) Delete(ctx context.Context, table string, id string) error {
	tbl, err := ident(table)
	if err != nil {
		return err
	}

	res, err := c.execer(ctx).ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", tbl), id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s id %s: %w", table, id, sentinel.ErrNotFound)
	}
	return nil
}

func (c *Client) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := txcontext.Run(ctx, c.db, fn); err != nil {
		return classify(err)
	}
	return nil
}

func whereClause(filters storage.Record, firstArg int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for k, v := range filters {
		col, err := ident(k)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", col, firstArg+len(args)))
		args = append(args, driverValue(v))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func scanRecords(rows *sql.Rows) ([]storage.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var recs []storage.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec := make(storage.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return recs, nil
}

// driverValue adapts record values the driver cannot encode directly.
// Map and slice values are stored as JSON text (jsonb columns).
func driverValue(v any) any {
	switch v.(type) {
	case map[string]any, []any, []string:
		return jsonText(v)
	default:
		return v
	}
}

// classify translates driver failures into sentinel errors. Unknown failures
// are passed through wrapped; the repository mapper turns them into generic
// persistence errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%v: %w", err, sentinel.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, sentinel.ErrTimeout)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case code == "40001" || code == "40P01" || code == "55P03":
			// serialization failure, deadlock, lock not available
			return fmt.Errorf("%v: %w", err, sentinel.ErrLockConflict)
		case code == "23505":
			return fmt.Errorf("%v: %w", err, sentinel.ErrConflict)
		case strings.HasPrefix(code, "08") || code == "57P03" || code == "53300":
			// connection errors, cannot-connect-now, too many connections
			return fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)
		case code == "57014":
			// statement timeout
			return fmt.Errorf("%v: %w", err, sentinel.ErrTimeout)
		}
	}
	return err
}
