// Package repo provides the transactional repository base every domain
// repository is built on. It owns the cross-cutting concerns — bounded retry,
// snake/camel field translation, transaction boundaries, error mapping and
// the commit-then-publish event ordering — so domain stores stay thin.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"praxis/internal/events"
	"praxis/internal/storage"
	domerrors "praxis/pkg/domain-errors"
	"praxis/pkg/platform/retry"
	"praxis/pkg/platform/sentinel"
)

// Entity is the contract the base needs from every domain entity: an
// identity and the explicit pending-event surface read only at the commit
// boundary.
type Entity interface {
	EntityID() string
	PendingEvents() []events.Event
	ClearEvents()
}

// Patchable entities support Update via their own mutation method, keeping
// invariants with the entity instead of raw field assignment.
type Patchable interface {
	ApplyPatch(patch map[string]any) error
}

// Mapper translates between domain entities and storage records. Records on
// this interface use domain (camelCase) field names; the base handles the
// storage naming convention.
type Mapper[E Entity] interface {
	ToDomain(rec storage.Record) (E, error)
	ToPersistence(entity E) (storage.Record, error)
}

// Schema enforces entity invariants and filter shapes before anything
// touches the store.
type Schema[E Entity] interface {
	ValidateEntity(entity E) error
	// ValidateFilters rejects unknown or malformed filter keys and returns
	// the canonical filter set (domain field names).
	ValidateFilters(filters map[string]any) (map[string]any, error)
}

// ListOptions bounds and orders a Search. Zero values take defaults.
type ListOptions struct {
	Limit   int
	Offset  int
	SortBy  string // domain field name, e.g. "createdAt"
	SortDir string // "asc" or "desc"
}

// Page is one Search result page.
type Page[E any] struct {
	Results []E
	Total   int
}

const (
	defaultLimit  = 20
	maxLimit      = 100
	defaultSortBy = "createdAt"
)

// Config wires one domain repository. All collaborators are injected
// explicitly; repositories are constructed once at process start.
type Config[E Entity] struct {
	// Domain names the aggregate ("challenge") for errors, events and logs.
	Domain string
	// Table is the storage table name.
	Table string

	Client    storage.Client
	Mapper    Mapper[E]
	Schema    Schema[E]
	Publisher events.Publisher
	Logger    *slog.Logger

	// Retry defaults to retry.DefaultPolicy().
	Retry *retry.Policy
	// Errors defaults to a mapper built from DefaultRules(Domain).
	Errors domerrors.Mapper
}

// Repository is the generic transactional data-access base.
type Repository[E Entity] struct {
	domain    string
	table     string
	client    storage.Client
	mapper    Mapper[E]
	schema    Schema[E]
	publisher events.Publisher
	logger    *slog.Logger
	retry     retry.Policy
	errors    domerrors.Mapper
}

// New validates the wiring and builds a repository.
func New[E Entity](cfg Config[E]) (*Repository[E], error) {
	switch {
	case cfg.Domain == "":
		return nil, fmt.Errorf("repo: domain is required")
	case cfg.Table == "":
		return nil, fmt.Errorf("repo: table is required")
	case cfg.Client == nil:
		return nil, fmt.Errorf("repo: storage client is required")
	case cfg.Mapper == nil:
		return nil, fmt.Errorf("repo: entity mapper is required")
	case cfg.Schema == nil:
		return nil, fmt.Errorf("repo: schema is required")
	case cfg.Publisher == nil:
		return nil, fmt.Errorf("repo: event publisher is required")
	}

	r := &Repository[E]{
		domain:    cfg.Domain,
		table:     cfg.Table,
		client:    cfg.Client,
		mapper:    cfg.Mapper,
		schema:    cfg.Schema,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		retry:     retry.DefaultPolicy(),
		errors:    cfg.Errors,
	}
	if cfg.Retry != nil {
		r.retry = *cfg.Retry
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.errors == nil {
		r.errors = domerrors.NewMapper(DefaultRules(cfg.Domain), GenericConstructor(cfg.Domain))
	}
	return r, nil
}

// DefaultRules maps the infrastructure sentinels to the domain's coded
// errors. Domains with specialized error types supply their own table.
func DefaultRules(domain string) []domerrors.Rule {
	return []domerrors.Rule{
		{Sentinel: sentinel.ErrNotFound, Construct: domerrors.CodeConstructor(domerrors.CodeNotFound, domain+" not found")},
		{Sentinel: sentinel.ErrConflict, Construct: domerrors.CodeConstructor(domerrors.CodeConflict, domain+" conflict")},
		{Sentinel: sentinel.ErrLockConflict, Construct: domerrors.CodeConstructor(domerrors.CodePersistence, domain+" store contention")},
		{Sentinel: sentinel.ErrTimeout, Construct: domerrors.CodeConstructor(domerrors.CodePersistence, domain+" store timeout")},
		{Sentinel: sentinel.ErrUnavailable, Construct: domerrors.CodeConstructor(domerrors.CodeUnavailable, domain+" store unavailable")},
	}
}

// GenericConstructor is the fallback for unclassified failures.
func GenericConstructor(domain string) domerrors.Constructor {
	return domerrors.CodeConstructor(domerrors.CodePersistence, domain+" persistence failure")
}

func (r *Repository[E]) opCtx(operation string, meta map[string]any) retry.OpContext {
	return retry.OpContext{Domain: r.domain, Operation: operation, Meta: meta}
}

// FindByID loads one entity. A malformed id is a Validation error without a
// store round-trip. When the entity is absent the zero value is returned, or
// a NotFound error carrying meta["id"] when required is true.
func (r *Repository[E]) FindByID(ctx context.Context, id string, required bool) (E, error) {
	var zero E
	if err := validateID(id); err != nil {
		return zero, err
	}

	rec, err := retry.DoValue(ctx, r.retry, r.opCtx("findById", map[string]any{"id": id}), r.logger,
		func(ctx context.Context) (storage.Record, error) {
			return r.client.Get(ctx, r.table, storage.Record{"id": id})
		})
	if err != nil {
		if isNotFound(err) {
			if required {
				return zero, r.errors(err, domerrors.Metadata{"id": id})
			}
			return zero, nil
		}
		return zero, r.errors(err, domerrors.Metadata{"id": id})
	}

	entity, err := r.mapper.ToDomain(storage.KeysToCamel(rec))
	if err != nil {
		return zero, r.errors(err, domerrors.Metadata{"id": id})
	}
	return entity, nil
}

// Save persists the entity inside a transaction: invariant validation, insert
// or update, rehydration of the stored row, and event capture. Pending events
// are cleared from the entity before Save returns so a retried call cannot
// publish duplicates, and they are handed to the bus only after the
// transaction commits. A first-time insert that raised no explicit events
// gets a synthesized "<domain>.created" event; updates never get one.
func (r *Repository[E]) Save(ctx context.Context, entity E) (E, error) {
	var zero E
	if err := r.schema.ValidateEntity(entity); err != nil {
		return zero, asValidation(err)
	}

	rec, err := r.mapper.ToPersistence(entity)
	if err != nil {
		return zero, r.errors(err, nil)
	}
	stored := storage.KeysToSnake(rec)

	inserting := entity.EntityID() == ""
	if inserting {
		delete(stored, "id")
	}

	var saved E
	var captured []events.Event
	txErr := retry.Do(ctx, r.retry, r.opCtx("save", map[string]any{"insert": inserting}), r.logger,
		func(ctx context.Context) error {
			return r.client.RunInTx(ctx, func(ctx context.Context) error {
				var row storage.Record
				var opErr error
				if inserting {
					row, opErr = r.client.Insert(ctx, r.table, stored)
				} else {
					row, opErr = r.client.Update(ctx, r.table, entity.EntityID(), stored)
				}
				if opErr != nil {
					return opErr
				}

				saved, opErr = r.mapper.ToDomain(storage.KeysToCamel(row))
				if opErr != nil {
					return opErr
				}

				// Capture once across retry attempts: the entity is cleared
				// on the first pass so a retried save cannot re-collect.
				if captured == nil {
					captured = entity.PendingEvents()
					entity.ClearEvents()
				}
				return nil
			})
		})
	if txErr != nil {
		return zero, r.errors(txErr, domerrors.Metadata{"id": entity.EntityID()})
	}

	// First-time creation with no explicit events gets a synthesized created
	// event. Updates never do.
	if inserting && len(captured) == 0 {
		captured = []events.Event{events.New(
			r.domain+".created", r.domain, saved.EntityID(),
			map[string]any{"id": saved.EntityID()},
		)}
	}

	r.publisher.Publish(ctx, captured...)
	return saved, nil
}

// Update loads the entity, applies the patch through the entity's own
// mutation method, and delegates to Save.
func (r *Repository[E]) Update(ctx context.Context, id string, patch map[string]any) (E, error) {
	var zero E
	entity, err := r.FindByID(ctx, id, true)
	if err != nil {
		return zero, err
	}

	p, ok := any(entity).(Patchable)
	if !ok {
		return zero, domerrors.Newf(domerrors.CodeInternal, "%s entity does not support patching", r.domain)
	}
	if err := p.ApplyPatch(patch); err != nil {
		return zero, asValidation(err)
	}
	return r.Save(ctx, entity)
}

// Delete removes the entity. The entity is loaded first for event payload
// context; absence is a NotFound error. The "<domain>.deleted" event is
// published only after the transaction commits.
func (r *Repository[E]) Delete(ctx context.Context, id string) (bool, error) {
	entity, err := r.FindByID(ctx, id, true)
	if err != nil {
		return false, err
	}

	txErr := retry.Do(ctx, r.retry, r.opCtx("delete", map[string]any{"id": id}), r.logger,
		func(ctx context.Context) error {
			return r.client.RunInTx(ctx, func(ctx context.Context) error {
				return r.client.Delete(ctx, r.table, id)
			})
		})
	if txErr != nil {
		return false, r.errors(txErr, domerrors.Metadata{"id": id})
	}

	r.publisher.Publish(ctx, events.New(
		r.domain+".deleted", r.domain, id,
		map[string]any{"id": entity.EntityID()},
	))
	return true, nil
}

// Search returns the entities matching the schema-validated filters under
// validated, defaulted list options.
func (r *Repository[E]) Search(ctx context.Context, filters map[string]any, opts ListOptions) (Page[E], error) {
	var zero Page[E]

	validated, err := r.schema.ValidateFilters(filters)
	if err != nil {
		return zero, asValidation(err)
	}

	query, err := buildQuery(opts)
	if err != nil {
		return zero, err
	}

	storageFilters := storage.KeysToSnake(storage.Record(validated))
	res, err := retry.DoValue(ctx, r.retry, r.opCtx("search", nil), r.logger,
		func(ctx context.Context) (selectResult, error) {
			rows, n, selErr := r.client.Select(ctx, r.table, storageFilters, query)
			return selectResult{rows: rows, total: n}, selErr
		})
	if err != nil {
		return zero, r.errors(err, nil)
	}

	page := Page[E]{Total: res.total, Results: make([]E, 0, len(res.rows))}
	for _, row := range res.rows {
		entity, mapErr := r.mapper.ToDomain(storage.KeysToCamel(row))
		if mapErr != nil {
			return zero, r.errors(mapErr, nil)
		}
		page.Results = append(page.Results, entity)
	}
	return page, nil
}

type selectResult struct {
	rows  []storage.Record
	total int
}

func buildQuery(opts ListOptions) (storage.Query, error) {
	limit := opts.Limit
	switch {
	case limit < 0:
		return storage.Query{}, domerrors.New(domerrors.CodeValidation, "limit must not be negative")
	case limit == 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	if opts.Offset < 0 {
		return storage.Query{}, domerrors.New(domerrors.CodeValidation, "offset must not be negative")
	}

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = defaultSortBy
	}

	desc := true
	switch strings.ToLower(opts.SortDir) {
	case "", "desc":
	case "asc":
		desc = false
	default:
		return storage.Query{}, domerrors.Newf(domerrors.CodeValidation, "invalid sort direction %q", opts.SortDir)
	}

	return storage.Query{
		Limit:    limit,
		Offset:   opts.Offset,
		SortBy:   storage.ToSnake(sortBy),
		SortDesc: desc,
	}, nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return domerrors.New(domerrors.CodeValidation, "id must not be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return domerrors.Newf(domerrors.CodeValidation, "malformed id %q", id).
			WithMeta(domerrors.Metadata{"id": id})
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}

// asValidation normalizes schema and invariant failures to Validation-coded
// domain errors without double-wrapping ones that already carry a code.
func asValidation(err error) error {
	if err == nil {
		return nil
	}
	switch domerrors.CodeOf(err) {
	case domerrors.CodeValidation:
		return err
	case domerrors.CodeInvariantViolation:
		return domerrors.Wrap(err, domerrors.CodeValidation, err.Error())
	}
	var de *domerrors.Error
	if errors.As(err, &de) {
		return err
	}
	return domerrors.Wrap(err, domerrors.CodeValidation, err.Error())
}
