package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis/internal/events"
	"praxis/internal/storage"
	domerrors "praxis/pkg/domain-errors"
	"praxis/pkg/platform/retry"
	"praxis/pkg/platform/sentinel"
)

// widget is a minimal entity exercising the base: identity, recorded events,
// invariants and patching.
type widget struct {
	events.Recorder

	ID        string
	Name      string
	Size      int
	CreatedAt time.Time
}

func (w *widget) EntityID() string { return w.ID }

func (w *widget) ApplyPatch(patch map[string]any) error {
	for key, value := range patch {
		switch key {
		case "name":
			s, ok := value.(string)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "name must be a string")
			}
			w.Name = s
		case "size":
			n, ok := value.(int)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "size must be an int")
			}
			w.Size = n
		default:
			return domerrors.Newf(domerrors.CodeValidation, "unknown patch field %q", key)
		}
	}
	return nil
}

type widgetMapper struct{}

func (widgetMapper) ToDomain(rec storage.Record) (*widget, error) {
	return &widget{
		ID:        storage.String(rec["id"]),
		Name:      storage.String(rec["name"]),
		Size:      storage.Int(rec["size"]),
		CreatedAt: storage.Time(rec["createdAt"]),
	}, nil
}

func (widgetMapper) ToPersistence(w *widget) (storage.Record, error) {
	return storage.Record{
		"id":        w.ID,
		"name":      w.Name,
		"size":      w.Size,
		"createdAt": w.CreatedAt,
	}, nil
}

type widgetSchema struct{}

func (widgetSchema) ValidateEntity(w *widget) error {
	if w == nil {
		return domerrors.New(domerrors.CodeValidation, "widget is required")
	}
	if w.Name == "" {
		return domerrors.New(domerrors.CodeInvariantViolation, "widget name cannot be empty")
	}
	return nil
}

func (widgetSchema) ValidateFilters(filters map[string]any) (map[string]any, error) {
	for key := range filters {
		if key != "name" && key != "size" {
			return nil, domerrors.Newf(domerrors.CodeValidation, "unknown filter %q", key)
		}
	}
	return filters, nil
}

// capturePublisher records everything published to it.
type capturePublisher struct {
	published []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, evts ...events.Event) {
	p.published = append(p.published, evts...)
}

func fastRetry() *retry.Policy {
	return &retry.Policy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Classify:   retry.Transient,
	}
}

func newTestRepo(t *testing.T) (*Repository[*widget], *storage.Memory, *capturePublisher) {
	t.Helper()
	mem := storage.NewMemory()
	pub := &capturePublisher{}
	r, err := New(Config[*widget]{
		Domain:    "widget",
		Table:     "widgets",
		Client:    mem,
		Mapper:    widgetMapper{},
		Schema:    widgetSchema{},
		Publisher: pub,
		Retry:     fastRetry(),
	})
	require.NoError(t, err)
	return r, mem, pub
}

func TestNew_RejectsIncompleteWiring(t *testing.T) {
	_, err := New(Config[*widget]{Table: "widgets"})
	assert.Error(t, err)
	_, err = New(Config[*widget]{Domain: "widget"})
	assert.Error(t, err)
	_, err = New(Config[*widget]{Domain: "widget", Table: "widgets", Client: storage.NewMemory()})
	assert.Error(t, err)
}

func TestSave_InsertSynthesizesCreatedEvent(t *testing.T) {
	r, mem, pub := newTestRepo(t)
	ctx := context.Background()

	saved, err := r.Save(ctx, &widget{Name: "anvil", Size: 3, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID, "insert must rehydrate the generated id")
	assert.Equal(t, 1, mem.Len("widgets"))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "widget.created", pub.published[0].Type)
	assert.Equal(t, saved.ID, pub.published[0].AggregateID)
	assert.Equal(t, saved.ID, pub.published[0].Payload["id"])
}

func TestSave_ExplicitEventsSuppressSynthesis(t *testing.T) {
	r, _, pub := newTestRepo(t)
	ctx := context.Background()

	w := &widget{Name: "anvil"}
	w.Record(events.New("widget.forged", "widget", "", map[string]any{"name": "anvil"}))

	saved, err := r.Save(ctx, w)
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "widget.forged", pub.published[0].Type)
	// Events were captured off the entity at the commit boundary.
	assert.Empty(t, saved.PendingEvents())
	assert.Empty(t, w.PendingEvents())
}

func TestSave_UpdateNeverSynthesizesCreated(t *testing.T) {
	r, _, pub := newTestRepo(t)
	ctx := context.Background()

	saved, err := r.Save(ctx, &widget{Name: "anvil"})
	require.NoError(t, err)
	pub.published = nil

	saved.Name = "sledge"
	_, err = r.Save(ctx, saved)
	require.NoError(t, err)
	assert.Empty(t, pub.published, "silent updates publish nothing")
}

func TestSave_InvalidEntityWritesNothing(t *testing.T) {
	r, mem, pub := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Save(ctx, &widget{Name: ""})
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))
	assert.Zero(t, mem.Len("widgets"))
	assert.Empty(t, pub.published)
}

func TestSave_FailedTransactionPublishesNothing(t *testing.T) {
	r, mem, pub := newTestRepo(t)
	ctx := context.Background()

	mem.Hook = func(op, table string) error {
		if op == "insert" {
			return errors.New("disk on fire")
		}
		return nil
	}

	w := &widget{Name: "anvil"}
	w.Record(events.New("widget.forged", "widget", "", nil))

	_, err := r.Save(ctx, w)
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodePersistence))
	assert.Zero(t, mem.Len("widgets"))
	assert.Empty(t, pub.published, "no commit, no events")
}

func TestSave_RetriesTransientFailureOnce(t *testing.T) {
	r, mem, pub := newTestRepo(t)
	ctx := context.Background()

	attempts := 0
	mem.Hook = func(op, table string) error {
		if op == "insert" {
			attempts++
			if attempts == 1 {
				return sentinel.ErrUnavailable
			}
		}
		return nil
	}

	saved, err := r.Save(ctx, &widget{Name: "anvil"})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, mem.Len("widgets"))

	// Exactly one created event despite the retried attempt.
	require.Len(t, pub.published, 1)
	assert.Equal(t, "widget.created", pub.published[0].Type)
	assert.Equal(t, saved.ID, pub.published[0].AggregateID)
}

func TestSave_ExhaustedRetriesMapToUnavailable(t *testing.T) {
	r, mem, _ := newTestRepo(t)
	ctx := context.Background()

	mem.Hook = func(op, table string) error {
		if op == "insert" {
			return sentinel.ErrUnavailable
		}
		return nil
	}

	_, err := r.Save(ctx, &widget{Name: "anvil"})
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeUnavailable))
}

func TestFindByID_MalformedIDFailsFast(t *testing.T) {
	r, mem, _ := newTestRepo(t)
	ctx := context.Background()

	gets := 0
	mem.Hook = func(op, table string) error {
		if op == "get" {
			gets++
		}
		return nil
	}

	_, err := r.FindByID(ctx, "not-a-uuid", true)
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))
	assert.Equal(t, "not-a-uuid", domerrors.MetaOf(err)["id"])
	assert.Zero(t, gets, "validation must not reach the store")

	_, err = r.FindByID(ctx, "  ", true)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))
}

func TestFindByID_AbsenceSemantics(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()
	id := uuid.NewString()

	// required=true: coded NotFound carrying the id.
	_, err := r.FindByID(ctx, id, true)
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeNotFound))
	assert.Equal(t, id, domerrors.MetaOf(err)["id"])

	// required=false: zero value, no error.
	got, err := r.FindByID(ctx, id, false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByID_RoundTrip(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()

	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	saved, err := r.Save(ctx, &widget{Name: "anvil", Size: 7, CreatedAt: created})
	require.NoError(t, err)

	got, err := r.FindByID(ctx, saved.ID, true)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "anvil", got.Name)
	assert.Equal(t, 7, got.Size)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestUpdate_AppliesPatchThroughEntity(t *testing.T) {
	r, _, pub := newTestRepo(t)
	ctx := context.Background()

	saved, err := r.Save(ctx, &widget{Name: "anvil"})
	require.NoError(t, err)
	pub.published = nil

	updated, err := r.Update(ctx, saved.ID, map[string]any{"name": "sledge", "size": 9})
	require.NoError(t, err)
	assert.Equal(t, "sledge", updated.Name)
	assert.Equal(t, 9, updated.Size)

	_, err = r.Update(ctx, saved.ID, map[string]any{"color": "red"})
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))

	_, err = r.Update(ctx, uuid.NewString(), map[string]any{"name": "x"})
	assert.True(t, domerrors.HasCode(err, domerrors.CodeNotFound))
}

func TestDelete_PublishesAfterCommit(t *testing.T) {
	r, mem, pub := newTestRepo(t)
	ctx := context.Background()

	saved, err := r.Save(ctx, &widget{Name: "anvil"})
	require.NoError(t, err)
	pub.published = nil

	ok, err := r.Delete(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, mem.Len("widgets"))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "widget.deleted", pub.published[0].Type)
	assert.Equal(t, saved.ID, pub.published[0].AggregateID)

	_, err = r.Delete(ctx, saved.ID)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeNotFound))
}

func TestDelete_FailedTransactionPublishesNothing(t *testing.T) {
	r, mem, pub := newTestRepo(t)
	ctx := context.Background()

	saved, err := r.Save(ctx, &widget{Name: "anvil"})
	require.NoError(t, err)
	pub.published = nil

	mem.Hook = func(op, table string) error {
		if op == "delete" {
			return errors.New("disk on fire")
		}
		return nil
	}

	_, err = r.Delete(ctx, saved.ID)
	require.Error(t, err)
	assert.Empty(t, pub.published)
	assert.Equal(t, 1, mem.Len("widgets"))
}

func TestSearch_FiltersAndPaging(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		name := "anvil"
		if i%2 == 1 {
			name = "sledge"
		}
		_, err := r.Save(ctx, &widget{Name: name, Size: i, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	page, err := r.Search(ctx, map[string]any{"name": "anvil"}, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Results, 3)
	// Default ordering is createdAt descending.
	assert.Equal(t, 4, page.Results[0].Size)
	assert.Equal(t, 0, page.Results[2].Size)

	page, err = r.Search(ctx, nil, ListOptions{Limit: 2, Offset: 2, SortBy: "createdAt", SortDir: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Results, 2)
	assert.Equal(t, 2, page.Results[0].Size)
	assert.Equal(t, 3, page.Results[1].Size)
}

func TestSearch_RejectsUnknownFilter(t *testing.T) {
	r, _, _ := newTestRepo(t)

	_, err := r.Search(context.Background(), map[string]any{"color": "red"}, ListOptions{})
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))
}

func TestSearch_OptionValidation(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Search(ctx, nil, ListOptions{Limit: -1})
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))

	_, err = r.Search(ctx, nil, ListOptions{Offset: -1})
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))

	_, err = r.Search(ctx, nil, ListOptions{SortDir: "sideways"})
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))
}

func TestBuildQuery_Defaults(t *testing.T) {
	q, err := buildQuery(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, q.Limit)
	assert.Equal(t, "created_at", q.SortBy)
	assert.True(t, q.SortDesc)

	q, err = buildQuery(ListOptions{Limit: 10000})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, q.Limit)
}
