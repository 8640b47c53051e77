package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis/internal/challenge/models"
	"praxis/internal/events"
	"praxis/internal/storage"
)

func TestMapper_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	original := &models.Challenge{
		ID:         "2f0c6f0e-0000-4000-8000-000000000001",
		UserID:     "u1",
		FocusArea:  "listening",
		Title:      "Practice reflective listening",
		Content:    map[string]any{"description": "one conversation"},
		Difficulty: "beginner",
		Status:     models.StatusActive,
		CreatedAt:  created,
		UpdatedAt:  created,
	}

	rec, err := Mapper{}.ToPersistence(original)
	require.NoError(t, err)
	back, err := Mapper{}.ToDomain(rec)
	require.NoError(t, err)

	assert.Equal(t, original, back)
}

func TestMapper_ToDomainDecodesJSONContent(t *testing.T) {
	// The SQL client surfaces jsonb columns as JSON text.
	rec := storage.Record{
		"id":         "abc",
		"userId":     "u1",
		"focusArea":  "listening",
		"title":      "t",
		"content":    `{"description":"from text"}`,
		"difficulty": "beginner",
		"status":     "draft",
		"createdAt":  "2026-03-04T05:06:07Z",
		"updatedAt":  "2026-03-04T05:06:07Z",
	}
	c, err := Mapper{}.ToDomain(rec)
	require.NoError(t, err)
	assert.Equal(t, "from text", c.Content["description"])
	assert.Equal(t, 2026, c.CreatedAt.Year())

	rec["content"] = "{not json"
	_, err = Mapper{}.ToDomain(rec)
	assert.Error(t, err)
}

func TestNew_WiresRepository(t *testing.T) {
	bus := events.NewBus()
	repo, err := New(storage.NewMemory(), bus, nil, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	c, err := models.New("u1", "listening", "title", nil, "beginner", now)
	require.NoError(t, err)

	saved, err := repo.Save(context.Background(), c)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := repo.FindByID(context.Background(), saved.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "listening", got.FocusArea)
	assert.Equal(t, models.StatusDraft, got.Status)
}
