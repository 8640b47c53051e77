package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis/internal/evaluation/models"
)

func TestMapper_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	original := &models.Evaluation{
		ID:          "2f0c6f0e-0000-4000-8000-000000000002",
		ChallengeID: "2f0c6f0e-0000-4000-8000-000000000001",
		UserID:      "u1",
		Score:       85,
		Feedback:    "Strong use of open questions.",
		Rubric:      map[string]any{"clarity": "good"},
		CreatedAt:   created,
		UpdatedAt:   created,
	}

	rec, err := Mapper{}.ToPersistence(original)
	require.NoError(t, err)
	back, err := Mapper{}.ToDomain(rec)
	require.NoError(t, err)

	assert.Equal(t, original, back)
}

func TestMapper_ToDomainDecodesJSONRubric(t *testing.T) {
	rec, err := Mapper{}.ToPersistence(&models.Evaluation{ID: "abc", Score: 50})
	require.NoError(t, err)
	rec["rubric"] = `{"clarity":"from text"}`

	e, err := Mapper{}.ToDomain(rec)
	require.NoError(t, err)
	assert.Equal(t, "from text", e.Rubric["clarity"])

	rec["rubric"] = "{not json"
	_, err = Mapper{}.ToDomain(rec)
	assert.Error(t, err)
}
