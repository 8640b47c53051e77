package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnake(t *testing.T) {
	cases := map[string]string{
		"createdAt":   "created_at",
		"userId":      "user_id",
		"focusArea":   "focus_area",
		"id":          "id",
		"title":       "title",
		"challengeId": "challenge_id",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToSnake(in), in)
	}
}

func TestToCamel(t *testing.T) {
	cases := map[string]string{
		"created_at":   "createdAt",
		"user_id":      "userId",
		"focus_area":   "focusArea",
		"id":           "id",
		"title":        "title",
		"challenge_id": "challengeId",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToCamel(in), in)
	}
}

func TestKeyTranslationRoundTrip(t *testing.T) {
	domain := Record{
		"id":        "abc",
		"userId":    "u1",
		"focusArea": "listening",
		"createdAt": "2026-01-01T00:00:00Z",
	}

	columns := KeysToSnake(domain)
	assert.Equal(t, "u1", columns["user_id"])
	assert.Equal(t, "listening", columns["focus_area"])

	back := KeysToCamel(columns)
	assert.Equal(t, domain, back)
}

func TestKeyTranslationNil(t *testing.T) {
	assert.Nil(t, KeysToSnake(nil))
	assert.Nil(t, KeysToCamel(nil))
}
