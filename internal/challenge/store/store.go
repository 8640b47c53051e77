// Package store wires the challenge repository on the transactional base.
// The base owns retry, transactions, field translation and event ordering;
// this package contributes only the table binding and the entity mapper.
package store

import (
	"log/slog"

	"praxis/internal/challenge/models"
	"praxis/internal/events"
	"praxis/internal/storage"
	"praxis/internal/storage/repo"
	"praxis/pkg/platform/retry"
)

const table = "challenges"

// Repository is the challenge data-access surface.
type Repository = repo.Repository[*models.Challenge]

// New builds the challenge repository.
func New(client storage.Client, publisher events.Publisher, logger *slog.Logger, policy *retry.Policy) (*Repository, error) {
	return repo.New(repo.Config[*models.Challenge]{
		Domain:    "challenge",
		Table:     table,
		Client:    client,
		Mapper:    Mapper{},
		Schema:    models.Schema{},
		Publisher: publisher,
		Logger:    logger,
		Retry:     policy,
	})
}

// Mapper translates challenges to and from storage records. Record keys are
// domain (camelCase) names; the base handles column naming.
type Mapper struct{}

func (Mapper) ToDomain(rec storage.Record) (*models.Challenge, error) {
	content, err := storage.DecodeMap(rec["content"])
	if err != nil {
		return nil, err
	}
	return &models.Challenge{
		ID:         storage.String(rec["id"]),
		UserID:     storage.String(rec["userId"]),
		FocusArea:  storage.String(rec["focusArea"]),
		Title:      storage.String(rec["title"]),
		Content:    content,
		Difficulty: storage.String(rec["difficulty"]),
		Status:     models.Status(storage.String(rec["status"])),
		CreatedAt:  storage.Time(rec["createdAt"]),
		UpdatedAt:  storage.Time(rec["updatedAt"]),
	}, nil
}

func (Mapper) ToPersistence(c *models.Challenge) (storage.Record, error) {
	return storage.Record{
		"id":         c.ID,
		"userId":     c.UserID,
		"focusArea":  c.FocusArea,
		"title":      c.Title,
		"content":    c.Content,
		"difficulty": c.Difficulty,
		"status":     string(c.Status),
		"createdAt":  c.CreatedAt,
		"updatedAt":  c.UpdatedAt,
	}, nil
}
