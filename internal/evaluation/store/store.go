// Package store wires the evaluation repository on the transactional base.
package store

import (
	"log/slog"

	"praxis/internal/evaluation/models"
	"praxis/internal/events"
	"praxis/internal/storage"
	"praxis/internal/storage/repo"
	"praxis/pkg/platform/retry"
)

const table = "evaluations"

// Repository is the evaluation data-access surface.
type Repository = repo.Repository[*models.Evaluation]

// New builds the evaluation repository.
func New(client storage.Client, publisher events.Publisher, logger *slog.Logger, policy *retry.Policy) (*Repository, error) {
	return repo.New(repo.Config[*models.Evaluation]{
		Domain:    "evaluation",
		Table:     table,
		Client:    client,
		Mapper:    Mapper{},
		Schema:    models.Schema{},
		Publisher: publisher,
		Logger:    logger,
		Retry:     policy,
	})
}

// Mapper translates evaluations to and from storage records.
type Mapper struct{}

func (Mapper) ToDomain(rec storage.Record) (*models.Evaluation, error) {
	rubric, err := storage.DecodeMap(rec["rubric"])
	if err != nil {
		return nil, err
	}
	return &models.Evaluation{
		ID:          storage.String(rec["id"]),
		ChallengeID: storage.String(rec["challengeId"]),
		UserID:      storage.String(rec["userId"]),
		Score:       storage.Int(rec["score"]),
		Feedback:    storage.String(rec["feedback"]),
		Rubric:      rubric,
		CreatedAt:   storage.Time(rec["createdAt"]),
		UpdatedAt:   storage.Time(rec["updatedAt"]),
	}, nil
}

func (Mapper) ToPersistence(e *models.Evaluation) (storage.Record, error) {
	return storage.Record{
		"id":          e.ID,
		"challengeId": e.ChallengeID,
		"userId":      e.UserID,
		"score":       e.Score,
		"feedback":    e.Feedback,
		"rubric":      e.Rubric,
		"createdAt":   e.CreatedAt,
		"updatedAt":   e.UpdatedAt,
	}, nil
}
