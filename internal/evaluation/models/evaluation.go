package models

import (
	"time"

	"praxis/internal/events"
	domerrors "praxis/pkg/domain-errors"
)

// Evaluation is the scored assessment of a user's challenge submission.
//
// Invariants:
//   - ChallengeID and UserID are non-empty
//   - Score is in [0, 100]
//   - Feedback is non-empty
type Evaluation struct {
	events.Recorder `json:"-"`

	ID          string         `json:"id"`
	ChallengeID string         `json:"challengeId"`
	UserID      string         `json:"userId"`
	Score       int            `json:"score"`
	Feedback    string         `json:"feedback"`
	Rubric      map[string]any `json:"rubric"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// New constructs an evaluation and records the scored event.
func New(challengeID, userID string, score int, feedback string, rubric map[string]any, now time.Time) (*Evaluation, error) {
	e := &Evaluation{
		ChallengeID: challengeID,
		UserID:      userID,
		Score:       score,
		Feedback:    feedback,
		Rubric:      rubric,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.Record(events.New("evaluation.scored", "evaluation", "", map[string]any{
		"challengeId": challengeID,
		"userId":      userID,
		"score":       score,
	}))
	return e, nil
}

// EntityID implements the repository entity contract.
func (e *Evaluation) EntityID() string {
	return e.ID
}

// Validate checks the entity invariants.
func (e *Evaluation) Validate() error {
	switch {
	case e.ChallengeID == "":
		return domerrors.New(domerrors.CodeInvariantViolation, "evaluation challenge id cannot be empty")
	case e.UserID == "":
		return domerrors.New(domerrors.CodeInvariantViolation, "evaluation user id cannot be empty")
	case e.Score < 0 || e.Score > 100:
		return domerrors.Newf(domerrors.CodeInvariantViolation, "evaluation score %d out of range [0,100]", e.Score)
	case e.Feedback == "":
		return domerrors.New(domerrors.CodeInvariantViolation, "evaluation feedback cannot be empty")
	}
	return nil
}

// ApplyPatch mutates the patchable fields, preserving invariants.
func (e *Evaluation) ApplyPatch(patch map[string]any) error {
	var changed []string
	for key, value := range patch {
		switch key {
		case "score":
			n, ok := asInt(value)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "score must be an integer")
			}
			e.Score = n
		case "feedback":
			s, ok := value.(string)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "feedback must be a string")
			}
			e.Feedback = s
		case "rubric":
			m, ok := value.(map[string]any)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "rubric must be an object")
			}
			e.Rubric = m
		default:
			return domerrors.Newf(domerrors.CodeValidation, "unknown patch field %q", key)
		}
		changed = append(changed, key)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()
	e.Record(events.New("evaluation.updated", "evaluation", e.ID, map[string]any{
		"id":      e.ID,
		"changed": changed,
	}))
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Schema enforces entity and filter invariants for the repository base.
type Schema struct{}

func (Schema) ValidateEntity(e *Evaluation) error {
	if e == nil {
		return domerrors.New(domerrors.CodeValidation, "evaluation is required")
	}
	return e.Validate()
}

var searchableFields = map[string]bool{
	"challengeId": true,
	"userId":      true,
}

func (Schema) ValidateFilters(filters map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(filters))
	for key, value := range filters {
		if !searchableFields[key] {
			return nil, domerrors.Newf(domerrors.CodeValidation, "unknown filter %q", key)
		}
		s, ok := value.(string)
		if !ok || s == "" {
			return nil, domerrors.Newf(domerrors.CodeValidation, "filter %s must be a non-empty string", key)
		}
		validated[key] = value
	}
	return validated, nil
}
