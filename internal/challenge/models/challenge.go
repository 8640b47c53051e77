package models

import (
	"fmt"
	"time"

	"praxis/internal/events"
	domerrors "praxis/pkg/domain-errors"
)

// Status is the challenge lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

var validStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusActive:    true,
	StatusCompleted: true,
	StatusArchived:  true,
}

// statusTransitions holds the allowed lifecycle moves. Completed and archived
// are terminal apart from archiving a completed challenge.
var statusTransitions = map[Status][]Status{
	StatusDraft:     {StatusActive, StatusArchived},
	StatusActive:    {StatusCompleted, StatusArchived},
	StatusCompleted: {StatusArchived},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Difficulty levels a challenge can be generated at.
var validDifficulties = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
}

// Challenge is a practice task generated for a user within a focus area.
//
// Invariants:
//   - UserID and FocusArea are non-empty
//   - Title is non-empty and at most 200 characters
//   - Difficulty is one of beginner/intermediate/advanced
//   - Status follows the lifecycle draft -> active -> completed, with
//     archiving allowed from any non-archived state
type Challenge struct {
	events.Recorder `json:"-"`

	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	FocusArea  string         `json:"focusArea"`
	Title      string         `json:"title"`
	Content    map[string]any `json:"content"`
	Difficulty string         `json:"difficulty"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// New constructs a draft challenge, validating invariants.
func New(userID, focusArea, title string, content map[string]any, difficulty string, now time.Time) (*Challenge, error) {
	c := &Challenge{
		UserID:     userID,
		FocusArea:  focusArea,
		Title:      title,
		Content:    content,
		Difficulty: difficulty,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// EntityID implements the repository entity contract.
func (c *Challenge) EntityID() string {
	return c.ID
}

// Validate checks the entity invariants.
func (c *Challenge) Validate() error {
	switch {
	case c.UserID == "":
		return domerrors.New(domerrors.CodeInvariantViolation, "challenge user id cannot be empty")
	case c.FocusArea == "":
		return domerrors.New(domerrors.CodeInvariantViolation, "challenge focus area cannot be empty")
	case c.Title == "":
		return domerrors.New(domerrors.CodeInvariantViolation, "challenge title cannot be empty")
	case len(c.Title) > 200:
		return domerrors.New(domerrors.CodeInvariantViolation, "challenge title must be 200 characters or less")
	case !validDifficulties[c.Difficulty]:
		return domerrors.Newf(domerrors.CodeInvariantViolation, "invalid difficulty %q", c.Difficulty)
	case !validStatuses[c.Status]:
		return domerrors.Newf(domerrors.CodeInvariantViolation, "invalid status %q", c.Status)
	}
	return nil
}

// Activate moves a draft challenge into the active state.
func (c *Challenge) Activate(now time.Time) error {
	return c.transition(StatusActive, now)
}

// Complete marks an active challenge as done and records the completion
// event.
func (c *Challenge) Complete(now time.Time) error {
	if err := c.transition(StatusCompleted, now); err != nil {
		return err
	}
	c.Record(events.New("challenge.completed", "challenge", c.ID, map[string]any{
		"id":        c.ID,
		"userId":    c.UserID,
		"focusArea": c.FocusArea,
	}))
	return nil
}

// Archive retires the challenge.
func (c *Challenge) Archive(now time.Time) error {
	return c.transition(StatusArchived, now)
}

func (c *Challenge) transition(next Status, now time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return domerrors.Newf(domerrors.CodeInvariantViolation,
			"challenge cannot move from %s to %s", c.Status, next)
	}
	c.Status = next
	c.UpdatedAt = now
	return nil
}

// ApplyPatch mutates the patchable fields, preserving invariants, and records
// an update event naming the changed fields.
func (c *Challenge) ApplyPatch(patch map[string]any) error {
	var changed []string
	for key, value := range patch {
		switch key {
		case "title":
			s, ok := value.(string)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "title must be a string")
			}
			c.Title = s
		case "content":
			m, ok := value.(map[string]any)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "content must be an object")
			}
			c.Content = m
		case "difficulty":
			s, ok := value.(string)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "difficulty must be a string")
			}
			c.Difficulty = s
		case "status":
			s, ok := value.(string)
			if !ok {
				return domerrors.New(domerrors.CodeValidation, "status must be a string")
			}
			if !c.Status.CanTransitionTo(Status(s)) {
				return domerrors.Newf(domerrors.CodeValidation,
					"challenge cannot move from %s to %s", c.Status, s)
			}
			c.Status = Status(s)
		default:
			return domerrors.Newf(domerrors.CodeValidation, "unknown patch field %q", key)
		}
		changed = append(changed, key)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	c.Record(events.New("challenge.updated", "challenge", c.ID, map[string]any{
		"id":      c.ID,
		"changed": changed,
	}))
	return nil
}

// Schema enforces entity and filter invariants for the repository base.
type Schema struct{}

func (Schema) ValidateEntity(c *Challenge) error {
	if c == nil {
		return domerrors.New(domerrors.CodeValidation, "challenge is required")
	}
	return c.Validate()
}

// searchableFields are the filterable domain field names and their expected
// kinds.
var searchableFields = map[string]func(any) error{
	"userId":    expectString,
	"focusArea": expectString,
	"difficulty": func(v any) error {
		s, ok := v.(string)
		if !ok || !validDifficulties[s] {
			return fmt.Errorf("difficulty must be one of beginner/intermediate/advanced")
		}
		return nil
	},
	"status": func(v any) error {
		s, ok := v.(string)
		if !ok || !validStatuses[Status(s)] {
			return fmt.Errorf("status must be a valid challenge status")
		}
		return nil
	},
}

func (Schema) ValidateFilters(filters map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(filters))
	for key, value := range filters {
		check, ok := searchableFields[key]
		if !ok {
			return nil, domerrors.Newf(domerrors.CodeValidation, "unknown filter %q", key)
		}
		if err := check(value); err != nil {
			return nil, domerrors.Wrap(err, domerrors.CodeValidation, "invalid filter "+key)
		}
		validated[key] = value
	}
	return validated, nil
}

func expectString(v any) error {
	if s, ok := v.(string); !ok || s == "" {
		return fmt.Errorf("expected non-empty string")
	}
	return nil
}
