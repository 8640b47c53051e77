package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"praxis/internal/ai"
	"praxis/internal/challenge/models"
	"praxis/internal/platform/metrics"
	"praxis/internal/storage/repo"
	domerrors "praxis/pkg/domain-errors"
)

// ChallengeRepository is the slice of the repository base this service uses.
type ChallengeRepository interface {
	FindByID(ctx context.Context, id string, required bool) (*models.Challenge, error)
	Save(ctx context.Context, c *models.Challenge) (*models.Challenge, error)
	Update(ctx context.Context, id string, patch map[string]any) (*models.Challenge, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, filters map[string]any, opts repo.ListOptions) (repo.Page[*models.Challenge], error)
}

// Generator is the guarded AI surface the service generates content through.
type Generator interface {
	Chat(ctx context.Context, req ai.Request, result any) (*ai.Response, error)
}

// Service orchestrates challenge generation and lifecycle.
type Service struct {
	repo      ChallengeRepository
	generator Generator
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(repository ChallengeRepository, generator Generator, opts ...Option) *Service {
	s := &Service{repo: repository, generator: generator, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateRequest asks for a new challenge within a focus area.
type GenerateRequest struct {
	UserID     string
	FocusArea  string
	Difficulty string
}

// generatedChallenge is the structured output contract for the provider.
type generatedChallenge struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Instructions []string `json:"instructions"`
	SuccessHints []string `json:"success_hints"`
}

const generateSystemPrompt = "You are a personal growth coach. Generate one concrete practice " +
	"challenge for the given focus area and difficulty. Keep instructions actionable."

// Generate produces a challenge via the AI provider and persists it.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*models.Challenge, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.FocusArea = strings.TrimSpace(req.FocusArea)
	if req.UserID == "" {
		return nil, domerrors.New(domerrors.CodeValidation, "user id is required")
	}
	if req.FocusArea == "" {
		return nil, domerrors.New(domerrors.CodeValidation, "focus area is required")
	}
	if req.Difficulty == "" {
		req.Difficulty = "intermediate"
	}

	var generated generatedChallenge
	resp, err := s.generator.Chat(ctx, ai.Request{
		SystemPrompt: generateSystemPrompt,
		UserPrompt:   "Focus area: " + req.FocusArea + "\nDifficulty: " + req.Difficulty,
		SchemaName:   "challenge",
		Schema:       ai.GenerateSchema[generatedChallenge](),
		Temperature:  ai.Temp(0.7),
	}, &generated)
	if err != nil {
		s.countAI("error")
		return nil, err
	}
	s.countAI("ok")
	s.logger.DebugContext(ctx, "challenge generated",
		"focus_area", req.FocusArea,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	now := time.Now().UTC()
	challenge, err := models.New(req.UserID, req.FocusArea, generated.Title, map[string]any{
		"description":  generated.Description,
		"instructions": generated.Instructions,
		"successHints": generated.SuccessHints,
	}, req.Difficulty, now)
	if err != nil {
		if domerrors.HasCode(err, domerrors.CodeInvariantViolation) {
			return nil, domerrors.Wrap(err, domerrors.CodeValidation, "generated challenge is invalid")
		}
		return nil, err
	}
	if err := challenge.Activate(now); err != nil {
		return nil, err
	}

	return s.repo.Save(ctx, challenge)
}

// Get loads one challenge; absence is a NotFound error.
func (s *Service) Get(ctx context.Context, id string) (*models.Challenge, error) {
	return s.repo.FindByID(ctx, id, true)
}

// List searches challenges with validated filters and options.
func (s *Service) List(ctx context.Context, filters map[string]any, opts repo.ListOptions) (repo.Page[*models.Challenge], error) {
	return s.repo.Search(ctx, filters, opts)
}

// Patch applies a partial update through the entity's mutation method.
func (s *Service) Patch(ctx context.Context, id string, patch map[string]any) (*models.Challenge, error) {
	return s.repo.Update(ctx, id, patch)
}

// Complete marks a challenge done. The completion event is published only
// after the underlying transaction commits.
func (s *Service) Complete(ctx context.Context, id string) (*models.Challenge, error) {
	challenge, err := s.repo.FindByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if err := challenge.Complete(time.Now().UTC()); err != nil {
		if domerrors.HasCode(err, domerrors.CodeInvariantViolation) {
			return nil, domerrors.Wrap(err, domerrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	return s.repo.Save(ctx, challenge)
}

// Delete removes a challenge.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.repo.Delete(ctx, id)
}

func (s *Service) countAI(outcome string) {
	if s.metrics != nil {
		s.metrics.AICalls.WithLabelValues(outcome).Inc()
	}
}
