package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"praxis/internal/ai"
	chmodels "praxis/internal/challenge/models"
	"praxis/internal/evaluation/models"
	"praxis/internal/platform/metrics"
	"praxis/internal/storage/repo"
	domerrors "praxis/pkg/domain-errors"
)

// EvaluationRepository is the slice of the repository base this service uses.
type EvaluationRepository interface {
	FindByID(ctx context.Context, id string, required bool) (*models.Evaluation, error)
	Save(ctx context.Context, e *models.Evaluation) (*models.Evaluation, error)
	Search(ctx context.Context, filters map[string]any, opts repo.ListOptions) (repo.Page[*models.Evaluation], error)
}

// ChallengeReader resolves the challenge a submission answers.
type ChallengeReader interface {
	FindByID(ctx context.Context, id string, required bool) (*chmodels.Challenge, error)
}

// Evaluator is the guarded AI surface the service scores submissions through.
type Evaluator interface {
	Chat(ctx context.Context, req ai.Request, result any) (*ai.Response, error)
}

// Service scores submissions against their challenge.
type Service struct {
	repo       EvaluationRepository
	challenges ChallengeReader
	evaluator  Evaluator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(repository EvaluationRepository, challenges ChallengeReader, evaluator Evaluator, opts ...Option) *Service {
	s := &Service{
		repo:       repository,
		challenges: challenges,
		evaluator:  evaluator,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateRequest carries a user's submission for one challenge.
type EvaluateRequest struct {
	ChallengeID string
	UserID      string
	Submission  string
}

// scoredSubmission is the structured output contract for the provider.
type scoredSubmission struct {
	Score     int               `json:"score"`
	Feedback  string            `json:"feedback"`
	Rubric    map[string]string `json:"rubric"`
	Strengths []string          `json:"strengths"`
}

const evaluateSystemPrompt = "You are a personal growth coach scoring a submission against its " +
	"challenge. Score from 0 to 100 and explain the rubric per criterion."

// Evaluate scores a submission via the AI provider and persists the result.
// The scored event is published only after the transaction commits.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*models.Evaluation, error) {
	req.Submission = strings.TrimSpace(req.Submission)
	if req.UserID == "" {
		return nil, domerrors.New(domerrors.CodeValidation, "user id is required")
	}
	if req.Submission == "" {
		return nil, domerrors.New(domerrors.CodeValidation, "submission is required")
	}

	challenge, err := s.challenges.FindByID(ctx, req.ChallengeID, true)
	if err != nil {
		return nil, err
	}
	if challenge.Status != chmodels.StatusActive {
		return nil, domerrors.Newf(domerrors.CodeValidation,
			"challenge %s is not active", challenge.ID)
	}

	var scored scoredSubmission
	resp, err := s.evaluator.Chat(ctx, ai.Request{
		SystemPrompt: evaluateSystemPrompt,
		UserPrompt: "Challenge: " + challenge.Title +
			"\nFocus area: " + challenge.FocusArea +
			"\n\nSubmission:\n" + req.Submission,
		SchemaName:  "evaluation",
		Schema:      ai.GenerateSchema[scoredSubmission](),
		Temperature: ai.Temp(0.2),
	}, &scored)
	if err != nil {
		s.countAI("error")
		return nil, err
	}
	s.countAI("ok")
	s.logger.DebugContext(ctx, "submission scored",
		"challenge_id", challenge.ID,
		"score", scored.Score,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	rubric := make(map[string]any, len(scored.Rubric)+1)
	for criterion, note := range scored.Rubric {
		rubric[criterion] = note
	}
	if len(scored.Strengths) > 0 {
		rubric["strengths"] = scored.Strengths
	}

	evaluation, err := models.New(challenge.ID, req.UserID, scored.Score, scored.Feedback, rubric, time.Now().UTC())
	if err != nil {
		if domerrors.HasCode(err, domerrors.CodeInvariantViolation) {
			return nil, domerrors.Wrap(err, domerrors.CodeUnavailable, "provider returned an invalid evaluation")
		}
		return nil, err
	}
	return s.repo.Save(ctx, evaluation)
}

// Get loads one evaluation; absence is a NotFound error.
func (s *Service) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	return s.repo.FindByID(ctx, id, true)
}

// ListByChallenge returns the evaluations recorded for one challenge.
func (s *Service) ListByChallenge(ctx context.Context, challengeID string, opts repo.ListOptions) (repo.Page[*models.Evaluation], error) {
	return s.repo.Search(ctx, map[string]any{"challengeId": challengeID}, opts)
}

// ListByUser returns the evaluations recorded for one user.
func (s *Service) ListByUser(ctx context.Context, userID string, opts repo.ListOptions) (repo.Page[*models.Evaluation], error) {
	return s.repo.Search(ctx, map[string]any{"userId": userID}, opts)
}

func (s *Service) countAI(outcome string) {
	if s.metrics != nil {
		s.metrics.AICalls.WithLabelValues(outcome).Inc()
	}
}
