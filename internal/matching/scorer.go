// Package matching implements the batch matchmaking core: AI-augmented
// scoring, best-match selection and commit, the potential-match pass, the
// pre-run reset phase, priority requeuing and the orchestrator tying them
// together.
package matching

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tharun797/deep-matchmaker/internal/ai"
	"github.com/tharun797/deep-matchmaker/internal/compat"
	"github.com/tharun797/deep-matchmaker/internal/logger"
	"github.com/tharun797/deep-matchmaker/internal/profile"
	"github.com/tharun797/deep-matchmaker/internal/store"
)

const (
	// Below this heuristic score the AI stage is skipped entirely: the pair
	// is a clear non-match and the AI budget is better spent elsewhere.
	aiShortCircuitThreshold = 0.3

	basicScoreWeight = 0.4
	aiScoreWeight    = 0.6

	// Prior partners are discouraged, not forbidden.
	historyPenaltyFactor = 0.8

	defaultAITimeout = 30 * time.Second
	defaultMaxLogLen = 200
)

// Scorer blends the heuristic compatibility score with a generative-AI
// assessment. The AI stage degrades gracefully: transport failures fall back
// to the heuristic score and malformed responses count as a neutral 0.5.
type Scorer struct {
	completer ai.Completer
	questions store.QuestionLookup
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

// NewScorer builds a Scorer. completer may be nil when AI scoring is
// disabled; the heuristic score is then used as-is.
func NewScorer(completer ai.Completer, questions store.QuestionLookup, timeout time.Duration, maxLogLen int, log *zap.Logger) *Scorer {
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLen
	}
	return &Scorer{
		completer: completer,
		questions: questions,
		timeout:   timeout,
		maxLogLen: maxLogLen,
		logger:    log,
	}
}

// ScoreWithAI returns the final compatibility score for the ordered pair
// (a, b), clamped to [0,1]. The history penalty applies when b appears in
// a's history, so the result is not symmetric.
func (s *Scorer) ScoreWithAI(ctx context.Context, a, b *profile.Profile) float64 {
	basic := compat.Score(a, b)

	if basic < aiShortCircuitThreshold {
		s.logger.Debug("basic score below AI threshold, skipping AI assessment",
			zap.String("profile_id", a.ID),
			zap.String("candidate_id", b.ID),
			zap.Float64("basic_score", basic),
		)
		return observeScore(basic)
	}

	if s.completer == nil {
		return observeScore(clamp01(basic))
	}

	aiScore, ok := s.aiScore(ctx, a, b)
	if !ok {
		// Transport or service failure: the heuristic score stands alone.
		return observeScore(clamp01(basic))
	}

	final := basic*basicScoreWeight + aiScore*aiScoreWeight

	if a.HasMatchedBefore(b.ID) {
		penalized := final * historyPenaltyFactor
		s.logger.Info("applied history penalty",
			zap.String("profile_id", a.ID),
			zap.String("candidate_id", b.ID),
			zap.Float64("score_before", final),
			zap.Float64("score_after", penalized),
		)
		final = penalized
	}

	final = observeScore(clamp01(final))

	s.logger.Debug("combined match score",
		zap.String("profile_id", a.ID),
		zap.String("candidate_id", b.ID),
		zap.Float64("basic_score", basic),
		zap.Float64("ai_score", aiScore),
		zap.Float64("final_score", final),
	)

	return final
}

// aiScore runs the generative stage. ok is false only on completer failure;
// an unparseable response still yields the neutral default score.
func (s *Scorer) aiScore(ctx context.Context, a, b *profile.Profile) (score float64, ok bool) {
	questions := s.lookupQuestions(ctx, a, b)
	prompt := buildMatchPrompt(a, b, questions)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	aiCallsTotal.Inc()

	s.logger.Debug("ai scoring request",
		zap.String("profile_id", a.ID),
		zap.String("candidate_id", b.ID),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.completer.Complete(callCtx, prompt)
	if err != nil {
		recordAIFallback("completer_error")
		s.logger.Warn("ai scoring failed, falling back to basic score",
			zap.String("profile_id", a.ID),
			zap.String("candidate_id", b.ID),
			zap.Error(err),
		)
		return 0, false
	}

	parsed, parsedOK := ai.ParseMatchScore(raw)
	if !parsedOK {
		recordAIFallback("parse_failure")
		s.logger.Warn("could not parse match score from ai response",
			zap.String("profile_id", a.ID),
			zap.String("candidate_id", b.ID),
			zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
		)
	}

	return parsed, true
}

func (s *Scorer) lookupQuestions(ctx context.Context, a, b *profile.Profile) map[string]string {
	ids := make([]string, 0, len(a.Prompts)+len(b.Prompts))
	seen := make(map[string]bool)
	for _, answers := range [][]profile.PromptAnswer{a.Prompts, b.Prompts} {
		for _, answer := range answers {
			if answer.PromptID == "" || seen[answer.PromptID] {
				continue
			}
			seen[answer.PromptID] = true
			ids = append(ids, answer.PromptID)
		}
	}

	if len(ids) == 0 || s.questions == nil {
		return nil
	}

	questions, err := s.questions.Questions(ctx, ids)
	if err != nil {
		s.logger.Warn("prompt question lookup failed", zap.Error(err))
		return nil
	}
	return questions
}

// observeScore records v in the compatibility score histogram. Every exit of
// ScoreWithAI goes through here so the distribution covers short-circuited
// and fallback scores, not just the blended path.
func observeScore(v float64) float64 {
	compatibilityScores.Observe(v)
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
