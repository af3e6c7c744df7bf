package matching

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/tharun797/deep-matchmaker/internal/profile"
)

func scoreSampleCount(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	if err := compatibilityScores.Write(&m); err != nil {
		t.Fatalf("reading score histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestScoreWithAISkipsAIBelowThreshold(t *testing.T) {
	// Both age windows miss: basic score is 0.
	a := fullProfile("a", 30, "Man", []string{"Woman"}, 40, 50)
	b := fullProfile("b", 30, "Woman", []string{"Man"}, 40, 50)

	completer := &fakeCompleter{response: "Match Score: 1"}
	scorer := NewScorer(completer, nil, time.Second, 0, zap.NewNop())

	got := scorer.ScoreWithAI(context.Background(), a, b)

	if got != 0 {
		t.Fatalf("expected the basic score 0, got %v", got)
	}
	if completer.calls != 0 {
		t.Fatalf("AI must not be called below the threshold, got %d calls", completer.calls)
	}
}

func TestScoreWithAIBlendsScores(t *testing.T) {
	a, b := man("a"), woman("b")

	completer := &fakeCompleter{response: "Match Score: 0.5"}
	scorer := NewScorer(completer, nil, time.Second, 0, zap.NewNop())

	got := scorer.ScoreWithAI(context.Background(), a, b)

	// basic 1.0 weighted 0.4 plus ai 0.5 weighted 0.6.
	if !approx(got, 0.7) {
		t.Fatalf("expected 0.7, got %v", got)
	}
	if completer.calls != 1 {
		t.Fatalf("expected 1 AI call, got %d", completer.calls)
	}
}

func TestScoreWithAIUsesDefaultOnUnparseableResponse(t *testing.T) {
	a, b := man("a"), woman("b")

	completer := &fakeCompleter{response: "these two seem great together"}
	scorer := NewScorer(completer, nil, time.Second, 0, zap.NewNop())

	got := scorer.ScoreWithAI(context.Background(), a, b)

	// The neutral 0.5 stands in for the missing score: 0.4*1 + 0.6*0.5.
	if !approx(got, 0.7) {
		t.Fatalf("expected 0.7 with the default AI score, got %v", got)
	}
}

func TestScoreWithAIFallsBackOnCompleterError(t *testing.T) {
	a, b := man("a"), woman("b")

	completer := &fakeCompleter{err: errBoom}
	scorer := NewScorer(completer, nil, time.Second, 0, zap.NewNop())

	got := scorer.ScoreWithAI(context.Background(), a, b)

	if got != 1 {
		t.Fatalf("expected the basic score 1 on AI failure, got %v", got)
	}
}

func TestScoreWithAIAppliesHistoryPenalty(t *testing.T) {
	a, b := man("a"), woman("b")
	a.History = []string{"b"}

	completer := &fakeCompleter{response: "Match Score: 1"}
	scorer := NewScorer(completer, nil, time.Second, 0, zap.NewNop())

	got := scorer.ScoreWithAI(context.Background(), a, b)

	// Full blend 1.0 reduced by the history penalty.
	if !approx(got, 0.8) {
		t.Fatalf("expected 0.8 after the history penalty, got %v", got)
	}
}

func TestScoreWithAIClampsResponse(t *testing.T) {
	a, b := man("a"), woman("b")

	completer := &fakeCompleter{response: "Match Score: 5"}
	scorer := NewScorer(completer, nil, time.Second, 0, zap.NewNop())

	got := scorer.ScoreWithAI(context.Background(), a, b)

	if got != 1 {
		t.Fatalf("expected the score clamped to 1, got %v", got)
	}
}

func TestScoreWithAIObservesEveryExitPath(t *testing.T) {
	low := fullProfile("a", 30, "Man", []string{"Woman"}, 40, 50)
	lowPartner := fullProfile("b", 30, "Woman", []string{"Man"}, 40, 50)
	a, b := man("a"), woman("b")

	cases := []struct {
		name   string
		scorer *Scorer
		first  *profile.Profile
		second *profile.Profile
	}{
		{"short circuit", NewScorer(&fakeCompleter{response: "Match Score: 1"}, nil, time.Second, 0, zap.NewNop()), low, lowPartner},
		{"no completer", NewScorer(nil, nil, time.Second, 0, zap.NewNop()), a, b},
		{"completer failure", NewScorer(&fakeCompleter{err: errBoom}, nil, time.Second, 0, zap.NewNop()), a, b},
		{"blended", NewScorer(&fakeCompleter{response: "Match Score: 0.5"}, nil, time.Second, 0, zap.NewNop()), a, b},
	}

	for _, tc := range cases {
		before := scoreSampleCount(t)
		tc.scorer.ScoreWithAI(context.Background(), tc.first, tc.second)
		if after := scoreSampleCount(t); after != before+1 {
			t.Fatalf("%s: expected one histogram sample, counts went %d to %d", tc.name, before, after)
		}
	}
}

func TestScoreWithAIWithoutCompleter(t *testing.T) {
	a, b := man("a"), woman("b")

	scorer := NewScorer(nil, nil, time.Second, 0, zap.NewNop())

	if got := scorer.ScoreWithAI(context.Background(), a, b); got != 1 {
		t.Fatalf("expected the basic score without a completer, got %v", got)
	}
}
