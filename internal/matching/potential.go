package matching

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tharun797/deep-matchmaker/internal/compat"
	"github.com/tharun797/deep-matchmaker/internal/profile"
	"github.com/tharun797/deep-matchmaker/internal/store"
)

const (
	// The near-miss band sits just below the acceptance threshold: good
	// enough to surface as a future-run recommendation, not good enough to
	// commit now.
	potentialMinScore = 0.5
	potentialMaxScore = 0.59

	maxPotentialMatches = 15
)

// PotentialFinder produces ranked near-miss recommendations for profiles the
// main pass left unmatched. Candidates are drawn from the full original
// profile set, matched profiles included, since the recommendations target
// future runs.
type PotentialFinder struct {
	scorer *Scorer
	store  store.Store
	now    func() time.Time
	logger *zap.Logger
}

func NewPotentialFinder(scorer *Scorer, st store.Store, log *zap.Logger) *PotentialFinder {
	return &PotentialFinder{
		scorer: scorer,
		store:  st,
		now:    time.Now,
		logger: log,
	}
}

// Process computes and persists potential matches for every unmatched
// profile, returning the number of entries stored. Per-profile failures are
// logged and do not abort the rest.
func (f *PotentialFinder) Process(ctx context.Context, unmatched []*profile.Profile, all []*profile.Profile) int {
	f.logger.Info("processing potential matches for unmatched profiles",
		zap.Int("unmatched", len(unmatched)),
	)

	stored := 0
	for _, p := range unmatched {
		matches := f.findForProfile(ctx, p, all)
		if len(matches) == 0 {
			f.logger.Info("no potential matches found",
				zap.String("profile_id", p.ID),
			)
			continue
		}

		if err := f.store.ReplacePotentialMatches(ctx, p.ID, matches); err != nil {
			f.logger.Error("storing potential matches failed",
				zap.String("profile_id", p.ID),
				zap.Error(err),
			)
			continue
		}

		stored += len(matches)
		potentialMatchesTotal.Add(float64(len(matches)))

		f.logger.Info("stored potential matches",
			zap.String("profile_id", p.ID),
			zap.Int("count", len(matches)),
		)
	}

	return stored
}

func (f *PotentialFinder) findForProfile(ctx context.Context, p *profile.Profile, all []*profile.Profile) []store.PotentialMatch {
	var matches []store.PotentialMatch

	for _, candidate := range all {
		if candidate.ID == p.ID {
			continue
		}
		if !compat.MeetsBasicCriteria(p, candidate) {
			continue
		}

		score := f.scorer.ScoreWithAI(ctx, p, candidate)
		if score < potentialMinScore || score > potentialMaxScore {
			continue
		}

		matches = append(matches, store.PotentialMatch{
			UserID:       candidate.ID,
			MatchScore:   score,
			CalculatedAt: f.now(),
		})

		f.logger.Debug("found potential match",
			zap.String("profile_id", p.ID),
			zap.String("candidate_id", candidate.ID),
			zap.Float64("score", score),
		)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})

	if len(matches) > maxPotentialMatches {
		matches = matches[:maxPotentialMatches]
		f.logger.Info("limited potential matches",
			zap.String("profile_id", p.ID),
			zap.Int("limit", maxPotentialMatches),
		)
	}

	return matches
}
