package matching

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/tharun797/deep-matchmaker/internal/compat"
	"github.com/tharun797/deep-matchmaker/internal/profile"
	"github.com/tharun797/deep-matchmaker/internal/store"
)

// Profiles whose best candidate scores below this are left unmatched for the
// run; a best score of exactly the threshold commits.
const acceptanceThreshold = 0.6

// Notifier dispatches the match push notification. Failures never affect the
// committed match.
type Notifier interface {
	SendMatchNotification(ctx context.Context, token1, token2 string) error
}

// MatchCandidate is one scored candidate during a profile's evaluation. It
// lives only for the duration of that evaluation.
type MatchCandidate struct {
	Profile         *profile.Profile
	Score           float64
	CommonInterests []string
}

// Selector evaluates one profile against its candidate pool, picks the best
// scoring candidate and commits the pairing when it clears the acceptance
// threshold.
type Selector struct {
	scorer    *Scorer
	store     store.Store
	notifier  Notifier
	matchType string
	dryRun    bool
	logger    *zap.Logger
}

func NewSelector(scorer *Scorer, st store.Store, notifier Notifier, matchType string, dryRun bool, log *zap.Logger) *Selector {
	return &Selector{
		scorer:    scorer,
		store:     st,
		notifier:  notifier,
		matchType: matchType,
		dryRun:    dryRun,
		logger:    log,
	}
}

// FindBestMatch returns the ID of the candidate matched with p, or "" when p
// ends the evaluation unmatched. An error means the profile could not be
// evaluated (invalid profile, commit failure); the caller classifies it
// unmatched and continues the run.
func (s *Selector) FindBestMatch(ctx context.Context, p *profile.Profile, pool []*profile.Profile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	candidates := compat.FindCandidates(p, pool)
	if len(candidates) == 0 {
		s.logger.Info("no viable candidates",
			zap.String("profile_id", p.ID),
			zap.Int("pool_size", len(pool)),
		)
		return "", nil
	}

	scored := s.scoreCandidates(ctx, p, candidates)
	if len(scored) == 0 {
		return "", nil
	}

	// Stable sort: equal scores keep candidate order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	best := scored[0]

	if best.Score < acceptanceThreshold {
		s.logger.Info("best candidate below acceptance threshold",
			zap.String("profile_id", p.ID),
			zap.String("candidate_id", best.Profile.ID),
			zap.Float64("score", best.Score),
			zap.Float64("threshold", acceptanceThreshold),
		)
		return "", nil
	}

	if s.dryRun {
		s.logger.Info("dry run: would commit match",
			zap.String("profile_id", p.ID),
			zap.String("candidate_id", best.Profile.ID),
			zap.Float64("score", best.Score),
			zap.Strings("common_interests", best.CommonInterests),
		)
		return best.Profile.ID, nil
	}

	if err := s.commit(ctx, p, best); err != nil {
		return "", err
	}

	return best.Profile.ID, nil
}

func (s *Selector) scoreCandidates(ctx context.Context, p *profile.Profile, candidates []*profile.Profile) []MatchCandidate {
	scored := make([]MatchCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		score := s.scorer.ScoreWithAI(ctx, p, candidate)
		interests := findCommonInterests(p, candidate)

		s.logger.Debug("candidate scored",
			zap.String("profile_id", p.ID),
			zap.String("candidate_id", candidate.ID),
			zap.Float64("score", score),
			zap.Int("common_interests", len(interests)),
		)

		scored = append(scored, MatchCandidate{
			Profile:         candidate,
			Score:           score,
			CommonInterests: interests,
		})
	}
	return scored
}

// commit persists the pairing transactionally while the notification is
// dispatched concurrently. A notification failure is logged only; a commit
// failure is returned and the pairing does not take effect for the run.
func (s *Selector) commit(ctx context.Context, p *profile.Profile, best MatchCandidate) error {
	notifyDone := make(chan error, 1)
	go func() {
		if s.notifier == nil {
			notifyDone <- nil
			return
		}
		notifyDone <- s.notifier.SendMatchNotification(ctx, p.FCMToken, best.Profile.FCMToken)
	}()

	matchID, err := s.store.CommitMatch(ctx, store.MatchCommit{
		ProfileID: p.ID,
		MatchedID: best.Profile.ID,
		MatchType: s.matchType,
	})

	if notifyErr := <-notifyDone; notifyErr != nil {
		s.logger.Warn("match notification failed",
			zap.String("profile_id", p.ID),
			zap.String("candidate_id", best.Profile.ID),
			zap.Error(notifyErr),
		)
	}

	if err != nil {
		return fmt.Errorf("commit best match: %w", err)
	}

	matchesTotal.Inc()

	s.logger.Info("match committed",
		zap.String("profile_id", p.ID),
		zap.String("candidate_id", best.Profile.ID),
		zap.String("match_id", matchID),
		zap.Float64("score", best.Score),
		zap.Strings("common_interests", best.CommonInterests),
	)

	return nil
}
