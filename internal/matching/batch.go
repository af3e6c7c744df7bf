package matching

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tharun797/deep-matchmaker/internal/profile"
	"github.com/tharun797/deep-matchmaker/internal/store"
)

// MatchedPair is one committed pairing in a run report.
type MatchedPair struct {
	ProfileID string
	MatchedID string
}

// RunReport summarizes one completed batch.
type RunReport struct {
	RunID            string
	Eligible         int
	Matched          []MatchedPair
	Unmatched        int
	PotentialMatches int
	DryRun           bool
	Duration         time.Duration
}

// Orchestrator drives one end-to-end matching batch: claim the run flag,
// reset previous matches, load and order the eligible pool, walk it
// sequentially committing at most one match per profile, then store
// potential matches and priority flags for the leftovers.
type Orchestrator struct {
	store     store.Store
	resetter  *Resetter
	selector  *Selector
	potential *PotentialFinder
	requeuer  *Requeuer
	rnd       *rand.Rand
	dryRun    bool
	logger    *zap.Logger
}

func NewOrchestrator(st store.Store, resetter *Resetter, selector *Selector, potential *PotentialFinder, requeuer *Requeuer, rnd *rand.Rand, dryRun bool, log *zap.Logger) *Orchestrator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orchestrator{
		store:     st,
		resetter:  resetter,
		selector:  selector,
		potential: potential,
		requeuer:  requeuer,
		rnd:       rnd,
		dryRun:    dryRun,
		logger:    log,
	}
}

// Run executes the batch. It returns store.ErrRunInProgress when another
// batch holds the run flag.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	runID := uuid.NewString()

	log := o.logger.With(zap.String("run_id", runID))

	if o.dryRun {
		log.Info("dry run: no writes will be performed")
	} else {
		if err := o.store.ClaimRun(ctx, runID); err != nil {
			if errors.Is(err, store.ErrRunInProgress) {
				return nil, err
			}
			return nil, fmt.Errorf("claiming run flag: %w", err)
		}
		defer func() {
			// Release uses a fresh context so a canceled run still
			// unlocks the flag.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := o.store.ReleaseRun(releaseCtx, runID); err != nil {
				log.Error("releasing run flag failed", zap.Error(err))
			}
		}()

		if err := o.resetter.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset phase: %w", err)
		}
	}

	pool, err := o.loadPool(ctx, log)
	if err != nil {
		return nil, err
	}

	log.Info("starting matching pass", zap.Int("eligible", len(pool)))

	ordered := o.orderPool(pool)

	report := &RunReport{RunID: runID, Eligible: len(pool), DryRun: o.dryRun}

	matched := make(map[string]string, len(ordered))
	for _, p := range ordered {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, ok := matched[p.ID]; ok {
			continue
		}

		available := availablePool(ordered, matched, p.ID)
		matchedID, err := o.selector.FindBestMatch(ctx, p, available)
		if err != nil {
			log.Error("profile evaluation failed",
				zap.String("profile_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		if matchedID == "" {
			continue
		}

		matched[p.ID] = matchedID
		matched[matchedID] = p.ID
		report.Matched = append(report.Matched, MatchedPair{
			ProfileID: p.ID,
			MatchedID: matchedID,
		})
	}

	var unmatched []*profile.Profile
	var unmatchedIDs, matchedIDs []string
	for _, p := range ordered {
		if _, ok := matched[p.ID]; ok {
			matchedIDs = append(matchedIDs, p.ID)
		} else {
			unmatched = append(unmatched, p)
			unmatchedIDs = append(unmatchedIDs, p.ID)
		}
	}
	report.Unmatched = len(unmatched)
	unmatchedTotal.Add(float64(len(unmatched)))

	if !o.dryRun {
		report.PotentialMatches = o.potential.Process(ctx, unmatched, ordered)
		o.requeuer.Requeue(ctx, unmatchedIDs, matchedIDs)
	}

	report.Duration = time.Since(start)
	runDuration.Observe(report.Duration.Seconds())

	log.Info("matching run complete",
		zap.Int("eligible", report.Eligible),
		zap.Int("matched_pairs", len(report.Matched)),
		zap.Int("unmatched", report.Unmatched),
		zap.Duration("duration", report.Duration),
	)

	return report, nil
}

// loadPool fetches eligible profiles and hydrates their subcollections.
// Profiles whose details fail to load are dropped from the run.
func (o *Orchestrator) loadPool(ctx context.Context, log *zap.Logger) ([]*profile.Profile, error) {
	profiles, err := o.store.EligibleProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing eligible profiles: %w", err)
	}

	pool := profiles[:0]
	for _, p := range profiles {
		if err := o.store.LoadProfileDetails(ctx, p); err != nil {
			log.Warn("loading profile details failed, skipping profile",
				zap.String("profile_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		pool = append(pool, p)
	}
	return pool, nil
}

// orderPool partitions the pool into scheduling tiers and shuffles within
// each tier, so processing order favors prioritized and premium profiles
// while staying fair inside a tier.
func (o *Orchestrator) orderPool(pool []*profile.Profile) []*profile.Profile {
	tiers := make(map[profile.Tier][]*profile.Profile)
	for _, p := range pool {
		t := profile.TierOf(p)
		tiers[t] = append(tiers[t], p)
	}

	ordered := make([]*profile.Profile, 0, len(pool))
	for _, t := range []profile.Tier{
		profile.TierPriorityPremium,
		profile.TierPremium,
		profile.TierPriorityFree,
		profile.TierFree,
	} {
		batch := tiers[t]
		o.rnd.Shuffle(len(batch), func(i, j int) {
			batch[i], batch[j] = batch[j], batch[i]
		})
		o.logger.Debug("scheduling tier",
			zap.String("tier", t.String()),
			zap.Int("profiles", len(batch)),
		)
		ordered = append(ordered, batch...)
	}
	return ordered
}

// availablePool returns the profiles still matchable when evaluating the
// given profile: everyone not yet matched this run, excluding the profile
// itself.
func availablePool(all []*profile.Profile, matched map[string]string, selfID string) []*profile.Profile {
	avail := make([]*profile.Profile, 0, len(all))
	for _, p := range all {
		if p.ID == selfID {
			continue
		}
		if _, ok := matched[p.ID]; ok {
			continue
		}
		avail = append(avail, p)
	}
	return avail
}
