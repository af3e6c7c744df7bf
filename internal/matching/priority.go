package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/tharun797/deep-matchmaker/internal/store"
)

// Requeuer flags this run's unmatched profiles for front-of-queue treatment
// next run, and clears the flag from profiles that did get matched. The
// update is best-effort: a failure costs fairness, not correctness.
type Requeuer struct {
	store  store.Store
	logger *zap.Logger
}

func NewRequeuer(st store.Store, log *zap.Logger) *Requeuer {
	return &Requeuer{store: st, logger: log}
}

func (r *Requeuer) Requeue(ctx context.Context, unmatchedIDs, matchedIDs []string) {
	if len(unmatchedIDs) == 0 && len(matchedIDs) == 0 {
		return
	}

	if err := r.store.UpdatePriorityFlags(ctx, unmatchedIDs, matchedIDs); err != nil {
		r.logger.Error("updating priority flags failed",
			zap.Int("unmatched", len(unmatchedIDs)),
			zap.Int("matched", len(matchedIDs)),
			zap.Error(err),
		)
		return
	}

	r.logger.Info("updated priority flags",
		zap.Int("prioritized", len(unmatchedIDs)),
		zap.Int("cleared", len(matchedIDs)),
	)
}
