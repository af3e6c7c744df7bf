package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tharun797/deep-matchmaker/internal/store"
)

// Resetter returns the platform to a clean slate before a matching run:
// active matches are expired, match references on profiles are cleared, and
// stale potential-match recommendations are deleted. Any failure here is
// fatal for the run, since matching against stale state would produce
// duplicate or conflicting matches.
type Resetter struct {
	store  store.Store
	logger *zap.Logger
}

func NewResetter(st store.Store, log *zap.Logger) *Resetter {
	return &Resetter{store: st, logger: log}
}

func (r *Resetter) Reset(ctx context.Context) error {
	ids, err := r.store.PoolProfileIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing pool profiles: %w", err)
	}

	r.logger.Info("resetting matches", zap.Int("profiles", len(ids)))

	if err := r.store.ExpireMatches(ctx, ids); err != nil {
		return fmt.Errorf("expiring matches: %w", err)
	}
	r.logger.Info("expired match records and cleared match references")

	if err := r.store.MarkMatchExpired(ctx, ids); err != nil {
		return fmt.Errorf("marking profiles match-expired: %w", err)
	}
	r.logger.Info("marked profiles eligible for rematching")

	if err := r.store.ClearPotentialMatches(ctx, ids); err != nil {
		return fmt.Errorf("clearing potential matches: %w", err)
	}
	r.logger.Info("cleared stale potential matches")

	return nil
}
