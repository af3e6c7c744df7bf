// Package store defines the transactional key-document store contract the
// matching core consumes. The Firestore implementation lives in the firestore
// subpackage; tests use in-memory fakes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tharun797/deep-matchmaker/internal/profile"
)

// ErrRunInProgress is returned by ClaimRun when another batch already holds
// the run flag.
var ErrRunInProgress = errors.New("a matching run is already in progress")

// MatchCommit describes one accepted pairing to be persisted atomically:
// both profile documents point at the new match record, the record itself is
// created unexpired, and each side's history entry is upserted with an
// incremented count.
type MatchCommit struct {
	ProfileID string
	MatchedID string
	MatchType string
}

// PotentialMatch is one persisted near-miss recommendation.
type PotentialMatch struct {
	UserID       string
	MatchScore   float64
	CalculatedAt time.Time
}

// Store is the persistence surface of one matching batch. Every write method
// is transactional or batched on the implementation side: a partial commit
// must not leave a match record without its paired profile updates.
type Store interface {
	// ClaimRun atomically flips the process-wide run flag from idle to the
	// given run token. It fails with ErrRunInProgress when a run is active.
	ClaimRun(ctx context.Context, runID string) error
	// ReleaseRun clears the run flag. Best-effort; called deferred.
	ReleaseRun(ctx context.Context, runID string) error

	// PoolProfileIDs lists every profile in the matching pool, regardless of
	// eligibility. The reset phase operates on this wider set.
	PoolProfileIDs(ctx context.Context) ([]string, error)
	// ExpireMatches marks the pool's match records expired and clears the
	// match pointers on the given profiles, in bounded batches.
	ExpireMatches(ctx context.Context, profileIDs []string) error
	// MarkMatchExpired flags the given profiles matchExpired=true so the
	// eligibility query can select them.
	MarkMatchExpired(ctx context.Context, profileIDs []string) error
	// ClearPotentialMatches deletes all potentialMatches entries for the
	// given profiles and zeroes the denormalized count and timestamp.
	ClearPotentialMatches(ctx context.Context, profileIDs []string) error

	// EligibleProfiles returns the verified, matchExpired profiles in the
	// pool, without subcollection data.
	EligibleProfiles(ctx context.Context) ([]*profile.Profile, error)
	// LoadProfileDetails hydrates one profile's answeredPrompts and history
	// subcollections in place.
	LoadProfileDetails(ctx context.Context, p *profile.Profile) error

	// CommitMatch persists an accepted pairing in a single transaction and
	// returns the new match record's ID.
	CommitMatch(ctx context.Context, commit MatchCommit) (string, error)

	// ReplacePotentialMatches deletes the profile's existing entries and
	// inserts the given ones, best first, updating the count and timestamp.
	ReplacePotentialMatches(ctx context.Context, profileID string, matches []PotentialMatch) error

	// UpdatePriorityFlags sets prioritizeNextMatch on the unmatched profiles
	// and removes the field from the matched ones, in one batched write.
	UpdatePriorityFlags(ctx context.Context, unmatchedIDs, matchedIDs []string) error
}

// QuestionLookup resolves prompt IDs to their question text.
type QuestionLookup interface {
	// Questions returns the text for each resolvable prompt ID. Missing
	// prompts are simply absent from the result.
	Questions(ctx context.Context, promptIDs []string) (map[string]string, error)
}
