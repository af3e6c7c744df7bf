package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tharun797/deep-matchmaker/internal/profile"
	"github.com/tharun797/deep-matchmaker/internal/store"
)

// fakeStore is an in-memory store.Store used across the package tests.
type fakeStore struct {
	mu sync.Mutex

	claimed   string
	claimErr  error
	released  []string
	phases    []string
	resetErrs map[string]error

	poolIDs    []string
	eligible   []*profile.Profile
	detailsErr map[string]error

	commits   []store.MatchCommit
	commitErr error

	potential    map[string][]store.PotentialMatch
	potentialErr error

	prioritized   []string
	deprioritized []string
	priorityErr   error

	questions map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		potential: make(map[string][]store.PotentialMatch),
	}
}

func (f *fakeStore) ClaimRun(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	if f.claimed != "" {
		return store.ErrRunInProgress
	}
	f.claimed = runID
	return nil
}

func (f *fakeStore) ReleaseRun(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, runID)
	f.claimed = ""
	return nil
}

func (f *fakeStore) PoolProfileIDs(context.Context) ([]string, error) {
	if err := f.resetErr("pool"); err != nil {
		return nil, err
	}
	return f.poolIDs, nil
}

func (f *fakeStore) ExpireMatches(_ context.Context, _ []string) error {
	f.phase("expire")
	return f.resetErr("expire")
}

func (f *fakeStore) MarkMatchExpired(_ context.Context, _ []string) error {
	f.phase("mark")
	return f.resetErr("mark")
}

func (f *fakeStore) ClearPotentialMatches(_ context.Context, _ []string) error {
	f.phase("clear")
	return f.resetErr("clear")
}

func (f *fakeStore) EligibleProfiles(context.Context) ([]*profile.Profile, error) {
	return f.eligible, nil
}

func (f *fakeStore) LoadProfileDetails(_ context.Context, p *profile.Profile) error {
	if err := f.detailsErr[p.ID]; err != nil {
		return err
	}
	return nil
}

func (f *fakeStore) CommitMatch(_ context.Context, commit store.MatchCommit) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return "", f.commitErr
	}
	f.commits = append(f.commits, commit)
	return fmt.Sprintf("match-%d", len(f.commits)), nil
}

func (f *fakeStore) ReplacePotentialMatches(_ context.Context, profileID string, matches []store.PotentialMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.potentialErr != nil {
		return f.potentialErr
	}
	f.potential[profileID] = matches
	return nil
}

func (f *fakeStore) UpdatePriorityFlags(_ context.Context, unmatchedIDs, matchedIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priorityErr != nil {
		return f.priorityErr
	}
	f.prioritized = append(f.prioritized, unmatchedIDs...)
	f.deprioritized = append(f.deprioritized, matchedIDs...)
	return nil
}

func (f *fakeStore) Questions(_ context.Context, promptIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(promptIDs))
	for _, id := range promptIDs {
		if q, ok := f.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (f *fakeStore) phase(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phases = append(f.phases, name)
}

func (f *fakeStore) resetErr(name string) error {
	if f.resetErrs == nil {
		return nil
	}
	return f.resetErrs[name]
}

var _ store.Store = (*fakeStore)(nil)

// fakeCompleter returns a canned response, or an error, counting calls.
type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompleter) Model() string { return "fake" }

// fakeNotifier records notification calls.
type fakeNotifier struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (f *fakeNotifier) SendMatchNotification(_ context.Context, token1, token2 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]string{token1, token2})
	return f.err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errBoom = errors.New("boom")

func fullProfile(id string, age int, gender string, interestedIn []string, minAge, maxAge int) *profile.Profile {
	return &profile.Profile{
		ID:           id,
		Age:          age,
		HasAge:       true,
		Gender:       gender,
		InterestedIn: interestedIn,
		MinAge:       minAge,
		MaxAge:       maxAge,
		HasAgeRange:  true,
	}
}

func man(id string) *profile.Profile {
	return fullProfile(id, 30, "Man", []string{"Woman"}, 20, 40)
}

func woman(id string) *profile.Profile {
	return fullProfile(id, 30, "Woman", []string{"Man"}, 20, 40)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
