// Package firestore implements the store contract on Cloud Firestore, using
// the same document layout the mobile clients read: users (+ answeredPrompts,
// history, potentialMatches subcollections), matches and appConfig/settings.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tharun797/deep-matchmaker/internal/profile"
	"github.com/tharun797/deep-matchmaker/internal/store"
)

const (
	usersCollection     = "users"
	matchesCollection   = "matches"
	promptsCollection   = "prompts"
	promptsSubcol       = "answeredPrompts"
	historySubcol       = "history"
	potentialSubcol     = "potentialMatches"
	appConfigCollection = "appConfig"
	settingsDoc         = "settings"

	// Firestore caps a batch at 500 writes; stay under it with headroom.
	resetBatchSize     = 400
	potentialBatchSize = 450
)

type Config struct {
	ProjectID       string
	CredentialsFile string
	// PoolLabel selects the userType the batch operates on.
	PoolLabel string
}

type Store struct {
	client *firestore.Client
	pool   string
	logger *zap.Logger
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	return &Store{client: client, pool: cfg.PoolLabel, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// userDoc mirrors the users document shape. Age fields are pointers because
// incomplete onboarding leaves them absent.
type userDoc struct {
	Name                string   `firestore:"name"`
	Age                 *int     `firestore:"age"`
	Gender              string   `firestore:"gender"`
	Sexuality           string   `firestore:"sexuality"`
	Pronouns            []string `firestore:"pronouns"`
	InterestedIn        []string `firestore:"interestedIn"`
	MinAge              *int     `firestore:"minAge"`
	MaxAge              *int     `firestore:"maxAge"`
	City                string   `firestore:"city"`
	Work                string   `firestore:"work"`
	JobTitle            string   `firestore:"jobTitle"`
	EducationLevel      string   `firestore:"educationLevel"`
	DatingIntention     string   `firestore:"datingIntention"`
	LanguagesSpoken     []string `firestore:"languagesSpoken"`
	IsPremium           bool     `firestore:"isPremium"`
	PrioritizeNextMatch bool     `firestore:"prioritizeNextMatch"`
	IsOnline            bool     `firestore:"isOnline"`
	MarkedForDeletion   bool     `firestore:"markedForDeletion"`
	VerificationStatus  string   `firestore:"verificationStatus"`
	FCMToken            string   `firestore:"fcmToken"`
}

type promptDoc struct {
	Question string `firestore:"question"`
	Answer   string `firestore:"answer"`
}

func (s *Store) ClaimRun(ctx context.Context, runID string) error {
	ref := s.client.Collection(appConfigCollection).Doc(settingsDoc)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && !isNotFound(err) {
			// A failed read must abort the claim: treating it as a missing
			// document would steal the flag from a live run.
			return fmt.Errorf("read run flag: %w", err)
		}

		if snap != nil && snap.Exists() {
			inProgress, _ := snap.DataAt("matchingInProgress")
			if active, ok := inProgress.(bool); ok && active {
				return store.ErrRunInProgress
			}
		}

		return tx.Set(ref, map[string]any{
			"matchingInProgress": true,
			"matchingRunID":      runID,
			"matchingStartedAt":  firestore.ServerTimestamp,
		}, firestore.MergeAll)
	})
}

// isNotFound reports whether err is a Firestore missing-document read error.
// Only this case may fall through to creating the settings document.
func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Store) ReleaseRun(ctx context.Context, runID string) error {
	ref := s.client.Collection(appConfigCollection).Doc(settingsDoc)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}

		// Another run may have claimed the flag after ours failed over.
		current, _ := snap.DataAt("matchingRunID")
		if id, ok := current.(string); ok && id != runID {
			return nil
		}

		return tx.Set(ref, map[string]any{
			"matchingInProgress": false,
			"matchingRunID":      firestore.Delete,
		}, firestore.MergeAll)
	})
}

func (s *Store) PoolProfileIDs(ctx context.Context) ([]string, error) {
	query := s.client.Collection(usersCollection).Where("userType", "==", s.pool)

	var ids []string
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list pool profiles: %w", err)
		}
		ids = append(ids, snap.Ref.ID)
	}

	return ids, nil
}

func (s *Store) ExpireMatches(ctx context.Context, profileIDs []string) error {
	matches := s.client.Collection(matchesCollection).Where("matchType", "==", s.pool)

	iter := matches.Documents(ctx)
	defer iter.Stop()

	batcher := s.newBatcher(resetBatchSize)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("list match records: %w", err)
		}

		batcher.update(snap.Ref, []firestore.Update{
			{Path: "expired", Value: true},
		})
		if err := batcher.flushFull(ctx); err != nil {
			return fmt.Errorf("expire match records: %w", err)
		}
	}

	for _, id := range profileIDs {
		batcher.update(s.client.Collection(usersCollection).Doc(id), []firestore.Update{
			{Path: "matchedUserId", Value: nil},
			{Path: "matchId", Value: nil},
		})
		if err := batcher.flushFull(ctx); err != nil {
			return fmt.Errorf("clear match pointers: %w", err)
		}
	}

	return batcher.flush(ctx)
}

func (s *Store) MarkMatchExpired(ctx context.Context, profileIDs []string) error {
	batcher := s.newBatcher(resetBatchSize)
	for _, id := range profileIDs {
		batcher.update(s.client.Collection(usersCollection).Doc(id), []firestore.Update{
			{Path: "matchExpired", Value: true},
		})
		if err := batcher.flushFull(ctx); err != nil {
			return fmt.Errorf("mark matchExpired: %w", err)
		}
	}

	return batcher.flush(ctx)
}

func (s *Store) ClearPotentialMatches(ctx context.Context, profileIDs []string) error {
	for _, id := range profileIDs {
		userRef := s.client.Collection(usersCollection).Doc(id)

		deleted, err := s.deleteSubcollection(ctx, userRef.Collection(potentialSubcol), resetBatchSize)
		if err != nil {
			return fmt.Errorf("clear potential matches for %s: %w", id, err)
		}

		if deleted == 0 {
			continue
		}

		if _, err := userRef.Update(ctx, []firestore.Update{
			{Path: "potentialMatchesCount", Value: 0},
			{Path: "potentialMatchesLastUpdated", Value: nil},
		}); err != nil {
			return fmt.Errorf("reset potential match counters for %s: %w", id, err)
		}

		s.logger.Debug("cleared potential matches",
			zap.String("profile_id", id),
			zap.Int("deleted", deleted),
		)
	}

	return nil
}

func (s *Store) EligibleProfiles(ctx context.Context) ([]*profile.Profile, error) {
	query := s.client.Collection(usersCollection).
		Where("verificationStatus", "==", "verified").
		Where("matchExpired", "==", true).
		Where("userType", "==", s.pool)

	var profiles []*profile.Profile
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query eligible profiles: %w", err)
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			s.logger.Warn("skipping unreadable profile document",
				zap.String("profile_id", snap.Ref.ID),
				zap.Error(err),
			)
			continue
		}

		profiles = append(profiles, doc.toProfile(snap.Ref.ID))
	}

	return profiles, nil
}

func (s *Store) LoadProfileDetails(ctx context.Context, p *profile.Profile) error {
	userRef := s.client.Collection(usersCollection).Doc(p.ID)

	prompts := userRef.Collection(promptsSubcol).Documents(ctx)
	defer prompts.Stop()
	for {
		snap, err := prompts.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("load prompts for %s: %w", p.ID, err)
		}

		var doc promptDoc
		if err := snap.DataTo(&doc); err != nil {
			continue
		}
		p.Prompts = append(p.Prompts, profile.PromptAnswer{
			PromptID: snap.Ref.ID,
			Question: doc.Question,
			Answer:   doc.Answer,
		})
	}

	history := userRef.Collection(historySubcol).Documents(ctx)
	defer history.Stop()
	for {
		snap, err := history.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("load history for %s: %w", p.ID, err)
		}
		p.History = append(p.History, snap.Ref.ID)
	}

	return nil
}

func (s *Store) CommitMatch(ctx context.Context, commit store.MatchCommit) (string, error) {
	users := s.client.Collection(usersCollection)
	matchRef := s.client.Collection(matchesCollection).NewDoc()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Update(users.Doc(commit.ProfileID), []firestore.Update{
			{Path: "matchedUserId", Value: commit.MatchedID},
			{Path: "matchId", Value: matchRef.ID},
		}); err != nil {
			return err
		}

		if err := tx.Update(users.Doc(commit.MatchedID), []firestore.Update{
			{Path: "matchedUserId", Value: commit.ProfileID},
			{Path: "matchId", Value: matchRef.ID},
		}); err != nil {
			return err
		}

		if err := tx.Set(matchRef, map[string]any{
			"matchedAt": firestore.ServerTimestamp,
			"expired":   false,
			"matchType": commit.MatchType,
		}); err != nil {
			return err
		}

		historyEntry := map[string]any{
			"matchedAt": firestore.ServerTimestamp,
			"count":     firestore.Increment(1),
		}

		aHistory := users.Doc(commit.ProfileID).Collection(historySubcol).Doc(commit.MatchedID)
		if err := tx.Set(aHistory, historyEntry, firestore.MergeAll); err != nil {
			return err
		}

		bHistory := users.Doc(commit.MatchedID).Collection(historySubcol).Doc(commit.ProfileID)
		return tx.Set(bHistory, historyEntry, firestore.MergeAll)
	})
	if err != nil {
		return "", fmt.Errorf("commit match %s/%s: %w", commit.ProfileID, commit.MatchedID, err)
	}

	return matchRef.ID, nil
}

func (s *Store) ReplacePotentialMatches(ctx context.Context, profileID string, matches []store.PotentialMatch) error {
	userRef := s.client.Collection(usersCollection).Doc(profileID)
	subcol := userRef.Collection(potentialSubcol)

	if _, err := s.deleteSubcollection(ctx, subcol, potentialBatchSize); err != nil {
		return fmt.Errorf("delete existing potential matches: %w", err)
	}

	batcher := s.newBatcher(potentialBatchSize)
	for _, match := range matches {
		batcher.set(subcol.Doc(match.UserID), map[string]any{
			"userId":       match.UserID,
			"matchScore":   match.MatchScore,
			"calculatedAt": match.CalculatedAt,
		})
		if err := batcher.flushFull(ctx); err != nil {
			return fmt.Errorf("store potential matches: %w", err)
		}
	}

	batcher.update(userRef, []firestore.Update{
		{Path: "potentialMatchesCount", Value: len(matches)},
		{Path: "potentialMatchesLastUpdated", Value: firestore.ServerTimestamp},
	})

	return batcher.flush(ctx)
}

func (s *Store) UpdatePriorityFlags(ctx context.Context, unmatchedIDs, matchedIDs []string) error {
	batcher := s.newBatcher(resetBatchSize)

	for _, id := range unmatchedIDs {
		batcher.update(s.client.Collection(usersCollection).Doc(id), []firestore.Update{
			{Path: "prioritizeNextMatch", Value: true},
		})
		if err := batcher.flushFull(ctx); err != nil {
			return fmt.Errorf("set priority flags: %w", err)
		}
	}

	for _, id := range matchedIDs {
		batcher.update(s.client.Collection(usersCollection).Doc(id), []firestore.Update{
			{Path: "prioritizeNextMatch", Value: firestore.Delete},
		})
		if err := batcher.flushFull(ctx); err != nil {
			return fmt.Errorf("clear priority flags: %w", err)
		}
	}

	return batcher.flush(ctx)
}

// Questions implements store.QuestionLookup against the prompts collection.
func (s *Store) Questions(ctx context.Context, promptIDs []string) (map[string]string, error) {
	questions := make(map[string]string, len(promptIDs))

	for _, id := range promptIDs {
		snap, err := s.client.Collection(promptsCollection).Doc(id).Get(ctx)
		if err != nil {
			s.logger.Warn("prompt lookup failed",
				zap.String("prompt_id", id),
				zap.Error(err),
			)
			continue
		}

		if text, err := snap.DataAt("text"); err == nil {
			if str, ok := text.(string); ok && str != "" {
				questions[id] = str
			}
		}
	}

	return questions, nil
}

func (s *Store) deleteSubcollection(ctx context.Context, col *firestore.CollectionRef, batchSize int) (int, error) {
	refs := col.DocumentRefs(ctx)

	deleted := 0
	batcher := s.newBatcher(batchSize)
	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, err
		}

		batcher.delete(ref)
		deleted++
		if err := batcher.flushFull(ctx); err != nil {
			return deleted, err
		}
	}

	return deleted, batcher.flush(ctx)
}

// batcher accumulates writes and commits them sequentially whenever the
// bounded batch size is reached. Commits are never parallelized: a failure
// surfaces before any later batch is attempted.
type batcher struct {
	client *firestore.Client
	batch  *firestore.WriteBatch
	size   int
	limit  int
}

func (s *Store) newBatcher(limit int) *batcher {
	return &batcher{client: s.client, batch: s.client.Batch(), limit: limit}
}

func (b *batcher) set(ref *firestore.DocumentRef, data any, opts ...firestore.SetOption) {
	b.batch.Set(ref, data, opts...)
	b.size++
}

func (b *batcher) update(ref *firestore.DocumentRef, updates []firestore.Update) {
	b.batch.Update(ref, updates)
	b.size++
}

func (b *batcher) delete(ref *firestore.DocumentRef) {
	b.batch.Delete(ref)
	b.size++
}

// flushFull commits only when the batch has reached its limit.
func (b *batcher) flushFull(ctx context.Context) error {
	if b.size < b.limit {
		return nil
	}
	return b.flush(ctx)
}

func (b *batcher) flush(ctx context.Context) error {
	if b.size == 0 {
		return nil
	}
	if _, err := b.batch.Commit(ctx); err != nil {
		return err
	}
	b.batch = b.client.Batch()
	b.size = 0
	return nil
}

func (d *userDoc) toProfile(id string) *profile.Profile {
	p := &profile.Profile{
		ID:                  id,
		Name:                d.Name,
		Gender:              d.Gender,
		Sexuality:           d.Sexuality,
		Pronouns:            d.Pronouns,
		InterestedIn:        d.InterestedIn,
		City:                d.City,
		Work:                d.Work,
		JobTitle:            d.JobTitle,
		EducationLevel:      d.EducationLevel,
		DatingIntention:     d.DatingIntention,
		LanguagesSpoken:     d.LanguagesSpoken,
		IsPremium:           d.IsPremium,
		PrioritizeNextMatch: d.PrioritizeNextMatch,
		IsOnline:            d.IsOnline,
		Verified:            d.VerificationStatus == "verified",
		MarkedForDeletion:   d.MarkedForDeletion,
		FCMToken:            d.FCMToken,
	}

	if d.Age != nil {
		p.Age = *d.Age
		p.HasAge = true
	}
	if d.MinAge != nil && d.MaxAge != nil {
		p.MinAge = *d.MinAge
		p.MaxAge = *d.MaxAge
		p.HasAgeRange = true
	}

	return p
}

var _ store.Store = (*Store)(nil)
var _ store.QuestionLookup = (*Store)(nil)
