package profile

import (
	"errors"
	"fmt"
)

// PromptAnswer is one answered profile prompt. Question text lives in the
// prompts collection and is resolved separately; Answer is the user's
// free-text response.
type PromptAnswer struct {
	PromptID string
	Question string
	Answer   string
}

// Profile is a user's matching-relevant record, hydrated from the users
// document plus its answeredPrompts and history subcollections.
type Profile struct {
	ID        string
	Name      string
	Age       int
	HasAge    bool
	Gender    string
	Sexuality string
	Pronouns  []string

	InterestedIn []string
	MinAge       int
	MaxAge       int
	HasAgeRange  bool

	City            string
	Work            string
	JobTitle        string
	EducationLevel  string
	DatingIntention string
	LanguagesSpoken []string

	IsPremium           bool
	PrioritizeNextMatch bool
	IsOnline            bool
	Verified            bool
	MarkedForDeletion   bool

	FCMToken string

	Prompts []PromptAnswer
	History []string
}

// ErrIncompleteProfile marks a profile that cannot enter the matching pass.
var ErrIncompleteProfile = errors.New("profile is incomplete")

// Validate reports whether the profile carries everything the matching pass
// requires. The caller treats a failure as per-item recoverable: the profile
// is skipped and classified unmatched.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrIncompleteProfile)
	}
	if p.Gender == "" {
		return fmt.Errorf("%w: missing gender", ErrIncompleteProfile)
	}
	if len(p.InterestedIn) == 0 {
		return fmt.Errorf("%w: missing gender preferences", ErrIncompleteProfile)
	}
	if !p.HasAge || !p.HasAgeRange {
		return fmt.Errorf("%w: missing age or age preferences", ErrIncompleteProfile)
	}
	return nil
}

// InterestedInGender reports whether gender is one of the profile's preferred
// genders. An absent or empty preference list never matches.
func (p *Profile) InterestedInGender(gender string) bool {
	if gender == "" {
		return false
	}
	for _, g := range p.InterestedIn {
		if g == gender {
			return true
		}
	}
	return false
}

// AcceptsAge reports whether age falls inside the profile's preferred window.
// Profiles without a full age window accept any age; the filter treats the
// window as advisory when data is missing, matching the store's sparse fields.
func (p *Profile) AcceptsAge(age int) bool {
	if !p.HasAgeRange {
		return true
	}
	return age >= p.MinAge && age <= p.MaxAge
}

// HasMatchedBefore reports whether the candidate appears in the profile's
// match history.
func (p *Profile) HasMatchedBefore(candidateID string) bool {
	for _, id := range p.History {
		if id == candidateID {
			return true
		}
	}
	return false
}

// Tier is the scheduling bucket a profile lands in for one batch run.
type Tier int

// Tier order is fixed: priority premium profiles are always attempted first,
// free non-priority profiles last.
const (
	TierPriorityPremium Tier = iota
	TierPremium
	TierPriorityFree
	TierFree
)

func (t Tier) String() string {
	switch t {
	case TierPriorityPremium:
		return "priority_premium"
	case TierPremium:
		return "premium"
	case TierPriorityFree:
		return "priority_free"
	case TierFree:
		return "free"
	default:
		return "unknown"
	}
}

// TierOf buckets a profile by its priority flag and premium status.
func TierOf(p *Profile) Tier {
	switch {
	case p.PrioritizeNextMatch && p.IsPremium:
		return TierPriorityPremium
	case p.IsPremium:
		return TierPremium
	case p.PrioritizeNextMatch:
		return TierPriorityFree
	default:
		return TierFree
	}
}
