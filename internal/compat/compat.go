// Package compat holds the pure compatibility predicates and the heuristic
// scorer. Nothing here touches the store or the AI provider, so every
// function is deterministic given its inputs.
package compat

import (
	"github.com/tharun797/deep-matchmaker/internal/profile"
)

// IsCompatible reports whether two profiles satisfy the mutual hard
// constraints: each side's gender must be in the other's interestedIn set,
// and each side's age must fall inside the other's preferred window when the
// window is fully defined. The relation is symmetric and never holds for a
// self-pair.
func IsCompatible(a, b *profile.Profile) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}

	if !a.InterestedInGender(b.Gender) || !b.InterestedInGender(a.Gender) {
		return false
	}

	if a.HasAgeRange && b.HasAge && !a.AcceptsAge(b.Age) {
		return false
	}
	if b.HasAgeRange && a.HasAge && !b.AcceptsAge(a.Age) {
		return false
	}

	return true
}

// FindCandidates returns every profile in pool compatible with p, preserving
// pool order.
func FindCandidates(p *profile.Profile, pool []*profile.Profile) []*profile.Profile {
	candidates := make([]*profile.Profile, 0, len(pool))
	for _, other := range pool {
		if IsCompatible(p, other) {
			candidates = append(candidates, other)
		}
	}
	return candidates
}

// MeetsBasicCriteria is the stricter bidirectional age + gender-interest
// check used by the potential-match pass. Unlike IsCompatible it requires
// full age data on both sides: a sparse profile never qualifies as a
// near-miss recommendation.
func MeetsBasicCriteria(a, b *profile.Profile) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}

	if !a.HasAge || !b.HasAgeRange || !b.AcceptsAge(a.Age) {
		return false
	}
	if !b.HasAge || !a.HasAgeRange || !a.AcceptsAge(b.Age) {
		return false
	}

	if !a.InterestedInGender(b.Gender) || !b.InterestedInGender(a.Gender) {
		return false
	}

	return true
}
