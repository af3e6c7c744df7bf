package compat

import (
	"strings"

	"github.com/tharun797/deep-matchmaker/internal/profile"
)

const minOverlapWordLen = 4

// Score computes the heuristic compatibility score in [0,1]. A gender-interest
// mismatch in either direction, or missing gender/interest data, is a deal
// breaker and returns 0 immediately. Otherwise the score is the average over
// the evaluable factors: both age-window checks (always counted), the prompt
// answer overlap (counted when the profiles share at least one answered
// prompt) and the sexuality table (counted when both sexualities are known).
func Score(a, b *profile.Profile) float64 {
	if len(a.InterestedIn) == 0 || b.Gender == "" {
		return 0
	}
	if len(b.InterestedIn) == 0 || a.Gender == "" {
		return 0
	}
	if !a.InterestedInGender(b.Gender) || !b.InterestedInGender(a.Gender) {
		return 0
	}

	var score float64
	var totalFactors int

	// Age factors count even when the data is too sparse to evaluate, so a
	// profile with no age window is penalized rather than skipped.
	if a.HasAgeRange && b.HasAge && a.AcceptsAge(b.Age) {
		score++
	}
	totalFactors++

	if b.HasAgeRange && a.HasAge && b.AcceptsAge(a.Age) {
		score++
	}
	totalFactors++

	if overlap, ok := promptOverlap(a.Prompts, b.Prompts); ok {
		score += overlap
		totalFactors++
	}

	if a.Sexuality != "" && b.Sexuality != "" {
		if CompatibleSexualities(a.Sexuality, b.Sexuality) {
			score++
		}
		totalFactors++
	}

	if totalFactors == 0 {
		return 0
	}
	return score / float64(totalFactors)
}

// promptOverlap averages, over every pair of answers sharing a promptId, the
// fraction of a's words (lowercase, longer than three runes) found verbatim
// inside b's lowercased answer. ok is false when the profiles share no
// answered prompt.
func promptOverlap(a, b []profile.PromptAnswer) (score float64, ok bool) {
	var sum float64
	var comparisons int

	for _, ap := range a {
		if ap.Answer == "" {
			continue
		}
		for _, bp := range b {
			if bp.PromptID != ap.PromptID || bp.Answer == "" {
				continue
			}

			words := overlapWords(ap.Answer)
			if len(words) == 0 {
				continue
			}

			other := strings.ToLower(bp.Answer)
			common := 0
			for _, word := range words {
				if strings.Contains(other, word) {
					common++
				}
			}

			sum += float64(common) / float64(len(words))
			comparisons++
		}
	}

	if comparisons == 0 {
		return 0, false
	}
	return sum / float64(comparisons), true
}

// overlapWords splits an answer into the lowercase words considered for
// overlap scoring.
func overlapWords(answer string) []string {
	parts := strings.Split(strings.ToLower(answer), " ")
	words := make([]string, 0, len(parts))
	for _, part := range parts {
		if len([]rune(part)) >= minOverlapWordLen {
			words = append(words, part)
		}
	}
	return words
}

// CompatibleSexualities implements the pairing table: straight with straight,
// gay/lesbian with gay/lesbian, and bisexual or pansexual with anyone.
func CompatibleSexualities(s1, s2 string) bool {
	if s1 == "Straight" && s2 == "Straight" {
		return true
	}
	if isGayOrLesbian(s1) && isGayOrLesbian(s2) {
		return true
	}
	if s1 == "Bisexual" || s2 == "Bisexual" {
		return true
	}
	if s1 == "Pansexual" || s2 == "Pansexual" {
		return true
	}
	return false
}

func isGayOrLesbian(s string) bool {
	return s == "Gay" || s == "Lesbian"
}
