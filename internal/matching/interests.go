package matching

import (
	"sort"
	"strings"

	"github.com/tharun797/deep-matchmaker/internal/profile"
)

// stopwords are frequent filler words that say nothing about shared
// interests even when both answers contain them.
var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "when": true, "what": true,
	"have": true, "like": true, "love": true, "would": true, "about": true,
	"there": true, "their": true, "they": true, "because": true,
	"could": true, "should": true, "really": true, "things": true,
	"thing": true, "something": true, "anything": true,
	"everything": true, "nothing": true, "myself": true,
	"yourself": true, "himself": true, "herself": true,
}

// findCommonInterests extracts the meaningful words (longer than three
// characters, not stopwords) that appear in both profiles' prompt answers.
// The result is sorted for stable output; candidate ranking does not depend
// on it.
func findCommonInterests(a, b *profile.Profile) []string {
	if len(a.Prompts) == 0 || len(b.Prompts) == 0 {
		return nil
	}

	shared := make(map[string]bool)

	for _, ap := range a.Prompts {
		if ap.Answer == "" {
			continue
		}
		words := strings.Split(strings.ToLower(ap.Answer), " ")

		for _, bp := range b.Prompts {
			if bp.Answer == "" {
				continue
			}
			other := strings.Split(strings.ToLower(bp.Answer), " ")
			otherSet := make(map[string]bool, len(other))
			for _, w := range other {
				otherSet[w] = true
			}

			for _, word := range words {
				if len([]rune(word)) <= 3 || stopwords[word] {
					continue
				}
				if otherSet[word] {
					shared[word] = true
				}
			}
		}
	}

	if len(shared) == 0 {
		return nil
	}

	interests := make([]string, 0, len(shared))
	for word := range shared {
		interests = append(interests, word)
	}
	sort.Strings(interests)

	return interests
}
