// Package ai defines the contract for the generative text-completion
// collaborator and the parsing of its scoring responses.
package ai

import (
	"context"
	"regexp"
	"strconv"
)

// Completer produces a text completion for a single prompt. Implementations
// live in provider subpackages; the matching core only sees this interface.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// DefaultMatchScore is returned when a response carries no parseable score.
// A neutral middle value keeps a malformed response from either forcing or
// blocking a match.
const DefaultMatchScore = 0.5

var matchScoreRe = regexp.MustCompile(`Match Score:\s*([0-9.]+)`)

// ParseMatchScore extracts the floating-point score following the literal
// "Match Score:" label. ok is false when the label is missing or the token
// does not parse; callers should fall back to DefaultMatchScore and log.
func ParseMatchScore(response string) (float64, bool) {
	m := matchScoreRe.FindStringSubmatch(response)
	if m == nil {
		return DefaultMatchScore, false
	}

	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultMatchScore, false
	}

	return score, true
}
