// Package companion generates the companion's chat messages, either from an
// OpenAI-compatible chat completion API or from a remote /generate-message
// endpoint.
package companion

import (
	"errors"
	"fmt"
	"strings"

	"token-companion/internal/emotion"
)

// Generation errors.
var (
	// ErrInsufficientCredits is returned when the upstream account is out of quota.
	// Callers fall back to canned lines.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("message generation not configured")

	// ErrUpstream covers every other generation failure.
	ErrUpstream = errors.New("message generation failed")
)

var moodHints = map[emotion.Emotion]string{
	emotion.Excited: "ecstatic and celebrating",
	emotion.Happy:   "cheerful and optimistic",
	emotion.Neutral: "calm and observant",
	emotion.Worried: "a little anxious",
	emotion.Sad:     "disappointed but supportive",
	emotion.Angry:   "furious about the dump",
}

// BuildPrompt returns the system and user prompts for req.
func BuildPrompt(req emotion.Request) (system, user string) {
	symbol := req.TokenSymbol
	if symbol == "" {
		symbol = "this token"
	}
	mood, ok := moodHints[req.Emotion]
	if !ok {
		mood = string(req.Emotion)
	}

	system = "You are a playful crypto companion who reacts to token price moves. " +
		"Reply with one short sentence, at most 20 words, no hashtags, no financial advice."
	user = fmt.Sprintf("You feel %s. %s is trading at $%s, %+.2f%% over 24h. React.",
		mood, symbol, formatPrice(req.Price), req.Change24h)
	return system, user
}

// formatPrice keeps significant digits for sub-cent prices.
func formatPrice(p float64) string {
	switch {
	case p == 0:
		return "0"
	case p < 0.01:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.10f", p), "0"), ".")
	default:
		return fmt.Sprintf("%.4f", p)
	}
}

// isCreditsError reports whether an error body describes quota exhaustion.
func isCreditsError(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "insufficient credits") ||
		strings.Contains(b, "insufficient_quota") ||
		strings.Contains(b, "more credits")
}
