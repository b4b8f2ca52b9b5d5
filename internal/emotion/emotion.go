// Package emotion maps price movement to a companion emotion and schedules
// the companion's chat messages.
package emotion

// Emotion is the companion's mood. It is always derived, never stored.
type Emotion string

// Emotions from most to least positive.
const (
	Excited Emotion = "excited"
	Happy   Emotion = "happy"
	Neutral Emotion = "neutral"
	Worried Emotion = "worried"
	Sad     Emotion = "sad"
	Angry   Emotion = "angry"
)

// All lists every emotion.
var All = []Emotion{Excited, Happy, Neutral, Worried, Sad, Angry}

// Valid reports whether e is one of the known emotions.
func (e Emotion) Valid() bool {
	for _, v := range All {
		if e == v {
			return true
		}
	}
	return false
}

// Classify maps a 24h percent change to an emotion. Every input, NaN
// included, maps to exactly one emotion. Exactly +5% counts as happy.
func Classify(change24h float64) Emotion {
	switch {
	case change24h > 20:
		return Excited
	case change24h >= 5:
		return Happy
	case change24h > -5:
		return Neutral
	case change24h > -15:
		return Worried
	case change24h > -30:
		return Sad
	default:
		return Angry
	}
}

// ClassifyDelta maps a short-window price delta ratio to an emotion.
// The second result is false when the move is too small to override.
func ClassifyDelta(ratio float64) (Emotion, bool) {
	switch {
	case ratio >= 0.01:
		return Excited, true
	case ratio >= 0.003:
		return Happy, true
	case ratio <= -0.01:
		return Angry, true
	case ratio <= -0.003:
		return Sad, true
	default:
		return "", false
	}
}

// Resolve prefers the short-window classification when it fires.
func Resolve(change24h, ratio float64) Emotion {
	if e, ok := ClassifyDelta(ratio); ok {
		return e
	}
	return Classify(change24h)
}
