package emotion

// DefaultLines are the canned messages used when generation fails.
var DefaultLines = map[Emotion][]string{
	Excited: {
		"We're flying! This chart is going vertical!",
		"To the moon! I can barely contain myself!",
		"Look at that green candle. Pure fireworks!",
	},
	Happy: {
		"Things are looking up. I like this trend.",
		"Nice steady gains today. Feeling good!",
		"Green is my favorite color.",
	},
	Neutral: {
		"Pretty calm out here. Just watching the chart.",
		"Sideways action. Patience is a virtue.",
		"Nothing dramatic yet. Let's see what happens.",
	},
	Worried: {
		"Hmm, that dip is making me a little nervous.",
		"I don't love where this is heading.",
		"Let's keep an eye on this one.",
	},
	Sad: {
		"Oof. This one hurts a bit.",
		"Red days happen. Hang in there.",
		"Not our best day on the chart.",
	},
	Angry: {
		"Who is dumping?! This is brutal!",
		"That crash is absolutely unacceptable.",
		"I need to lie down after that candle.",
	},
}

// Lines returns a copy of DefaultLines with overrides applied per emotion.
// Empty overrides are ignored.
func Lines(overrides map[Emotion][]string) map[Emotion][]string {
	out := make(map[Emotion][]string, len(DefaultLines))
	for e, l := range DefaultLines {
		out[e] = l
	}
	for e, l := range overrides {
		if e.Valid() && len(l) > 0 {
			out[e] = l
		}
	}
	return out
}
