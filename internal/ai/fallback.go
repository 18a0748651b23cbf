package ai

import "github.com/nyashahama/crushbot-backend/internal/scoring"

// Canned explanations, one per category. They are returned verbatim whenever
// the generator fails, so they must stay stable.
const (
	FallbackHigh = "🔥 Wow! The signals are strong! This person really seems interested in you. " +
		"Whether it's the quick replies, starting conversations or the special gestures, " +
		"it all points to a genuine connection. My advice? Be yourself and talk openly. " +
		"The odds are on your side! 💫"

	FallbackMixed = "🤔 You're in \"mixed signals\" territory. There are some positive signs, " +
		"but also some uncertainty. Maybe they're shy, or you're still getting to know each other. " +
		"Open communication is the key: ask directly when it feels like the right moment. " +
		"Don't rush, but don't stand still either! ✨"

	FallbackLow = "💭 Hmm, the signals look fairly weak right now. That doesn't mean it's a lost cause, " +
		"but you might not be on the same wavelength. Think about whether your emotional investment " +
		"is being returned. It's worth exploring other connections that give back the energy you put in. " +
		"You deserve someone who's just as excited about you! 💪"
)

// FallbackText returns the canned explanation for category. Anything that is
// not high or mixed gets the low text, mirroring Classify's catch-all.
func FallbackText(category scoring.Category) string {
	switch category {
	case scoring.CategoryHigh:
		return FallbackHigh
	case scoring.CategoryMixed:
		return FallbackMixed
	default:
		return FallbackLow
	}
}
