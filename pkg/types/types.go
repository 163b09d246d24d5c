// Package types defines the emotion taxonomy shared across the Buddy packages.
// These are the stable labels that flow between the classifier, the pattern
// tracker, the alert engine and the persisted session snapshots.
package types

import "strings"

// ═══════════════════════════════════════════════════════════════════════════════
// FINE EMOTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// FineEmotion is one of the seven fine-grained emotion labels.
type FineEmotion string

const (
	EmotionJoy     FineEmotion = "joy"
	EmotionSadness FineEmotion = "sadness"
	EmotionAnger   FineEmotion = "anger"
	EmotionFear    FineEmotion = "fear"
	EmotionAnxiety FineEmotion = "anxiety"
	EmotionNeutral FineEmotion = "neutral"
	EmotionCrisis  FineEmotion = "crisis"
)

// FineEmotions lists every fine emotion in a stable order.
var FineEmotions = []FineEmotion{
	EmotionJoy,
	EmotionSadness,
	EmotionAnger,
	EmotionFear,
	EmotionAnxiety,
	EmotionNeutral,
	EmotionCrisis,
}

// KeywordEmotions are the fine emotions that have their own keyword lexicon.
var KeywordEmotions = []FineEmotion{
	EmotionJoy,
	EmotionSadness,
	EmotionAnger,
	EmotionFear,
	EmotionAnxiety,
}

// SeverityOrder is the fixed order used to resolve script keyword ties.
var SeverityOrder = []FineEmotion{
	EmotionCrisis,
	EmotionSadness,
	EmotionFear,
	EmotionAnxiety,
	EmotionAnger,
	EmotionJoy,
}

// Valid reports whether e is a known fine emotion.
func (e FineEmotion) Valid() bool {
	for _, known := range FineEmotions {
		if e == known {
			return true
		}
	}
	return false
}

// Normalize maps unknown labels to neutral.
func (e FineEmotion) Normalize() FineEmotion {
	if e.Valid() {
		return e
	}
	return EmotionNeutral
}

// ParseFineEmotion parses a label case-insensitively; unknown labels become neutral.
func ParseFineEmotion(s string) FineEmotion {
	return FineEmotion(strings.ToLower(strings.TrimSpace(s))).Normalize()
}

// ═══════════════════════════════════════════════════════════════════════════════
// COARSE EMOTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// CoarseEmotion is the four-way coarse label.
type CoarseEmotion string

const (
	CoarsePositive CoarseEmotion = "positive"
	CoarseNeutral  CoarseEmotion = "neutral"
	CoarseNegative CoarseEmotion = "negative"
	CoarseDistress CoarseEmotion = "distress"
)

// CoarseSeverity accompanies the coarse label.
type CoarseSeverity string

const (
	SeverityLow    CoarseSeverity = "low"
	SeverityMedium CoarseSeverity = "medium"
	SeverityHigh   CoarseSeverity = "high"
)

// Rank orders coarse severities low < medium < high.
func (s CoarseSeverity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	default:
		return 0
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SCRIPTS
// ═══════════════════════════════════════════════════════════════════════════════

// Script identifies the writing system of an utterance.
type Script string

const (
	ScriptEnglish  Script = "english"
	ScriptTamil    Script = "tamil"
	ScriptTanglish Script = "tanglish"
)

// IsEnglish reports whether the script is plain English.
func (s Script) IsEnglish() bool {
	return s == ScriptEnglish || s == ""
}
