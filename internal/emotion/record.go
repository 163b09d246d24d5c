package emotion

import (
	"time"

	"github.com/normanking/buddy/pkg/types"
)

// Record is the immutable result of classifying one utterance.
type Record struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`

	CoarseEmotion  types.CoarseEmotion  `json:"coarse_emotion"`
	CoarseSeverity types.CoarseSeverity `json:"coarse_severity"`
	FineEmotion    types.FineEmotion    `json:"fine_emotion"`

	MatchedDistressKeywords []string `json:"matched_distress_keywords"`
	MatchedAbuseKeywords    []string `json:"matched_abuse_keywords"`
	MatchedCrisisKeywords   []string `json:"matched_crisis_keywords"`

	HasAbuseIndicators bool `json:"has_abuse_indicators"`
	IsCrisis           bool `json:"is_crisis"`

	EmotionScores map[types.FineEmotion]int     `json:"emotion_scores"`
	Confidence    map[types.FineEmotion]float64 `json:"confidence"`

	Explanation    string       `json:"explanation"`
	DetectedScript types.Script `json:"detected_script"`
	Timestamp      time.Time    `json:"timestamp"`
}

// DominantEmotion is an alias of FineEmotion kept for display adapters.
func (r Record) DominantEmotion() types.FineEmotion { return r.FineEmotion }

// PrimaryEmotion is an alias of FineEmotion kept for display adapters.
func (r Record) PrimaryEmotion() types.FineEmotion { return r.FineEmotion }

// DistressLike reports whether the record counts toward consecutive distress.
func (r Record) DistressLike() bool {
	if r.IsCrisis {
		return true
	}
	switch r.FineEmotion {
	case types.EmotionCrisis, types.EmotionSadness, types.EmotionFear, types.EmotionAnxiety:
		return true
	}
	if r.CoarseEmotion == types.CoarseDistress || r.CoarseEmotion == types.CoarseNegative {
		return r.CoarseSeverity == types.SeverityMedium || r.CoarseSeverity == types.SeverityHigh
	}
	return false
}
