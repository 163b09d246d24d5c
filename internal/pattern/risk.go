package pattern

import (
	"math"
	"strings"

	"github.com/normanking/buddy/internal/emotion"
	"github.com/normanking/buddy/pkg/types"
)

// Level is the categorical bucket over the composite risk score.
type Level string

const (
	LevelInfo     Level = "info"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Upper returns the uppercase alias used by the alert ladder.
func (l Level) Upper() string { return strings.ToUpper(string(l)) }

// AtLeastHigh reports whether l is high or critical.
func (l Level) AtLeastHigh() bool { return l == LevelHigh || l == LevelCritical }

// Trend labels.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

const (
	consecutiveStep  = 0.10
	consecutiveCap   = 0.50
	abuseBoost       = 0.20
	crisisScoreFloor = 0.45
)

// riskWeights folds fine labels into the composite score. It mirrors the
// classifier tie-break table but is kept separate because the coarse
// fallbacks below have their own values.
var riskWeights = map[types.FineEmotion]float64{
	types.EmotionCrisis:  1.00,
	types.EmotionSadness: 0.65,
	types.EmotionFear:    0.60,
	types.EmotionAnxiety: 0.55,
	types.EmotionAnger:   0.45,
	types.EmotionNeutral: 0.10,
	types.EmotionJoy:     0.00,
}

var coarseRiskWeights = map[types.CoarseEmotion]float64{
	types.CoarseDistress: 0.75,
	types.CoarseNegative: 0.40,
}

// RecordWeight is the per-record contribution to the risk base.
func RecordWeight(rec emotion.Record) float64 {
	if rec.IsCrisis {
		return 1.0
	}
	return math.Max(riskWeights[rec.FineEmotion.Normalize()], coarseRiskWeights[rec.CoarseEmotion])
}

// LevelFor buckets a risk score.
func LevelFor(score float64) Level {
	switch {
	case score < 0.10:
		return LevelInfo
	case score < 0.20:
		return LevelLow
	case score < 0.45:
		return LevelMedium
	case score < 0.70:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// RiskScore combines the mean record weight, the consecutive distress run and
// any abuse indicators into a bounded score. While a crisis record is in the
// window the score never drops below the high band.
func (t *Tracker) RiskScore() (float64, Level) {
	if len(t.emotionWindow) == 0 {
		return 0, LevelInfo
	}
	base := 0.0
	for _, rec := range t.emotionWindow {
		base += RecordWeight(rec)
	}
	base /= float64(len(t.emotionWindow))

	score := base + math.Min(consecutiveCap, consecutiveStep*float64(t.consecutiveDistress))
	if t.abuseInWindow() {
		score += abuseBoost
	}
	score = math.Min(1.0, score)
	if t.crisisInWindow() {
		score = math.Max(score, crisisScoreFloor)
	}
	score = round4(score)
	return score, LevelFor(score)
}
