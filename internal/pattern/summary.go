package pattern

import "github.com/normanking/buddy/pkg/types"

// Summary bundles every reader of the tracker at one instant. It is a value
// copy: later tracker mutations do not affect it.
type Summary struct {
	MessagesCount    int       `json:"messages_count"`
	WindowSize       int       `json:"window_size"`
	AverageSentiment float64   `json:"average_sentiment"`
	MovingAverage    []float64 `json:"moving_average"`
	Volatility       float64   `json:"volatility"`
	StabilityIndex   float64   `json:"stability_index"`
	DriftScore       float64   `json:"drift_score"`
	Trend            Trend     `json:"trend"`

	EmotionDistribution map[types.FineEmotion]float64 `json:"emotion_distribution"`
	DominantEmotion     types.FineEmotion             `json:"dominant_emotion"`
	EmotionCounts       map[types.FineEmotion]int     `json:"emotion_counts"`

	RiskScore     float64 `json:"risk_score"`
	RiskLevel     Level   `json:"risk_level"`
	SeverityLevel string  `json:"severity_level"`

	ConsecutiveDistress       int  `json:"consecutive_distress"`
	CumulativeDistressCount   int  `json:"cumulative_distress_count"`
	SustainedDistressDetected bool `json:"sustained_distress_detected"`
	AbuseIndicatorsDetected   bool `json:"abuse_indicators_detected"`
	AbuseIndicatorCount       int  `json:"abuse_indicator_count"`
	CrisisDetected            bool `json:"crisis_detected"`
}

// Summary computes the current summary.
func (t *Tracker) Summary() Summary {
	vol, stab := t.VolatilityAndStability()
	score, level := t.RiskScore()

	counts := make(map[types.FineEmotion]int, len(types.FineEmotions))
	for _, e := range types.FineEmotions {
		counts[e] = t.emotionCounts[e]
	}

	return Summary{
		MessagesCount:             t.messagesCount,
		WindowSize:                len(t.emotionWindow),
		AverageSentiment:          t.AverageSentiment(),
		MovingAverage:             t.MovingAverage(summaryMovingAvgSpan),
		Volatility:                vol,
		StabilityIndex:            stab,
		DriftScore:                t.DriftScore(),
		Trend:                     t.Trend(),
		EmotionDistribution:       t.EmotionDistribution(),
		DominantEmotion:           t.DominantEmotion(),
		EmotionCounts:             counts,
		RiskScore:                 score,
		RiskLevel:                 level,
		SeverityLevel:             level.Upper(),
		ConsecutiveDistress:       t.consecutiveDistress,
		CumulativeDistressCount:   t.cumulativeDistress,
		SustainedDistressDetected: t.SustainedDistressDetected(),
		AbuseIndicatorsDetected:   t.abuseInWindow(),
		AbuseIndicatorCount:       t.abuseIndicatorCount,
		CrisisDetected:            t.crisisInWindow(),
	}
}

// Clone returns a deep copy of s. Nil collections come back empty so the
// copy always serializes as arrays and objects.
func (s Summary) Clone() Summary {
	out := s
	out.MovingAverage = append([]float64{}, s.MovingAverage...)
	out.EmotionDistribution = make(map[types.FineEmotion]float64, len(s.EmotionDistribution))
	for k, v := range s.EmotionDistribution {
		out.EmotionDistribution[k] = v
	}
	out.EmotionCounts = make(map[types.FineEmotion]int, len(s.EmotionCounts))
	for k, v := range s.EmotionCounts {
		out.EmotionCounts[k] = v
	}
	return out
}
