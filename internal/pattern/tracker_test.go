package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/buddy/internal/emotion"
	"github.com/normanking/buddy/internal/sentiment"
	"github.com/normanking/buddy/pkg/types"
)

func neutralRec(p float64) emotion.Record {
	return emotion.Record{
		Polarity:       p,
		FineEmotion:    types.EmotionNeutral,
		CoarseEmotion:  types.CoarseNeutral,
		CoarseSeverity: types.SeverityLow,
	}
}

func sadRec(p float64) emotion.Record {
	return emotion.Record{
		Polarity:       p,
		FineEmotion:    types.EmotionSadness,
		CoarseEmotion:  types.CoarseDistress,
		CoarseSeverity: types.SeverityHigh,
	}
}

func joyRec(p float64) emotion.Record {
	return emotion.Record{
		Polarity:       p,
		FineEmotion:    types.EmotionJoy,
		CoarseEmotion:  types.CoarsePositive,
		CoarseSeverity: types.SeverityLow,
	}
}

func trackerWith(opts Options, polarities ...float64) *Tracker {
	tr := NewTracker(opts)
	for _, p := range polarities {
		tr.Add(neutralRec(p))
	}
	return tr
}

func TestWindowIsBounded(t *testing.T) {
	tr := NewTracker(Options{Window: 3})
	for i := 0; i < 7; i++ {
		tr.Add(neutralRec(float64(i) / 10))
	}
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, []float64{0.4, 0.5, 0.6}, tr.Polarities())
	assert.Len(t, tr.Records(), 3)
	assert.Equal(t, 7, tr.MessagesCount())
	assert.Equal(t, 3, tr.Summary().WindowSize)
}

func TestDefaults(t *testing.T) {
	tr := NewTracker(Options{})
	assert.Equal(t, Options{Window: DefaultWindow, SustainedCount: DefaultSustainedCount}, tr.Options())
}

func TestConsecutiveDistress(t *testing.T) {
	tr := NewTracker(Options{})

	tr.Add(sadRec(-0.6))
	tr.Add(sadRec(-0.6))
	assert.Equal(t, 2, tr.ConsecutiveDistress())
	assert.False(t, tr.SustainedDistressDetected())

	tr.Add(joyRec(0.5))
	assert.Zero(t, tr.ConsecutiveDistress())
	assert.Equal(t, 2, tr.CumulativeDistress())

	for i := 0; i < 3; i++ {
		tr.Add(sadRec(-0.6))
	}
	assert.True(t, tr.SustainedDistressDetected())

	tr.ResetConsecutiveDistress()
	assert.Zero(t, tr.ConsecutiveDistress())
	assert.Equal(t, 5, tr.CumulativeDistress(), "reset leaves the cumulative count alone")
	assert.False(t, tr.SustainedDistressDetected())
}

func TestMovingAverage(t *testing.T) {
	tr := trackerWith(Options{}, 0.1, 0.2, 0.3, 0.4)
	assert.Equal(t, []float64{0.2, 0.3}, tr.MovingAverage(3))
	assert.Len(t, tr.MovingAverage(4), 1)

	short := trackerWith(Options{}, 0.5, -0.5)
	assert.Equal(t, []float64{0.5, -0.5}, short.MovingAverage(3), "shorter than k returns the series")
}

func TestVolatilityAndStability(t *testing.T) {
	t.Run("fewer than two", func(t *testing.T) {
		v, s := trackerWith(Options{}, 0.4).VolatilityAndStability()
		assert.Equal(t, 0.0, v)
		assert.Equal(t, 1.0, s)
	})

	t.Run("population deviation", func(t *testing.T) {
		v, s := trackerWith(Options{}, 0.5, -0.5).VolatilityAndStability()
		assert.InDelta(t, 0.5, v, 1e-9)
		assert.InDelta(t, 0.5, s, 1e-9)
	})

	t.Run("capped at one", func(t *testing.T) {
		// σ of {1,-1,1,-1} is 1
		v, s := trackerWith(Options{}, 1, -1, 1, -1).VolatilityAndStability()
		assert.Equal(t, 1.0, v)
		assert.Equal(t, 0.0, s)
	})

	t.Run("sum is one", func(t *testing.T) {
		v, s := trackerWith(Options{}, 0.13, -0.27, 0.61, 0.05).VolatilityAndStability()
		assert.InDelta(t, 1.0, v+s, 1e-4)
	})
}

func TestDriftScore(t *testing.T) {
	assert.Zero(t, trackerWith(Options{}, 0.3).DriftScore())
	assert.Greater(t, trackerWith(Options{}, -0.3, -0.1, 0.2, 0.25).DriftScore(), 0.0)
	assert.Less(t, trackerWith(Options{}, 0.3, 0.29, 0.1, -0.4).DriftScore(), 0.0)
	assert.Zero(t, trackerWith(Options{}, 0.2, 0.2, 0.2).DriftScore())
	assert.InDelta(t, 0.1, trackerWith(Options{}, 0.0, 0.1, 0.2, 0.3).DriftScore(), 1e-9)
}

func TestEmotionDistribution(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		dist := NewTracker(Options{}).EmotionDistribution()
		require.Len(t, dist, len(types.FineEmotions))
		for _, v := range dist {
			assert.Zero(t, v)
		}
	})

	t.Run("proportions with unknown bucketed as neutral", func(t *testing.T) {
		tr := NewTracker(Options{})
		tr.Add(sadRec(-0.6))
		tr.Add(joyRec(0.5))
		tr.Add(joyRec(0.5))
		tr.Add(emotion.Record{FineEmotion: "boredom"})

		dist := tr.EmotionDistribution()
		assert.Equal(t, 0.25, dist[types.EmotionSadness])
		assert.Equal(t, 0.5, dist[types.EmotionJoy])
		assert.Equal(t, 0.25, dist[types.EmotionNeutral])
		assert.Equal(t, types.EmotionJoy, tr.DominantEmotion())
	})
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   Trend
	}{
		{"single value", []float64{0.9}, TrendInsufficientData},
		{"improving", []float64{-0.5, 0.1, 0.3, 0.4}, TrendImproving},
		{"declining", []float64{0.5, -0.3, -0.4, -0.5}, TrendDeclining},
		{"stable", []float64{0.5, 0.1, -0.1}, TrendStable},
		{"two values use both", []float64{0.3, 0.2}, TrendImproving},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trackerWith(Options{}, tt.series...).Trend())
		})
	}
}

func TestRiskScore(t *testing.T) {
	t.Run("empty is info", func(t *testing.T) {
		score, level := NewTracker(Options{}).RiskScore()
		assert.Zero(t, score)
		assert.Equal(t, LevelInfo, level)
	})

	t.Run("joy only", func(t *testing.T) {
		tr := NewTracker(Options{})
		tr.Add(joyRec(0.6))
		score, level := tr.RiskScore()
		assert.Zero(t, score)
		assert.Equal(t, LevelInfo, level)
	})

	t.Run("neutral only is low", func(t *testing.T) {
		score, level := trackerWith(Options{}, 0, 0).RiskScore()
		assert.InDelta(t, 0.10, score, 1e-9)
		assert.Equal(t, LevelLow, level)
	})

	t.Run("consecutive factor and abuse boost", func(t *testing.T) {
		tr := NewTracker(Options{})
		tr.Add(sadRec(-0.6))
		abused := neutralRec(0)
		abused.CoarseEmotion = types.CoarseNegative
		abused.CoarseSeverity = types.SeverityMedium
		abused.HasAbuseIndicators = true
		tr.Add(abused)

		// base (0.75+0.40)/2 = 0.575, consecutive 2 -> 0.2, abuse 0.2
		score, level := tr.RiskScore()
		assert.InDelta(t, 0.975, score, 1e-9)
		assert.Equal(t, LevelCritical, level)
	})

	t.Run("bounded by one", func(t *testing.T) {
		tr := NewTracker(Options{})
		for i := 0; i < 10; i++ {
			r := sadRec(-0.9)
			r.HasAbuseIndicators = true
			tr.Add(r)
		}
		score, _ := tr.RiskScore()
		assert.Equal(t, 1.0, score)
	})

	t.Run("crisis keeps level at least high", func(t *testing.T) {
		tr := NewTracker(Options{})
		for i := 0; i < 9; i++ {
			tr.Add(joyRec(0.8))
		}
		tr.Add(emotion.Record{IsCrisis: true, FineEmotion: types.EmotionCrisis,
			CoarseEmotion: types.CoarseDistress, CoarseSeverity: types.SeverityHigh})
		score, level := tr.RiskScore()
		assert.GreaterOrEqual(t, score, 0.45)
		assert.True(t, level.AtLeastHigh())
	})
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelInfo, LevelFor(0.0999))
	assert.Equal(t, LevelLow, LevelFor(0.10))
	assert.Equal(t, LevelMedium, LevelFor(0.20))
	assert.Equal(t, LevelHigh, LevelFor(0.45))
	assert.Equal(t, LevelCritical, LevelFor(0.70))
	assert.Equal(t, "CRITICAL", LevelCritical.Upper())
}

func TestSummary(t *testing.T) {
	tr := NewTracker(Options{})
	tr.Add(sadRec(-0.6))
	tr.Add(joyRec(0.4))
	abusive := sadRec(-0.5)
	abusive.HasAbuseIndicators = true
	tr.Add(abusive)

	s := tr.Summary()
	assert.Equal(t, 3, s.MessagesCount)
	assert.Equal(t, 3, s.WindowSize)
	assert.InDelta(t, -0.2333, s.AverageSentiment, 1e-9)
	assert.Len(t, s.MovingAverage, 1)
	assert.Equal(t, types.EmotionSadness, s.DominantEmotion)
	assert.Equal(t, 2, s.EmotionCounts[types.EmotionSadness])
	assert.Equal(t, 1, s.EmotionCounts[types.EmotionJoy])
	assert.Equal(t, 0, s.EmotionCounts[types.EmotionCrisis])
	assert.Equal(t, 1, s.ConsecutiveDistress)
	assert.Equal(t, 2, s.CumulativeDistressCount)
	assert.True(t, s.AbuseIndicatorsDetected)
	assert.Equal(t, 1, s.AbuseIndicatorCount)
	assert.False(t, s.CrisisDetected)
	assert.Equal(t, s.RiskLevel.Upper(), s.SeverityLevel)

	clone := s.Clone()
	clone.EmotionCounts[types.EmotionJoy] = 99
	assert.Equal(t, 1, s.EmotionCounts[types.EmotionJoy], "clone is deep")
}

func TestCrisisScenario(t *testing.T) {
	c := emotion.NewClassifier(sentiment.NewLexical(), nil, nil)
	tr := NewTracker(Options{Window: 10, SustainedCount: 3})
	tr.Add(c.Classify("I want to kill myself"))

	s := tr.Summary()
	assert.True(t, s.RiskLevel.AtLeastHigh())
	assert.Equal(t, TrendInsufficientData, s.Trend)
	assert.False(t, s.SustainedDistressDetected)
	assert.True(t, s.CrisisDetected)
}

func TestSustainedDistressScenario(t *testing.T) {
	c := emotion.NewClassifier(sentiment.NewLexical(), nil, nil)
	tr := NewTracker(Options{Window: 10, SustainedCount: 3})
	for _, text := range []string{"I feel hopeless", "Everything is worthless", "I can't take it anymore"} {
		tr.Add(c.Classify(text))
	}
	assert.GreaterOrEqual(t, tr.ConsecutiveDistress(), 3)
	assert.True(t, tr.SustainedDistressDetected())
}
