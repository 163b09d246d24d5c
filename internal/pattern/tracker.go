// Package pattern tracks emotional state across a session with a bounded
// sliding window of classified records, and derives the statistics the alert
// engine and prediction agent consume: volatility, drift, distribution and a
// composite risk score.
package pattern

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/emotion"
	"github.com/normanking/buddy/pkg/types"
)

// Defaults for Options.
const (
	DefaultWindow         = 10
	DefaultSustainedCount = 3
	summaryMovingAvgSpan  = 3
	trendSpan             = 3
)

// Options configures a Tracker. Zero fields take defaults.
type Options struct {
	Window         int // W
	SustainedCount int // D
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.SustainedCount <= 0 {
		o.SustainedCount = DefaultSustainedCount
	}
	return o
}

// Tracker holds the per-session pattern state. It is not safe for concurrent
// use; a session owns exactly one tracker.
type Tracker struct {
	opts Options

	emotionWindow  []emotion.Record
	polarityWindow []float64

	consecutiveDistress int
	cumulativeDistress  int

	messagesCount       int
	abuseIndicatorCount int
	emotionCounts       map[types.FineEmotion]int
}

// NewTracker creates an empty tracker.
func NewTracker(opts Options) *Tracker {
	return &Tracker{
		opts:          opts.withDefaults(),
		emotionCounts: make(map[types.FineEmotion]int),
	}
}

// Options returns the effective options.
func (t *Tracker) Options() Options { return t.opts }

// Add appends rec to both windows, evicting the oldest entry past capacity.
func (t *Tracker) Add(rec emotion.Record) {
	t.emotionWindow = append(t.emotionWindow, rec)
	t.polarityWindow = append(t.polarityWindow, rec.Polarity)
	if over := len(t.emotionWindow) - t.opts.Window; over > 0 {
		t.emotionWindow = append([]emotion.Record(nil), t.emotionWindow[over:]...)
		t.polarityWindow = append([]float64(nil), t.polarityWindow[over:]...)
	}

	t.messagesCount++
	t.emotionCounts[rec.FineEmotion.Normalize()]++
	if rec.HasAbuseIndicators {
		t.abuseIndicatorCount++
	}

	if rec.DistressLike() {
		t.consecutiveDistress++
		t.cumulativeDistress++
	} else {
		t.consecutiveDistress = 0
	}

	log.Debug().
		Int("window", len(t.emotionWindow)).
		Int("consecutive_distress", t.consecutiveDistress).
		Str("fine", string(rec.FineEmotion)).
		Msg("pattern updated")
}

// ResetConsecutiveDistress clears the consecutive counter. The cumulative
// count is untouched.
func (t *Tracker) ResetConsecutiveDistress() {
	t.consecutiveDistress = 0
}

// Len returns the number of records in the window.
func (t *Tracker) Len() int { return len(t.emotionWindow) }

// Records returns a copy of the emotion window, oldest first.
func (t *Tracker) Records() []emotion.Record {
	return append([]emotion.Record(nil), t.emotionWindow...)
}

// Polarities returns a copy of the polarity window, oldest first.
func (t *Tracker) Polarities() []float64 {
	return append([]float64(nil), t.polarityWindow...)
}

// ConsecutiveDistress returns the current run of distress-like records.
func (t *Tracker) ConsecutiveDistress() int { return t.consecutiveDistress }

// CumulativeDistress returns the session total of distress-like records.
func (t *Tracker) CumulativeDistress() int { return t.cumulativeDistress }

// MessagesCount returns the number of records added this session.
func (t *Tracker) MessagesCount() int { return t.messagesCount }

// ═══════════════════════════════════════════════════════════════════════════════
// READERS
// ═══════════════════════════════════════════════════════════════════════════════

// MovingAverage returns the k-wide windowed means over the polarity window.
// With fewer than k values the series is returned unchanged.
func (t *Tracker) MovingAverage(k int) []float64 {
	return movingAverage(t.polarityWindow, k)
}

func movingAverage(series []float64, k int) []float64 {
	n := len(series)
	if k <= 0 || n < k {
		return append([]float64{}, series...)
	}
	out := make([]float64, 0, n-k+1)
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= k {
			sum -= series[i-k]
		}
		if i >= k-1 {
			out = append(out, round4(sum/float64(k)))
		}
	}
	return out
}

// VolatilityAndStability returns the population standard deviation of the
// polarity window capped at 1, and its complement. Fewer than two values
// yield (0, 1).
func (t *Tracker) VolatilityAndStability() (volatility, stability float64) {
	n := len(t.polarityWindow)
	if n < 2 {
		return 0, 1
	}
	mu := mean(t.polarityWindow)
	ss := 0.0
	for _, v := range t.polarityWindow {
		ss += (v - mu) * (v - mu)
	}
	volatility = math.Min(1, math.Sqrt(ss/float64(n)))
	return round4(volatility), round4(1 - volatility)
}

// DriftScore is the mean successive difference of the polarity window.
func (t *Tracker) DriftScore() float64 {
	n := len(t.polarityWindow)
	if n < 2 {
		return 0
	}
	return (t.polarityWindow[n-1] - t.polarityWindow[0]) / float64(n-1)
}

// EmotionDistribution returns the proportion of each fine emotion in the
// window. Every fine emotion is present; an empty window yields all zeros.
func (t *Tracker) EmotionDistribution() map[types.FineEmotion]float64 {
	dist := make(map[types.FineEmotion]float64, len(types.FineEmotions))
	for _, e := range types.FineEmotions {
		dist[e] = 0
	}
	n := len(t.emotionWindow)
	if n == 0 {
		return dist
	}
	for _, rec := range t.emotionWindow {
		dist[rec.FineEmotion.Normalize()]++
	}
	for e := range dist {
		dist[e] = round4(dist[e] / float64(n))
	}
	return dist
}

// DominantEmotion is the most frequent fine emotion in the window, neutral
// when the window is empty. Ties resolve in types.FineEmotions order.
func (t *Tracker) DominantEmotion() types.FineEmotion {
	counts := make(map[types.FineEmotion]int)
	for _, rec := range t.emotionWindow {
		counts[rec.FineEmotion.Normalize()]++
	}
	best, bestN := types.EmotionNeutral, 0
	for _, e := range types.FineEmotions {
		if counts[e] > bestN {
			best, bestN = e, counts[e]
		}
	}
	return best
}

// SustainedDistressDetected reports whether the consecutive run reached D.
func (t *Tracker) SustainedDistressDetected() bool {
	return t.consecutiveDistress >= t.opts.SustainedCount
}

// Trend classifies the mean of the last three polarities.
func (t *Tracker) Trend() Trend {
	n := len(t.polarityWindow)
	if n < 2 {
		return TrendInsufficientData
	}
	span := trendSpan
	if n < span {
		span = n
	}
	m := mean(t.polarityWindow[n-span:])
	switch {
	case m > 0.2:
		return TrendImproving
	case m < -0.2:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// AverageSentiment is the mean of the polarity window, 0 when empty.
func (t *Tracker) AverageSentiment() float64 {
	if len(t.polarityWindow) == 0 {
		return 0
	}
	return round4(mean(t.polarityWindow))
}

func (t *Tracker) abuseInWindow() bool {
	for _, rec := range t.emotionWindow {
		if rec.HasAbuseIndicators {
			return true
		}
	}
	return false
}

func (t *Tracker) crisisInWindow() bool {
	for _, rec := range t.emotionWindow {
		if rec.IsCrisis {
			return true
		}
	}
	return false
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
