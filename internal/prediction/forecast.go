// Package prediction forecasts near-future sentiment and risk from a scalar
// history using ordinary least squares on x = 0..n-1.
//
// Fewer than three points is not an error: every forecast function reports
// ok=false and callers treat the result as absent.
package prediction

import "math"

// MinPoints is the smallest series a regression is defined on.
const MinPoints = 3

// Confidence grades a forecast by the amount of history behind it.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func confidenceFor(n int) Confidence {
	switch {
	case n >= 10:
		return ConfidenceHigh
	case n >= 5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Band interprets a predicted polarity.
type Band string

const (
	BandPositive       Band = "positive"
	BandMildlyPositive Band = "mildly_positive"
	BandNeutralLow     Band = "neutral_slightly_low"
	BandLowMood        Band = "low_mood"
)

func bandFor(p float64) Band {
	switch {
	case p > 0.3:
		return BandPositive
	case p > 0.0:
		return BandMildlyPositive
	case p > -0.3:
		return BandNeutralLow
	default:
		return BandLowMood
	}
}

var bandMessages = map[Band]string{
	BandPositive:       "Your mood looks set to stay positive. Keep doing what is working for you.",
	BandMildlyPositive: "Your mood is heading in a mildly positive direction.",
	BandNeutralLow:     "Your mood may be neutral or slightly low next time. A short walk or a chat with a friend can help.",
	BandLowMood:        "Your mood may dip lower soon. Please consider reaching out to someone you trust or a helpline.",
}

// Forecast is a one-step-ahead prediction.
type Forecast struct {
	Predicted  float64    `json:"predicted"`
	Slope      float64    `json:"slope"`
	Intercept  float64    `json:"intercept"`
	Confidence Confidence `json:"confidence"`
	Band       Band       `json:"band"`
	Message    string     `json:"message"`
	N          int        `json:"n"`
}

// fit returns the least-squares line through (i, series[i]).
func fit(series []float64) (slope, intercept float64) {
	n := float64(len(series))
	xMean := (n - 1) / 2
	yMean := 0.0
	for _, y := range series {
		yMean += y
	}
	yMean /= n

	var sxy, sxx float64
	for i, y := range series {
		dx := float64(i) - xMean
		sxy += dx * (y - yMean)
		sxx += dx * dx
	}
	// sxx > 0 for n >= 2 since x is 0..n-1
	slope = sxy / sxx
	intercept = yMean - slope*xMean
	return slope, intercept
}

// PredictNext forecasts the value at x = n, clamped to [-1, 1].
func PredictNext(series []float64) (Forecast, bool) {
	if len(series) < MinPoints {
		return Forecast{}, false
	}
	slope, intercept := fit(series)
	predicted := clamp(intercept+slope*float64(len(series)), -1, 1)
	band := bandFor(predicted)
	return Forecast{
		Predicted:  predicted,
		Slope:      slope,
		Intercept:  intercept,
		Confidence: confidenceFor(len(series)),
		Band:       band,
		Message:    bandMessages[band],
		N:          len(series),
	}, true
}

// ForecastSeries predicts k steps ahead, feeding each clamped prediction back
// into a working copy before refitting.
func ForecastSeries(series []float64, k int) []float64 {
	if len(series) < MinPoints || k <= 0 {
		return nil
	}
	work := append([]float64(nil), series...)
	out := make([]float64, 0, k)
	for i := 0; i < k; i++ {
		f, _ := PredictNext(work)
		out = append(out, f.Predicted)
		work = append(work, f.Predicted)
	}
	return out
}

// Pre-distress band: forecasts in [lower, upper) with a falling slope.
const (
	preDistressUpper = -0.10
	preDistressLower = -0.50
)

// PreDistressWarning returns a warning when the forecast is declining into the
// mildly negative band. Forecasts below that band are left to the alert engine.
func PreDistressWarning(polarities []float64) (string, bool) {
	f, ok := PredictNext(polarities)
	if !ok {
		return "", false
	}
	if f.Slope >= 0 || f.Predicted >= preDistressUpper || f.Predicted < preDistressLower {
		return "", false
	}
	return "Early check-in: your recent messages suggest your mood is gradually dipping. " +
		"It might help to pause, breathe, and talk to someone you trust.", true
}

// RiskForecast predicts the next composite risk score.
type RiskForecast struct {
	Predicted      float64    `json:"predicted"`
	Slope          float64    `json:"slope"`
	Confidence     Confidence `json:"confidence"`
	WillEscalate   bool       `json:"will_escalate"`
	Recommendation string     `json:"recommendation"`
	N              int        `json:"n"`
}

const (
	escalationSlope     = 0.02
	escalationPredicted = 0.45
)

// PredictRiskEscalation fits the risk series and flags a rising trend that is
// forecast to cross into the high band.
func PredictRiskEscalation(risks []float64) (RiskForecast, bool) {
	if len(risks) < MinPoints {
		return RiskForecast{}, false
	}
	slope, intercept := fit(risks)
	predicted := clamp(intercept+slope*float64(len(risks)), 0, 1)
	rf := RiskForecast{
		Predicted:    predicted,
		Slope:        slope,
		Confidence:   confidenceFor(len(risks)),
		WillEscalate: slope > escalationSlope && predicted > escalationPredicted,
		N:            len(risks),
	}
	switch {
	case rf.WillEscalate:
		rf.Recommendation = "Risk is rising. Consider checking in with a trusted person or a helpline now."
	case slope > 0:
		rf.Recommendation = "Risk is edging up slightly. Keep an eye on how you feel."
	default:
		rf.Recommendation = "Risk is steady or easing."
	}
	return rf, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
