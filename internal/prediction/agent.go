package prediction

import (
	"math"

	"github.com/rs/zerolog/log"
)

// Metrics are the online accuracy counters of an Agent.
type Metrics struct {
	Predictions int     `json:"n_predictions"`
	SumAbsErr   float64 `json:"sum_abs_err"`
	SumSqErr    float64 `json:"sum_sq_err"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
}

// Agent owns a session's sentiment series and scores its own one-step
// predictions as actual values arrive. Not safe for concurrent use.
type Agent struct {
	series  []float64
	pending *float64

	nPredictions int
	sumAbsErr    float64
	sumSqErr     float64
}

// NewAgent seeds the series with history, oldest first.
func NewAgent(history []float64) *Agent {
	return &Agent{series: append([]float64(nil), history...)}
}

// Observe scores the pending prediction against actual, if there is one, and
// appends actual to the series.
func (a *Agent) Observe(actual float64) {
	if a.pending != nil {
		err := actual - *a.pending
		a.nPredictions++
		a.sumAbsErr += math.Abs(err)
		a.sumSqErr += err * err
		a.pending = nil
		log.Debug().Float64("error", err).Int("n", a.nPredictions).Msg("scored prediction")
	}
	a.series = append(a.series, actual)
}

// Advance forecasts the next value from the current series and keeps it as
// the pending prediction for the next Observe.
func (a *Agent) Advance() (Forecast, bool) {
	f, ok := PredictNext(a.series)
	if !ok {
		a.pending = nil
		return Forecast{}, false
	}
	p := f.Predicted
	a.pending = &p
	return f, true
}

// Series returns a copy of the observed series.
func (a *Agent) Series() []float64 {
	return append([]float64(nil), a.series...)
}

// MAE is the mean absolute error, 0 before any prediction was scored.
func (a *Agent) MAE() float64 {
	if a.nPredictions == 0 {
		return 0
	}
	return a.sumAbsErr / float64(a.nPredictions)
}

// RMSE is the root mean squared error, never below MAE.
func (a *Agent) RMSE() float64 {
	if a.nPredictions == 0 {
		return 0
	}
	// floating-point rounding can put sqrt a few ulps under the mean
	return math.Max(math.Sqrt(a.sumSqErr/float64(a.nPredictions)), a.MAE())
}

// Metrics returns a snapshot of the accuracy counters.
func (a *Agent) Metrics() Metrics {
	return Metrics{
		Predictions: a.nPredictions,
		SumAbsErr:   a.sumAbsErr,
		SumSqErr:    a.sumSqErr,
		MAE:         a.MAE(),
		RMSE:        a.RMSE(),
	}
}
