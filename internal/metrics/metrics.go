// Package metrics exposes Prometheus instruments for the companion and feeds
// them from bus events.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/normanking/buddy/internal/bus"
)

var (
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_messages_total",
			Help: "Classified messages by fine emotion and script",
		},
		[]string{"emotion", "script"},
	)

	CrisisMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_crisis_messages_total",
			Help: "Messages classified as crisis",
		},
	)

	PreDistressWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_pre_distress_warnings_total",
			Help: "Pre-distress warnings emitted",
		},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buddy_pipeline_duration_seconds",
			Help:    "Per-message pipeline latency in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	AlertEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_alert_events_total",
			Help: "Alert lifecycle events by event and severity",
		},
		[]string{"event", "severity"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddy_active_sessions",
			Help: "Number of open sessions",
		},
	)

	SessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_sessions_closed_total",
			Help: "Closed sessions by whether a snapshot was persisted",
		},
		[]string{"persisted"},
	)

	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_persistence_failures_total",
			Help: "Profile store writes that failed",
		},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "buddy_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	EscalationTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_escalation_ticks_total",
			Help: "Scheduled escalate_pending sweeps",
		},
	)
)

// Attach subscribes the instruments to every event on b.
func Attach(b *bus.Bus) bus.SubscriptionID {
	return b.Subscribe(bus.EventType(""), Record)
}

// Record updates the instruments for one event.
func Record(e bus.Event) {
	switch e.Type {
	case bus.EventMessageClassified:
		MessagesTotal.WithLabelValues(e.Emotion, e.Script).Inc()
		if e.Crisis {
			CrisisMessages.Inc()
		}
		if e.DurationMs > 0 {
			PipelineDuration.Observe((time.Duration(e.DurationMs) * time.Millisecond).Seconds())
		}
	case bus.EventPreDistress:
		PreDistressWarnings.Inc()
	case bus.EventSessionOpened:
		ActiveSessions.Inc()
	case bus.EventSessionClosed:
		ActiveSessions.Dec()
		SessionsClosed.WithLabelValues(strconv.FormatBool(e.Error == "")).Inc()
	case bus.EventPersistenceFailed:
		PersistenceFailures.Inc()
	default:
		if e.Type.IsAlert() {
			AlertEvents.WithLabelValues(string(e.Type), e.Severity).Inc()
		}
	}
}
