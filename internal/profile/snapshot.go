package profile

import (
	"time"

	"github.com/normanking/buddy/internal/pattern"
)

// DateLayout is the snapshot date format (ISO-8601 calendar date).
const DateLayout = "2006-01-02"

// EmotionData is the compact per-session aggregate stored beside the summary.
type EmotionData struct {
	MessagesCount    int           `json:"messages_count" jsonschema:"required,minimum=0"`
	DistressMessages int           `json:"distress_messages" jsonschema:"required,minimum=0"`
	AbuseIndicators  int           `json:"abuse_indicators" jsonschema:"required,minimum=0"`
	RiskLevel        pattern.Level `json:"risk_level" jsonschema:"required,enum=info,enum=low,enum=medium,enum=high,enum=critical"`
	StabilityIndex   float64       `json:"stability_index" jsonschema:"required,minimum=0,maximum=1"`
}

// Snapshot records one closed session.
type Snapshot struct {
	Date           string          `json:"date" jsonschema:"required,pattern=^[0-9]{4}-[0-9]{2}-[0-9]{2}$"`
	Timestamp      time.Time       `json:"timestamp" jsonschema:"required"`
	EmotionData    EmotionData     `json:"emotion_data" jsonschema:"required"`
	SessionSummary pattern.Summary `json:"session_summary" jsonschema:"required"`
}

// NewSnapshot builds a snapshot of a session summary taken at now.
func NewSnapshot(s pattern.Summary, now time.Time) Snapshot {
	return Snapshot{
		Date:      now.Format(DateLayout),
		Timestamp: now,
		EmotionData: EmotionData{
			MessagesCount:    s.MessagesCount,
			DistressMessages: s.CumulativeDistressCount,
			AbuseIndicators:  s.AbuseIndicatorCount,
			RiskLevel:        s.RiskLevel,
			StabilityIndex:   s.StabilityIndex,
		},
		SessionSummary: s.Clone(),
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.SessionSummary = s.SessionSummary.Clone()
	return s
}
