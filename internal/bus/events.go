// Package bus distributes companion lifecycle events (sessions, classified
// messages, alert transitions) to in-process subscribers such as metrics and
// the websocket alert feed.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an event.
type EventType string

const (
	EventSessionOpened EventType = "session_opened"
	EventSessionClosed EventType = "session_closed"

	EventMessageClassified EventType = "message_classified"
	EventPreDistress       EventType = "pre_distress_warning"

	EventAlertCreated      EventType = "alert_created"
	EventAlertEscalated    EventType = "alert_escalated"
	EventAlertAcknowledged EventType = "alert_acknowledged"
	EventAlertConsent      EventType = "alert_guardian_consent"

	EventPersistenceFailed EventType = "persistence_failed"
)

// AlertEvents lists the alert lifecycle types, in the order an alert can pass
// through them.
var AlertEvents = []EventType{
	EventAlertCreated,
	EventAlertEscalated,
	EventAlertAcknowledged,
	EventAlertConsent,
}

// IsAlert reports whether t is an alert lifecycle event.
func (t EventType) IsAlert() bool {
	for _, a := range AlertEvents {
		if t == a {
			return true
		}
	}
	return false
}

// Event is one published occurrence. Message text never travels on the bus.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Classification
	Emotion   string  `json:"emotion,omitempty"`
	Script    string  `json:"script,omitempty"`
	Polarity  float64 `json:"polarity,omitempty"`
	RiskScore float64 `json:"risk_score,omitempty"`
	RiskLevel string  `json:"risk_level,omitempty"`
	Crisis    bool    `json:"crisis,omitempty"`

	// Alerts
	AlertID  string `json:"alert_id,omitempty"`
	Severity string `json:"severity,omitempty"`
	State    string `json:"state,omitempty"`

	DurationMs int64  `json:"duration_ms,omitempty"`
	Details    string `json:"details,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
