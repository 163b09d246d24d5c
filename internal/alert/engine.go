// Package alert implements the distress alert engine: severity computation,
// the alert lifecycle (open, escalated, acknowledged), time-based escalation,
// guardian consent and a bounded append-only log.
package alert

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/clock"
	"github.com/normanking/buddy/internal/pattern"
	"github.com/normanking/buddy/internal/profile"
)

// ErrAlertNotFound is returned for an unknown alert id.
var ErrAlertNotFound = errors.New("alert not found")

// DefaultMaxLogEntries is how many alerts the log retains.
const DefaultMaxLogEntries = 100

// DefaultIntervals is the dwell before auto-promotion. CRITICAL is terminal.
func DefaultIntervals() map[Severity]time.Duration {
	return map[Severity]time.Duration{
		SeverityInfo:     60 * time.Minute,
		SeverityLow:      30 * time.Minute,
		SeverityMedium:   15 * time.Minute,
		SeverityHigh:     5 * time.Minute,
		SeverityCritical: 0,
	}
}

// Config configures an Engine.
type Config struct {
	Intervals            map[Severity]time.Duration
	// MaxLogEntries bounds the retained alerts. The log keeps every event of
	// a retained alert and drops an alert's events when the alert is evicted.
	MaxLogEntries        int
	EnableGuardianAlerts bool
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Intervals:            DefaultIntervals(),
		MaxLogEntries:        DefaultMaxLogEntries,
		EnableGuardianAlerts: true,
	}
}

// Kind is the alert type.
type Kind string

// KindDistress is the only alert kind.
const KindDistress Kind = "distress"

// Flags mark specialised handling on an alert.
type Flags struct {
	SpecializedSupport bool `json:"specialized_support"`
	TrustedSupport     bool `json:"trusted_support"`
	NotifyGuardians    bool `json:"notify_guardians"`
}

// Alert is a raised distress alert. Values handed out by the Engine are
// copies; mutate through Engine methods.
type Alert struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	State    State    `json:"state"`

	Message   string     `json:"message"`
	Resources []Resource `json:"resources"`

	CreatedAt      time.Time  `json:"created_at"`
	EscalatedAt    *time.Time `json:"escalated_at,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	Acknowledged    bool `json:"acknowledged"`
	GuardianConsent bool `json:"guardian_consent"`

	PatternSnapshot pattern.Summary   `json:"pattern_snapshot"`
	Flags           Flags             `json:"specialized_flags"`
	Contacts        []profile.Contact `json:"contacts"`
}

func (a *Alert) clone() Alert {
	out := *a
	out.Resources = append([]Resource(nil), a.Resources...)
	out.Contacts = append([]profile.Contact(nil), a.Contacts...)
	out.PatternSnapshot = a.PatternSnapshot.Clone()
	if a.EscalatedAt != nil {
		t := *a.EscalatedAt
		out.EscalatedAt = &t
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		out.AcknowledgedAt = &t
	}
	return out
}

// Event names a log entry.
type Event string

const (
	EventCreated      Event = "created"
	EventEscalated    Event = "escalated"
	EventAcknowledged Event = "acknowledged"
	EventConsent      Event = "guardian_consent"
)

// LogEntry is a value record of one alert event.
type LogEntry struct {
	Event           Event      `json:"event"`
	At              time.Time  `json:"at"`
	AlertID         string     `json:"alert_id"`
	UserID          string     `json:"user_id"`
	Kind            Kind       `json:"type"`
	Severity        Severity   `json:"severity"`
	State           State      `json:"state"`
	Flags           Flags      `json:"flags"`
	CreatedAt       time.Time  `json:"created_at"`
	EscalatedAt     *time.Time `json:"escalated_at,omitempty"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	GuardianConsent bool       `json:"guardian_consent"`
}

// Observer receives every log entry as it is appended.
type Observer interface {
	AlertEvent(LogEntry)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(LogEntry)

// AlertEvent implements Observer.
func (f ObserverFunc) AlertEvent(e LogEntry) { f(e) }

// Engine owns one user's alerts and alert log.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	observer Observer

	alerts []*Alert
	log    []LogEntry
}

// NewEngine creates an engine. Missing config values take defaults.
func NewEngine(cfg Config, clk clock.Clock, observer Observer) *Engine {
	if cfg.Intervals == nil {
		cfg.Intervals = DefaultIntervals()
	}
	if cfg.MaxLogEntries <= 0 {
		cfg.MaxLogEntries = DefaultMaxLogEntries
	}
	return &Engine{cfg: cfg, clock: clock.Or(clk), observer: observer}
}

// ShouldTrigger reports whether the summary warrants a new alert.
func (e *Engine) ShouldTrigger(s pattern.Summary) bool {
	return s.SustainedDistressDetected
}

// Trigger raises an alert for summary s on behalf of user p. A nil profile is
// treated as an anonymous user without contacts.
func (e *Engine) Trigger(s pattern.Summary, p *profile.Profile) Alert {
	if p == nil {
		p = &profile.Profile{}
	}
	now := e.clock.Now()
	sev := ComputeSeverity(s)

	a := &Alert{
		ID:              uuid.NewString(),
		UserID:          p.UserID,
		Kind:            KindDistress,
		Severity:        sev,
		State:           StateOpen,
		Message:         distressMessage(sev),
		Resources:       cloneResources(GeneralResources),
		CreatedAt:       now,
		PatternSnapshot: s.Clone(),
	}

	if p.IsFemale() && s.AbuseIndicatorsDetected {
		a.Flags.SpecializedSupport = true
		a.Resources = append(a.Resources, WomenResources...)
		if len(p.UnsafeContacts) > 0 {
			a.Flags.TrustedSupport = true
			a.Resources = append(a.Resources, TrustedResources...)
		}
	}

	if e.cfg.EnableGuardianAlerts && len(p.Guardians) > 0 && s.SustainedDistressDetected {
		a.Flags.NotifyGuardians = true
	}
	a.Contacts = append(append([]profile.Contact{}, p.Guardians...), p.TrustedContacts...)

	e.mu.Lock()
	e.alerts = append(e.alerts, a)
	if over := len(e.alerts) - e.cfg.MaxLogEntries; over > 0 {
		e.evict(e.alerts[:over])
		e.alerts = append([]*Alert(nil), e.alerts[over:]...)
	}
	entry := e.appendLog(EventCreated, a, now)
	out := a.clone()
	e.mu.Unlock()

	log.Info().
		Str("alert_id", a.ID).
		Str("user_id", a.UserID).
		Str("severity", sev.String()).
		Bool("notify_guardians", a.Flags.NotifyGuardians).
		Msg("distress alert raised")
	e.notify(entry)
	return out
}

// EscalatePending promotes every unacknowledged alert whose dwell at its
// current severity has reached the configured interval. An interval of zero
// is terminal. Each call moves an alert at most one rung, and dwell restarts
// at each promotion, so a repeated call at the same instant changes nothing.
func (e *Engine) EscalatePending() []Alert {
	now := e.clock.Now()

	e.mu.Lock()
	var changed []Alert
	var entries []LogEntry
	for _, a := range e.alerts {
		if a.Acknowledged || a.Severity >= SeverityCritical {
			continue
		}
		interval := e.cfg.Intervals[a.Severity]
		if interval <= 0 {
			continue
		}
		since := a.CreatedAt
		if a.EscalatedAt != nil {
			since = *a.EscalatedAt
		}
		if now.Sub(since) < interval {
			continue
		}
		a.Severity = a.Severity.Up()
		at := now
		a.EscalatedAt = &at
		a.State = StateEscalated
		entries = append(entries, e.appendLog(EventEscalated, a, now))
		changed = append(changed, a.clone())
	}
	e.mu.Unlock()

	for _, entry := range entries {
		log.Warn().
			Str("alert_id", entry.AlertID).
			Str("severity", entry.Severity.String()).
			Msg("alert escalated")
		e.notify(entry)
	}
	return changed
}

// Acknowledge marks an alert as acknowledged. Acknowledging twice is a no-op.
func (e *Engine) Acknowledge(id string) (Alert, error) {
	e.mu.Lock()
	a := e.find(id)
	if a == nil {
		e.mu.Unlock()
		return Alert{}, ErrAlertNotFound
	}
	if a.Acknowledged {
		out := a.clone()
		e.mu.Unlock()
		return out, nil
	}
	now := e.clock.Now()
	a.Acknowledged = true
	a.AcknowledgedAt = &now
	a.State = StateAcknowledged
	entry := e.appendLog(EventAcknowledged, a, now)
	out := a.clone()
	e.mu.Unlock()

	log.Info().Str("alert_id", id).Msg("alert acknowledged")
	e.notify(entry)
	return out, nil
}

// GrantConsent records guardian-notification consent. The state is unchanged.
func (e *Engine) GrantConsent(id string) (Alert, error) {
	e.mu.Lock()
	a := e.find(id)
	if a == nil {
		e.mu.Unlock()
		return Alert{}, ErrAlertNotFound
	}
	if a.GuardianConsent {
		out := a.clone()
		e.mu.Unlock()
		return out, nil
	}
	a.GuardianConsent = true
	entry := e.appendLog(EventConsent, a, e.clock.Now())
	out := a.clone()
	e.mu.Unlock()

	log.Info().Str("alert_id", id).Msg("guardian consent granted")
	e.notify(entry)
	return out, nil
}

// Get returns a copy of the alert with id.
func (e *Engine) Get(id string) (Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a := e.find(id); a != nil {
		return a.clone(), nil
	}
	return Alert{}, ErrAlertNotFound
}

// Alerts returns copies of all retained alerts, oldest first.
func (e *Engine) Alerts() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, 0, len(e.alerts))
	for _, a := range e.alerts {
		out = append(out, a.clone())
	}
	return out
}

// Pending returns copies of unacknowledged alerts.
func (e *Engine) Pending() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Alert
	for _, a := range e.alerts {
		if !a.Acknowledged {
			out = append(out, a.clone())
		}
	}
	return out
}

// Log returns a copy of the alert log, oldest first.
func (e *Engine) Log() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LogEntry(nil), e.log...)
}

func (e *Engine) find(id string) *Alert {
	for _, a := range e.alerts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// appendLog must be called with e.mu held.
func (e *Engine) appendLog(ev Event, a *Alert, at time.Time) LogEntry {
	snap := a.clone()
	entry := LogEntry{
		Event:           ev,
		At:              at,
		AlertID:         snap.ID,
		UserID:          snap.UserID,
		Kind:            snap.Kind,
		Severity:        snap.Severity,
		State:           snap.State,
		Flags:           snap.Flags,
		CreatedAt:       snap.CreatedAt,
		EscalatedAt:     snap.EscalatedAt,
		AcknowledgedAt:  snap.AcknowledgedAt,
		GuardianConsent: snap.GuardianConsent,
	}
	e.log = append(e.log, entry)
	return entry
}

// evict drops the log entries of the given alerts. Must be called with e.mu held.
func (e *Engine) evict(gone []*Alert) {
	ids := make(map[string]bool, len(gone))
	for _, a := range gone {
		ids[a.ID] = true
	}
	kept := make([]LogEntry, 0, len(e.log))
	for _, entry := range e.log {
		if !ids[entry.AlertID] {
			kept = append(kept, entry)
		}
	}
	e.log = kept
}

func (e *Engine) notify(entry LogEntry) {
	if e.observer != nil {
		e.observer.AlertEvent(entry)
	}
}

func distressMessage(sev Severity) string {
	switch sev {
	case SeverityCritical:
		return "We are very concerned about how you are feeling. Please contact a helpline or emergency services right now. You do not have to go through this alone."
	case SeverityHigh:
		return "You have been going through a lot. Please reach out to someone you trust or a helpline today."
	case SeverityMedium:
		return "It sounds like things have been heavy for a while. Talking to someone can really help."
	default:
		return "We noticed a run of difficult feelings. Support is available whenever you want it."
	}
}
