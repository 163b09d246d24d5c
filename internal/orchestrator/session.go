package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/bus"
	"github.com/normanking/buddy/internal/emotion"
	"github.com/normanking/buddy/internal/pattern"
	"github.com/normanking/buddy/internal/prediction"
	"github.com/normanking/buddy/internal/profile"
)

// Reply is everything one message produced.
type Reply struct {
	Text               string                   `json:"text"`
	Record             emotion.Record           `json:"record"`
	Summary            pattern.Summary          `json:"summary"`
	Forecast           *prediction.Forecast     `json:"forecast,omitempty"`
	RiskForecast       *prediction.RiskForecast `json:"risk_forecast,omitempty"`
	PreDistressWarning string                   `json:"pre_distress_warning,omitempty"`
	Alert              *alert.Alert             `json:"alert,omitempty"`
	Escalated          []alert.Alert            `json:"escalated,omitempty"`
}

// CloseResult reports what closing a session recorded.
type CloseResult struct {
	SessionID string            `json:"session_id"`
	Snapshot  *profile.Snapshot `json:"snapshot,omitempty"`
	Persisted bool              `json:"persisted"`
	Notice    string            `json:"notice,omitempty"`

	MoodStreak int     `json:"mood_streak"`
	NewBadges  []Badge `json:"new_badges"`
}

// Session is one user's conversation. Its methods are serialized by an
// internal mutex so the pipeline stays strictly sequential per user.
type Session struct {
	mu sync.Mutex

	id        string
	userID    string
	companion *Companion
	startedAt time.Time

	profile *profile.Profile
	tracker *pattern.Tracker
	agent   *prediction.Agent
	risks   []float64
	alerts  *alert.Engine

	// outlook is the next-session forecast from stored history, fixed at open.
	outlook *prediction.Forecast

	notice string
	closed bool
}

func newSession(c *Companion, p *profile.Profile, notice string) *Session {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		userID:    p.UserID,
		companion: c,
		startedAt: c.clock.Now(),
		profile:   p,
		tracker:   pattern.NewTracker(c.opts.Pattern),
		agent:     prediction.NewAgent(nil),
		alerts:    alert.NewEngine(c.opts.Alert, c.clock, c.alertObserver(id)),
		notice:    notice,
	}
	if fc, ok := NextSessionOutlook(p); ok {
		s.outlook = &fc
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// StartedAt returns when the session was opened.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Outlook returns the forecast for this session drawn from earlier sessions,
// or nil when fewer than three are stored.
func (s *Session) Outlook() *prediction.Forecast {
	if s.outlook == nil {
		return nil
	}
	fc := *s.outlook
	return &fc
}

// Notice returns a degraded-session message for the user, or "".
func (s *Session) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Profile returns a copy of the session's profile.
func (s *Session) Profile() *profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// UpdateProfile applies fn to the session's profile and saves it. On a store
// failure the change is rolled back.
func (s *Session) UpdateProfile(ctx context.Context, fn func(*profile.Profile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	backup := s.profile.Clone()
	fn(s.profile)
	s.profile.UserID = s.userID
	s.profile.UpdatedAt = s.companion.clock.Now()
	if err := s.companion.store.Save(ctx, s.profile); err != nil {
		s.profile = backup
		s.companion.publishFailure(s.userID, s.id, err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Summary returns the current pattern summary.
func (s *Session) Summary() pattern.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Summary()
}

// PredictionMetrics returns the prediction agent's accuracy counters.
func (s *Session) PredictionMetrics() prediction.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent.Metrics()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ═══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ═══════════════════════════════════════════════════════════════════════════════

// HandleMessage runs one utterance through classify, pattern update,
// prediction, escalation tick, alert check and reply composition.
func (s *Session) HandleMessage(ctx context.Context, text string) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Reply{}, ErrSessionClosed
	}
	start := time.Now()
	c := s.companion

	rec := c.classifier.Classify(text)
	s.tracker.Add(rec)
	summary := s.tracker.Summary()

	var reply Reply
	reply.Record = rec
	reply.Summary = summary

	s.agent.Observe(rec.Polarity)
	if fc, ok := s.agent.Advance(); ok {
		reply.Forecast = &fc
	}
	s.risks = append(s.risks, summary.RiskScore)
	if rf, ok := prediction.PredictRiskEscalation(s.risks); ok {
		reply.RiskForecast = &rf
	}
	if warning, ok := prediction.PreDistressWarning(s.tracker.Polarities()); ok {
		reply.PreDistressWarning = warning
	}

	reply.Escalated = s.alerts.EscalatePending()

	if s.alerts.ShouldTrigger(summary) {
		a := s.alerts.Trigger(summary, s.profile)
		s.tracker.ResetConsecutiveDistress()
		reply.Alert = &a
	}

	reply.Text = composeReply(replyInput{
		record:   rec,
		summary:  summary,
		forecast: reply.Forecast,
		warning:  reply.PreDistressWarning,
		alert:    reply.Alert,
		language: s.profile.LanguagePreference,
		style:    s.profile.ResponseStyle,
	})

	elapsed := time.Since(start)
	log.Debug().
		Str("user_id", s.userID).
		Str("fine_emotion", string(rec.FineEmotion)).
		Str("risk_level", string(summary.RiskLevel)).
		Int("consecutive_distress", summary.ConsecutiveDistress).
		Bool("alert", reply.Alert != nil).
		Dur("elapsed", elapsed).
		Msg("message handled")

	e := bus.NewEvent(bus.EventMessageClassified)
	e.UserID, e.SessionID = s.userID, s.id
	e.Emotion = string(rec.FineEmotion)
	e.Script = string(rec.DetectedScript)
	e.Polarity = rec.Polarity
	e.RiskScore = summary.RiskScore
	e.RiskLevel = string(summary.RiskLevel)
	e.Crisis = rec.IsCrisis
	e.DurationMs = elapsed.Milliseconds()
	c.publish(e)
	if reply.PreDistressWarning != "" {
		w := bus.NewEvent(bus.EventPreDistress)
		w.UserID, w.SessionID = s.userID, s.id
		c.publish(w)
	}

	return reply, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// ALERTS
// ═══════════════════════════════════════════════════════════════════════════════

// EscalatePending promotes overdue alerts in this session.
func (s *Session) EscalatePending() []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.EscalatePending()
}

// Acknowledge marks an alert as seen; it stops escalating.
func (s *Session) Acknowledge(alertID string) (alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.Acknowledge(alertID)
}

// GrantConsent records the user's consent to notify guardians.
func (s *Session) GrantConsent(alertID string) (alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.GrantConsent(alertID)
}

// Alerts returns every alert raised in this session.
func (s *Session) Alerts() []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.Alerts()
}

// PendingAlerts returns the unacknowledged alerts.
func (s *Session) PendingAlerts() []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.Pending()
}

// AlertLog returns the session's alert log.
func (s *Session) AlertLog() []alert.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.Log()
}

// ═══════════════════════════════════════════════════════════════════════════════
// CLOSE
// ═══════════════════════════════════════════════════════════════════════════════

// Close ends the session. A session with at least one message is recorded
// as a snapshot in the user's history, the mood streak is updated and badges
// are evaluated. When the store rejects the write the profile is rolled back,
// the result carries a user-facing notice and the error wraps ErrPersistence.
func (s *Session) Close(ctx context.Context) (CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return CloseResult{}, ErrSessionClosed
	}
	s.closed = true
	c := s.companion
	defer c.forget(s)

	res := CloseResult{SessionID: s.id, MoodStreak: s.profile.MoodStreak, NewBadges: []Badge{}}
	done := bus.NewEvent(bus.EventSessionClosed)
	done.UserID, done.SessionID = s.userID, s.id

	if s.tracker.MessagesCount() == 0 {
		log.Debug().Str("user_id", s.userID).Msg("empty session closed without snapshot")
		c.publish(done)
		return res, nil
	}

	now := c.clock.Now()
	summary := s.tracker.Summary()
	snap := profile.NewSnapshot(summary, now)
	backup := s.profile.Clone()

	p := s.profile
	p.AppendSnapshot(snap, c.opts.HistoryDays)
	if summary.AverageSentiment > 0 {
		p.MoodStreak++
	} else {
		p.MoodStreak = 0
	}
	p.LastCheckIn = &now
	p.UpdatedAt = now

	awarded := c.badges.Evaluate(p)
	for _, b := range awarded {
		p.Badges = append(p.Badges, b.ID)
	}

	if err := c.store.Save(ctx, p); err != nil {
		s.profile = backup
		res.Notice = persistenceNotice
		log.Error().Err(err).Str("user_id", s.userID).Msg("failed to save session snapshot")
		c.publishFailure(s.userID, s.id, err)
		done.Error = err.Error()
		c.publish(done)
		return res, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	res.Snapshot = &snap
	res.Persisted = true
	res.MoodStreak = p.MoodStreak
	res.NewBadges = awarded

	log.Info().
		Str("user_id", s.userID).
		Int("messages", summary.MessagesCount).
		Int("mood_streak", p.MoodStreak).
		Int("new_badges", len(awarded)).
		Msg("session recorded")
	c.publish(done)
	return res, nil
}
