// Package orchestrator wires the classifier, pattern tracker, prediction
// agent and alert engine into the per-message companion pipeline, and owns
// the session lifecycle against the profile store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/bus"
	"github.com/normanking/buddy/internal/clock"
	"github.com/normanking/buddy/internal/emotion"
	"github.com/normanking/buddy/internal/pattern"
	"github.com/normanking/buddy/internal/profile"
	"github.com/normanking/buddy/internal/sentiment"
)

var (
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrPersistence wraps profile store failures surfaced to the user.
	ErrPersistence = errors.New("profile could not be saved")
	// ErrInvalidUser is returned for an empty user id.
	ErrInvalidUser = errors.New("user id is required")
)

// persistenceNotice is shown when the store rejects a write.
const persistenceNotice = "I couldn't save today's check-in, so it won't appear in your history. " +
	"Our conversation is still here and nothing you said is lost for now."

// diagnosticsNotice is shown when part of the stored history was unreadable.
const diagnosticsNotice = "Some earlier check-ins could not be read and were skipped."

// Options are the immutable thresholds every session is built from.
type Options struct {
	Pattern         pattern.Options
	Alert           alert.Config
	HistoryDays     int
	DefaultLanguage profile.Language
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		Pattern:         pattern.Options{Window: pattern.DefaultWindow, SustainedCount: pattern.DefaultSustainedCount},
		Alert:           alert.DefaultConfig(),
		HistoryDays:     profile.DefaultHistoryDays,
		DefaultLanguage: profile.LanguageEnglish,
	}
}

// Config configures a Companion. Nil collaborators take defaults: the
// lexical sentiment classifier, an in-memory store, the system clock and the
// milestone badge evaluator.
type Config struct {
	Options    Options
	Classifier *emotion.Classifier
	Store      profile.Store
	Clock      clock.Clock
	Observer   alert.Observer
	Badges     BadgeEvaluator
	Bus        *bus.Bus
}

// Companion is the process-wide entry point. It is safe for concurrent use;
// each user gets at most one open Session at a time.
type Companion struct {
	opts       Options
	classifier *emotion.Classifier
	store      profile.Store
	clock      clock.Clock
	observer   alert.Observer
	badges     BadgeEvaluator
	bus        *bus.Bus

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Companion.
func New(cfg *Config) *Companion {
	if cfg == nil {
		cfg = &Config{Options: DefaultOptions()}
	}
	opts := cfg.Options
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = profile.DefaultHistoryDays
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = profile.LanguageEnglish
	}

	clk := clock.Or(cfg.Clock)
	c := &Companion{
		opts:       opts,
		classifier: cfg.Classifier,
		store:      cfg.Store,
		clock:      clk,
		observer:   cfg.Observer,
		badges:     cfg.Badges,
		bus:        cfg.Bus,
		sessions:   make(map[string]*Session),
	}
	if c.classifier == nil {
		c.classifier = emotion.NewClassifier(sentiment.NewLexical(), nil, clk)
	}
	if c.store == nil {
		c.store = profile.NewMemoryStore()
	}
	if c.badges == nil {
		c.badges = Milestones{}
	}
	return c
}

// Options returns the thresholds sessions are built from.
func (c *Companion) Options() Options { return c.opts }

// Classifier exposes the shared classifier.
func (c *Companion) Classifier() *emotion.Classifier { return c.classifier }

// Store exposes the profile store.
func (c *Companion) Store() profile.Store { return c.store }

// Open returns the user's open session, starting one if needed. A missing
// profile is created with defaults; failing to save it degrades the session
// with a notice instead of refusing it.
func (c *Companion) Open(ctx context.Context, userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUser
	}
	if s, ok := c.Session(userID); ok {
		return s, nil
	}

	var notices []string
	p, err := c.store.Load(ctx, userID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		p = profile.New(userID, c.clock.Now())
		p.LanguagePreference = c.opts.DefaultLanguage
		if err := c.store.Save(ctx, p); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("failed to create profile")
			c.publishFailure(userID, "", err)
			notices = append(notices, persistenceNotice)
		} else {
			log.Info().Str("user_id", userID).Msg("profile created")
		}
	case err != nil:
		return nil, fmt.Errorf("%w: load profile %s: %v", ErrPersistence, userID, err)
	}
	if len(p.Diagnostics) > 0 {
		notices = append(notices, diagnosticsNotice)
	}

	s := newSession(c, p, strings.Join(notices, " "))

	c.mu.Lock()
	if existing, ok := c.sessions[userID]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.sessions[userID] = s
	c.mu.Unlock()

	log.Debug().Str("user_id", userID).Str("session_id", s.id).Msg("session opened")
	e := bus.NewEvent(bus.EventSessionOpened)
	e.UserID, e.SessionID = userID, s.id
	c.publish(e)
	return s, nil
}

// Session returns the user's open session.
func (c *Companion) Session(userID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	return s, ok
}

// Sessions returns every open session ordered by user id.
func (c *Companion) Sessions() []*Session {
	c.mu.Lock()
	out := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].userID < out[j].userID })
	return out
}

func (c *Companion) forget(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[s.userID] == s {
		delete(c.sessions, s.userID)
	}
}

// EscalateAll ticks escalation on every open session and returns the
// promoted alerts.
func (c *Companion) EscalateAll() []alert.Alert {
	var out []alert.Alert
	for _, s := range c.Sessions() {
		out = append(out, s.EscalatePending()...)
	}
	return out
}

// CloseAll closes every open session, e.g. on shutdown. Persistence errors
// are logged and the remaining sessions are still closed.
func (c *Companion) CloseAll(ctx context.Context) {
	for _, s := range c.Sessions() {
		if _, err := s.Close(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
			log.Error().Err(err).Str("user_id", s.userID).Msg("failed to close session")
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Companion) publish(e bus.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(e); err != nil {
		log.Debug().Err(err).Str("type", string(e.Type)).Msg("event not published")
	}
}

func (c *Companion) publishFailure(userID, sessionID string, err error) {
	e := bus.NewEvent(bus.EventPersistenceFailed)
	e.UserID, e.SessionID, e.Error = userID, sessionID, err.Error()
	c.publish(e)
}

// alertObserver forwards engine log entries to the configured observer and
// onto the bus.
func (c *Companion) alertObserver(sessionID string) alert.Observer {
	return alert.ObserverFunc(func(le alert.LogEntry) {
		if c.observer != nil {
			c.observer.AlertEvent(le)
		}
		c.publish(alertBusEvent(le, sessionID))
	})
}

func alertBusEvent(le alert.LogEntry, sessionID string) bus.Event {
	var t bus.EventType
	switch le.Event {
	case alert.EventEscalated:
		t = bus.EventAlertEscalated
	case alert.EventAcknowledged:
		t = bus.EventAlertAcknowledged
	case alert.EventConsent:
		t = bus.EventAlertConsent
	default:
		t = bus.EventAlertCreated
	}
	e := bus.NewEvent(t)
	e.Timestamp = le.At
	e.UserID = le.UserID
	e.SessionID = sessionID
	e.AlertID = le.AlertID
	e.Severity = le.Severity.String()
	e.State = le.State.String()
	return e
}
