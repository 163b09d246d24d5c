// Package scheduler runs periodic alert escalation sweeps for served
// sessions.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/metrics"
)

// DefaultSpec sweeps once a minute.
const DefaultSpec = "@every 1m"

// Escalator promotes overdue alerts across every open session.
type Escalator interface {
	EscalateAll() []alert.Alert
}

// Scheduler manages the escalation cron job.
type Scheduler struct {
	cron   *cron.Cron
	target Escalator
	spec   string
}

// New creates a scheduler that calls target.EscalateAll on spec, a standard
// cron expression or descriptor such as "@every 1m". Overlapping sweeps are
// skipped.
func New(target Escalator, spec string) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target: target,
		spec:   spec,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Tick() }); err != nil {
		return nil, fmt.Errorf("invalid escalation schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	log.Debug().Str("schedule", s.spec).Msg("escalation scheduler started")
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Tick runs one sweep immediately and returns the alerts it promoted.
func (s *Scheduler) Tick() []alert.Alert {
	metrics.EscalationTicks.Inc()
	changed := s.target.EscalateAll()
	for _, a := range changed {
		log.Info().Str("alert_id", a.ID).Str("user_id", a.UserID).
			Str("severity", a.Severity.String()).Msg("alert escalated")
	}
	return changed
}
