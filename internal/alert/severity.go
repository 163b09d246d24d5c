package alert

import (
	"fmt"
	"strings"

	"github.com/normanking/buddy/internal/pattern"
)

// Severity is a rung on the fixed alert ladder.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Ladder lists every severity from lowest to highest.
var Ladder = []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

var severityNames = [...]string{"INFO", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Up returns the next rung, saturating at CRITICAL.
func (s Severity) Up() Severity {
	if s >= SeverityCritical {
		return SeverityCritical
	}
	return s + 1
}

// ParseSeverity parses a ladder name case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range severityNames {
		if n == upper {
			return Severity(i), nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// State is the alert lifecycle state.
type State int

const (
	StateOpen State = iota
	StateEscalated
	StateAcknowledged
)

var stateNames = [...]string{"open", "escalated", "acknowledged"}

func (s State) String() string {
	if s < StateOpen || s > StateAcknowledged {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == strings.ToLower(string(b)) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown alert state %q", string(b))
}

// ComputeSeverity derives the alert severity for a pattern summary. The
// summary level is the starting point (LOW when absent), abuse indicators add
// one rung, and sustained distress at HIGH is promoted to CRITICAL.
func ComputeSeverity(s pattern.Summary) Severity {
	sev, err := ParseSeverity(s.SeverityLevel)
	if err != nil {
		sev = SeverityLow
	}
	if s.AbuseIndicatorsDetected {
		sev = sev.Up()
	}
	if s.SustainedDistressDetected && sev == SeverityHigh {
		sev = SeverityCritical
	}
	return sev
}
