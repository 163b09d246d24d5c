package alert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/buddy/internal/clock"
	"github.com/normanking/buddy/internal/pattern"
	"github.com/normanking/buddy/internal/profile"
)

var t0 = time.Date(2024, 4, 10, 20, 0, 0, 0, time.UTC)

func sustained(level string) pattern.Summary {
	return pattern.Summary{
		SeverityLevel:             level,
		RiskLevel:                 pattern.Level(level),
		SustainedDistressDetected: true,
		ConsecutiveDistress:       3,
	}
}

func TestComputeSeverity(t *testing.T) {
	tests := []struct {
		name string
		sum  pattern.Summary
		want Severity
	}{
		{"abuse lifts low", pattern.Summary{SeverityLevel: "LOW", AbuseIndicatorsDetected: true}, SeverityMedium},
		{"high and sustained is critical", pattern.Summary{SeverityLevel: "HIGH", SustainedDistressDetected: true}, SeverityCritical},
		{"missing level defaults to low", pattern.Summary{}, SeverityLow},
		{"lowercase accepted", pattern.Summary{SeverityLevel: "medium"}, SeverityMedium},
		{"critical saturates", pattern.Summary{SeverityLevel: "CRITICAL", AbuseIndicatorsDetected: true}, SeverityCritical},
		{"abuse then sustained", pattern.Summary{SeverityLevel: "MEDIUM", AbuseIndicatorsDetected: true, SustainedDistressDetected: true}, SeverityCritical},
		{"medium sustained stays", pattern.Summary{SeverityLevel: "MEDIUM", SustainedDistressDetected: true}, SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeSeverity(tt.sum))
		})
	}
}

func TestSeverityLadderMonotone(t *testing.T) {
	for _, s := range Ladder {
		with := ComputeSeverity(pattern.Summary{SeverityLevel: s.String(), AbuseIndicatorsDetected: true})
		without := ComputeSeverity(pattern.Summary{SeverityLevel: s.String()})
		assert.GreaterOrEqual(t, with, without, s.String())
	}
}

func TestSeverityText(t *testing.T) {
	s, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, s)
	_, err = ParseSeverity("severe")
	assert.Error(t, err)

	raw, err := json.Marshal(struct {
		S Severity `json:"s"`
		T State    `json:"t"`
	}{SeverityCritical, StateEscalated})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"CRITICAL","t":"escalated"}`, string(raw))
}

func TestTrigger(t *testing.T) {
	var seen []LogEntry
	e := NewEngine(DefaultConfig(), clock.NewFake(t0), ObserverFunc(func(le LogEntry) { seen = append(seen, le) }))

	assert.False(t, e.ShouldTrigger(pattern.Summary{}))
	sum := sustained("HIGH")
	require.True(t, e.ShouldTrigger(sum))

	p := profile.New("meena", t0)
	p.Guardians = []profile.Contact{{Name: "Appa", Phone: "98400 00000"}}
	p.TrustedContacts = []profile.Contact{{Name: "Kavya"}}

	a := e.Trigger(sum, p)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "meena", a.UserID)
	assert.Equal(t, KindDistress, a.Kind)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, StateOpen, a.State)
	assert.Equal(t, t0, a.CreatedAt)
	assert.False(t, a.Acknowledged)
	assert.False(t, a.GuardianConsent)
	assert.True(t, a.Flags.NotifyGuardians)
	assert.False(t, a.Flags.SpecializedSupport)
	assert.Len(t, a.Contacts, 2)
	assert.Len(t, a.Resources, len(GeneralResources))
	assert.Equal(t, 3, a.PatternSnapshot.ConsecutiveDistress)

	require.Len(t, e.Log(), 1)
	assert.Equal(t, EventCreated, e.Log()[0].Event)
	require.Len(t, seen, 1)
	assert.Equal(t, a.ID, seen[0].AlertID)
}

func TestTriggerSpecializedSupport(t *testing.T) {
	e := NewEngine(DefaultConfig(), clock.NewFake(t0), nil)
	sum := sustained("MEDIUM")
	sum.AbuseIndicatorsDetected = true

	p := profile.New("f", t0)
	p.Gender = "female"
	a := e.Trigger(sum, p)
	assert.True(t, a.Flags.SpecializedSupport)
	assert.False(t, a.Flags.TrustedSupport)
	assert.Len(t, a.Resources, len(GeneralResources)+len(WomenResources))

	p.UnsafeContacts = []profile.Contact{{Name: "X"}}
	a = e.Trigger(sum, p)
	assert.True(t, a.Flags.TrustedSupport)
	assert.Len(t, a.Resources, len(GeneralResources)+len(WomenResources)+len(TrustedResources))

	p.Gender = "male"
	a = e.Trigger(sum, p)
	assert.False(t, a.Flags.SpecializedSupport)
}

func TestTriggerGuardianGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableGuardianAlerts = false
	e := NewEngine(cfg, clock.NewFake(t0), nil)

	p := profile.New("g", t0)
	p.Guardians = []profile.Contact{{Name: "Amma"}}
	a := e.Trigger(sustained("HIGH"), p)
	assert.False(t, a.Flags.NotifyGuardians)

	e = NewEngine(DefaultConfig(), clock.NewFake(t0), nil)
	a = e.Trigger(sustained("HIGH"), profile.New("no-guardians", t0))
	assert.False(t, a.Flags.NotifyGuardians)

	a = e.Trigger(sustained("HIGH"), nil)
	assert.Empty(t, a.UserID)
}

func TestEscalationTiming(t *testing.T) {
	fake := clock.NewFake(t0)
	e := NewEngine(DefaultConfig(), fake, nil)
	a := e.Trigger(sustained("MEDIUM"), profile.New("u", t0))
	require.Equal(t, SeverityMedium, a.Severity)

	fake.Advance(10 * time.Minute)
	assert.Empty(t, e.EscalatePending(), "dwell not reached")

	fake.Set(t0.Add(16 * time.Minute))
	changed := e.EscalatePending()
	require.Len(t, changed, 1)
	assert.Equal(t, SeverityHigh, changed[0].Severity)
	assert.Equal(t, StateEscalated, changed[0].State)
	require.NotNil(t, changed[0].EscalatedAt)
	assert.Equal(t, t0.Add(16*time.Minute), *changed[0].EscalatedAt)

	before, err := e.Get(a.ID)
	require.NoError(t, err)
	assert.Empty(t, e.EscalatePending(), "second tick at the same instant is a no-op")
	after, err := e.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	fake.Advance(5 * time.Minute)
	changed = e.EscalatePending()
	require.Len(t, changed, 1)
	assert.Equal(t, SeverityCritical, changed[0].Severity)

	fake.Advance(24 * time.Hour)
	assert.Empty(t, e.EscalatePending(), "critical is terminal")
}

func TestAcknowledgeStopsEscalation(t *testing.T) {
	fake := clock.NewFake(t0)
	e := NewEngine(DefaultConfig(), fake, nil)
	a := e.Trigger(sustained("LOW"), profile.New("u", t0))

	fake.Advance(time.Minute)
	acked, err := e.Acknowledge(a.ID)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Equal(t, StateAcknowledged, acked.State)
	require.NotNil(t, acked.AcknowledgedAt)

	fake.Advance(10 * time.Hour)
	assert.Empty(t, e.EscalatePending())
	got, err := e.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, acked, got)

	again, err := e.Acknowledge(a.ID)
	require.NoError(t, err)
	assert.Equal(t, acked, again)
	assert.Len(t, e.Log(), 2, "second acknowledge is not logged")
	assert.Empty(t, e.Pending())

	_, err = e.Acknowledge("missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestGrantConsent(t *testing.T) {
	e := NewEngine(DefaultConfig(), clock.NewFake(t0), nil)
	a := e.Trigger(sustained("HIGH"), profile.New("u", t0))

	got, err := e.GrantConsent(a.ID)
	require.NoError(t, err)
	assert.True(t, got.GuardianConsent)
	assert.Equal(t, StateOpen, got.State)
	assert.Equal(t, EventConsent, e.Log()[1].Event)

	_, err = e.GrantConsent("nope")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestLogIsBoundedAndDetached(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLogEntries = 3
	e := NewEngine(cfg, clock.NewFake(t0), nil)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, e.Trigger(sustained("LOW"), profile.New("u", t0)).ID)
	}
	entries := e.Log()
	require.Len(t, entries, 3)
	assert.Equal(t, ids[2], entries[0].AlertID)
	assert.Len(t, e.Alerts(), 3)

	_, err := e.Acknowledge(ids[4])
	require.NoError(t, err)
	entries = e.Log()
	require.Len(t, entries, 4)
	assert.Equal(t, EventCreated, entries[2].Event)
	assert.Equal(t, StateOpen, entries[2].State, "earlier entries are value copies")
	assert.Equal(t, StateAcknowledged, entries[3].State)
}

func TestLogKeepsCreationOfRetainedAlerts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLogEntries = 2
	e := NewEngine(cfg, clock.NewFake(t0), nil)
	p := profile.New("u", t0)

	first := e.Trigger(sustained("LOW"), p)
	_, err := e.GrantConsent(first.ID)
	require.NoError(t, err)
	_, err = e.Acknowledge(first.ID)
	require.NoError(t, err)
	second := e.Trigger(sustained("LOW"), p)

	entries := e.Log()
	require.Len(t, entries, 4)
	assert.Equal(t, EventCreated, entries[0].Event)
	assert.Equal(t, first.ID, entries[0].AlertID)

	third := e.Trigger(sustained("LOW"), p)
	entries = e.Log()
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].AlertID)
	assert.Equal(t, third.ID, entries[1].AlertID)
	for _, entry := range entries {
		assert.Equal(t, EventCreated, entry.Event)
	}
}

func TestFormatting(t *testing.T) {
	e := NewEngine(DefaultConfig(), clock.NewFake(t0), nil)
	p := profile.New("u", t0)
	p.Guardians = []profile.Contact{{Name: "Amma"}}
	a := e.Trigger(sustained("HIGH"), p)

	text := FormatAlert(a)
	assert.Contains(t, text, "[CRITICAL]")
	assert.Contains(t, text, "14416")
	assert.Contains(t, text, "/consent "+a.ID)

	note := FormatGuardianNotification(a, "Meena")
	assert.Contains(t, note, "Meena may need support")
	assert.Contains(t, note, "3 messages in a row")

	line := FormatLogEntry(e.Log()[0])
	assert.Contains(t, line, "created")
	assert.Contains(t, line, "flags=guardians")

	assert.Equal(t, 2*time.Minute, Age(a, t0.Add(2*time.Minute)))
}
