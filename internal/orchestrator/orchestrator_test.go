package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/bus"
	"github.com/normanking/buddy/internal/clock"
	"github.com/normanking/buddy/internal/emotion"
	"github.com/normanking/buddy/internal/pattern"
	"github.com/normanking/buddy/internal/profile"
	"github.com/normanking/buddy/pkg/types"
)

var t0 = time.Date(2024, 9, 2, 19, 30, 0, 0, time.UTC)

var distressRun = []string{"I feel hopeless", "Everything is worthless", "I can't take it anymore"}

// flakyStore fails every Save while failing is set.
type flakyStore struct {
	*profile.MemoryStore
	mu      sync.Mutex
	failing bool
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyStore) Save(ctx context.Context, p *profile.Profile) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, p)
}

func newTestCompanion(t *testing.T, store profile.Store) (*Companion, *clock.Fake, *bus.Bus) {
	t.Helper()
	fake := clock.NewFake(t0)
	b := bus.NewBus()
	t.Cleanup(func() { b.Close() })
	if store == nil {
		store = profile.NewMemoryStore()
	}
	c := New(&Config{Options: DefaultOptions(), Store: store, Clock: fake, Bus: b})
	return c, fake, b
}

func send(t *testing.T, s *Session, texts ...string) Reply {
	t.Helper()
	var r Reply
	for _, text := range texts {
		var err error
		r, err = s.HandleMessage(context.Background(), text)
		require.NoError(t, err)
	}
	return r
}

func eventTypes(b *bus.Bus) []bus.EventType {
	var out []bus.EventType
	for _, e := range b.History() {
		out = append(out, e.Type)
	}
	return out
}

func TestOpenCreatesProfile(t *testing.T) {
	ctx := context.Background()
	store := profile.NewMemoryStore()
	c, _, b := newTestCompanion(t, store)

	s, err := c.Open(ctx, "  priya ")
	require.NoError(t, err)
	assert.Equal(t, "priya", s.UserID())
	assert.NotEmpty(t, s.ID())
	assert.Empty(t, s.Notice())

	ok, err := store.Exists(ctx, "priya")
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := c.Open(ctx, "priya")
	require.NoError(t, err)
	assert.Same(t, s, again, "one open session per user")
	assert.Len(t, c.Sessions(), 1)
	assert.Equal(t, []bus.EventType{bus.EventSessionOpened}, eventTypes(b))

	_, err = c.Open(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestCrisisReply(t *testing.T) {
	c, _, _ := newTestCompanion(t, nil)
	s, err := c.Open(context.Background(), "u")
	require.NoError(t, err)

	r := send(t, s, "I want to kill myself")
	assert.True(t, r.Record.IsCrisis)
	assert.Equal(t, types.EmotionCrisis, r.Record.FineEmotion)
	assert.True(t, r.Summary.RiskLevel.AtLeastHigh())
	assert.Equal(t, pattern.TrendInsufficientData, r.Summary.Trend)
	assert.Nil(t, r.Alert, "D=3 so a single crisis message does not alert")
	assert.Contains(t, r.Text, "Tele-MANAS 14416")
	assert.Contains(t, r.Text, "112")
	assert.Nil(t, r.Forecast)
}

func TestSustainedDistressRaisesAlert(t *testing.T) {
	c, _, b := newTestCompanion(t, nil)
	s, err := c.Open(context.Background(), "u")
	require.NoError(t, err)

	r := send(t, s, distressRun...)
	require.NotNil(t, r.Alert)
	assert.GreaterOrEqual(t, int(r.Alert.Severity), int(alert.SeverityMedium))
	assert.Equal(t, alert.StateOpen, r.Alert.State)
	assert.True(t, r.Summary.SustainedDistressDetected)
	assert.GreaterOrEqual(t, r.Summary.ConsecutiveDistress, 3, "reply carries the pre-reset summary")
	assert.Equal(t, 0, s.Summary().ConsecutiveDistress, "debounced after trigger")
	assert.Equal(t, 3, s.Summary().CumulativeDistressCount)
	assert.Len(t, s.AlertLog(), 1)
	assert.Contains(t, r.Text, "wellness alert")
	assert.Contains(t, r.Text, "Tele-MANAS 14416")
	require.NotNil(t, r.Forecast)
	assert.Equal(t, 3, r.Forecast.N)
	require.NotNil(t, r.RiskForecast)

	assert.Contains(t, eventTypes(b), bus.EventAlertCreated)

	next := send(t, s, "I feel hopeless")
	assert.Nil(t, next.Alert, "counter restarts after an alert")
}

func TestAcknowledgeAndConsent(t *testing.T) {
	ctx := context.Background()
	c, _, b := newTestCompanion(t, nil)
	s, err := c.Open(ctx, "u")
	require.NoError(t, err)
	require.NoError(t, s.UpdateProfile(ctx, func(p *profile.Profile) {
		p.Guardians = []profile.Contact{{Name: "Amma", Phone: "+91 98400 11111"}}
	}))

	r := send(t, s, distressRun...)
	require.NotNil(t, r.Alert)
	assert.True(t, r.Alert.Flags.NotifyGuardians)
	assert.Contains(t, r.Text, "/consent "+r.Alert.ID)
	assert.Len(t, s.PendingAlerts(), 1)

	a, err := s.GrantConsent(r.Alert.ID)
	require.NoError(t, err)
	assert.True(t, a.GuardianConsent)

	a, err = s.Acknowledge(r.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.StateAcknowledged, a.State)
	assert.Empty(t, s.PendingAlerts())
	assert.Len(t, s.AlertLog(), 3)
	assert.Empty(t, c.EscalateAll())

	_, err = s.Acknowledge("missing")
	assert.ErrorIs(t, err, alert.ErrAlertNotFound)

	seen := eventTypes(b)
	assert.Contains(t, seen, bus.EventAlertConsent)
	assert.Contains(t, seen, bus.EventAlertAcknowledged)
}

func TestCloseRecordsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := profile.NewMemoryStore()
	c, fake, b := newTestCompanion(t, store)

	s, err := c.Open(ctx, "u")
	require.NoError(t, err)
	send(t, s, "I feel great today")

	res, err := s.Close(ctx)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "2024-09-02", res.Snapshot.Date)
	assert.Equal(t, 1, res.Snapshot.EmotionData.MessagesCount)
	assert.Equal(t, 1, res.MoodStreak)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, "first-check-in", res.NewBadges[0].ID)
	assert.True(t, s.Closed())

	_, ok := c.Session("u")
	assert.False(t, ok)
	_, err = s.HandleMessage(ctx, "hello")
	assert.ErrorIs(t, err, ErrSessionClosed)

	p, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, p.EmotionalHistory, 1)
	assert.Equal(t, 1, p.MoodStreak)
	assert.Equal(t, []string{"first-check-in"}, p.Badges)
	require.NotNil(t, p.LastCheckIn)
	assert.Equal(t, t0, *p.LastCheckIn)

	fake.Advance(24 * time.Hour)
	s, err = c.Open(ctx, "u")
	require.NoError(t, err)
	send(t, s, "I feel hopeless")
	res, err = s.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.MoodStreak, "negative session resets the streak")
	assert.Empty(t, res.NewBadges)

	assert.Contains(t, eventTypes(b), bus.EventSessionClosed)
}

func TestCloseEmptySession(t *testing.T) {
	ctx := context.Background()
	store := profile.NewMemoryStore()
	c, _, _ := newTestCompanion(t, store)

	s, err := c.Open(ctx, "u")
	require.NoError(t, err)
	res, err := s.Close(ctx)
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Nil(t, res.Snapshot)

	p, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, p.EmotionalHistory)

	_, err = s.Close(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestClosePersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: profile.NewMemoryStore()}
	c, _, b := newTestCompanion(t, store)

	s, err := c.Open(ctx, "u")
	require.NoError(t, err)
	send(t, s, "I feel great today")

	store.setFailing(true)
	res, err := s.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.False(t, res.Persisted)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, persistenceNotice, res.Notice)
	assert.Equal(t, 0, res.MoodStreak)

	p := s.Profile()
	assert.Empty(t, p.EmotionalHistory, "in-memory profile rolled back")
	assert.Equal(t, 0, p.MoodStreak)
	assert.Empty(t, p.Badges)

	assert.Contains(t, eventTypes(b), bus.EventPersistenceFailed)
	_, ok := c.Session("u")
	assert.False(t, ok)
}

func TestOpenDegradesWhenCreateFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: profile.NewMemoryStore(), failing: true}
	c, _, _ := newTestCompanion(t, store)

	s, err := c.Open(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, persistenceNotice, s.Notice())

	r := send(t, s, "I am so happy today")
	assert.Equal(t, types.EmotionJoy, r.Record.FineEmotion)
}

func TestOpenLoadFailure(t *testing.T) {
	c := New(&Config{Store: brokenStore{profile.NewMemoryStore()}})
	_, err := c.Open(context.Background(), "u")
	assert.ErrorIs(t, err, ErrPersistence)
}

type brokenStore struct{ *profile.MemoryStore }

func (brokenStore) Load(context.Context, string) (*profile.Profile, error) {
	return nil, errors.New("database is locked")
}

func TestUpdateProfileRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: profile.NewMemoryStore()}
	c, _, _ := newTestCompanion(t, store)
	s, err := c.Open(ctx, "u")
	require.NoError(t, err)

	store.setFailing(true)
	err = s.UpdateProfile(ctx, func(p *profile.Profile) { p.Name = "Priya" })
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, s.Profile().Name)
}

func TestReplyLanguageAndStyle(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCompanion(t, nil)
	s, err := c.Open(ctx, "u")
	require.NoError(t, err)

	balanced := send(t, s, "I am so happy today")
	assert.Equal(t, strings.Join(englishTemplates[types.EmotionJoy], " "), balanced.Text)

	require.NoError(t, s.UpdateProfile(ctx, func(p *profile.Profile) { p.ResponseStyle = profile.StyleShort }))
	short := send(t, s, "I am so happy today")
	assert.Equal(t, englishTemplates[types.EmotionJoy][0], short.Text)

	require.NoError(t, s.UpdateProfile(ctx, func(p *profile.Profile) { p.LanguagePreference = profile.LanguageTamil }))
	tamil := send(t, s, "I am so happy today")
	assert.Equal(t, tamilTemplates[types.EmotionJoy][0], tamil.Text)

	require.NoError(t, s.UpdateProfile(ctx, func(p *profile.Profile) {
		p.LanguagePreference = profile.LanguageBilingual
		p.ResponseStyle = profile.StyleBalanced
	}))
	both := send(t, s, "I am so happy today")
	lines := strings.Split(both.Text, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], englishTemplates[types.EmotionJoy][0]))
	assert.True(t, strings.HasPrefix(lines[1], tamilTemplates[types.EmotionJoy][0]))
}

func recordOf(e types.FineEmotion) emotion.Record {
	return emotion.Record{FineEmotion: e}
}

func TestComposeDetailed(t *testing.T) {
	text := composeReply(replyInput{
		record:   recordOf(types.EmotionSadness),
		summary:  pattern.Summary{Trend: pattern.TrendDeclining},
		warning:  "Early check-in",
		language: profile.LanguageEnglish,
		style:    profile.StyleDetailed,
	})
	assert.Contains(t, text, "mood dipping")
	assert.Contains(t, text, "Early check-in")
	assert.NotContains(t, text, "Tele-MANAS")

	short := composeReply(replyInput{
		record:  recordOf(types.EmotionSadness),
		warning: "Early check-in",
		style:   profile.StyleShort,
	})
	assert.NotContains(t, short, "Early check-in")

	withAlert := composeReply(replyInput{
		record: recordOf(types.EmotionFear),
		alert:  &alert.Alert{ID: "a1", Severity: alert.SeverityHigh, Flags: alert.Flags{SpecializedSupport: true}},
		style:  profile.StyleShort,
	})
	assert.Contains(t, withAlert, "HIGH wellness alert")
	assert.Contains(t, withAlert, "Women Helpline 181")
	assert.Contains(t, withAlert, "Tele-MANAS 14416")
}

func TestMilestones(t *testing.T) {
	p := profile.New("u", t0)
	assert.Empty(t, Milestones{}.Evaluate(p))

	p.AppendSnapshot(profile.Snapshot{Date: "2024-09-01"}, 0)
	p.MoodStreak = 7
	got := Milestones{}.Evaluate(p)
	var ids []string
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"first-check-in", "three-day-streak", "week-streak"}, ids)

	p.Badges = ids
	assert.Empty(t, Milestones{}.Evaluate(p), "held badges are not re-awarded")

	b, ok := LookupBadge("week-streak")
	assert.True(t, ok)
	assert.Equal(t, "Week of Sunshine", b.Title)
}

func TestWeeklySummary(t *testing.T) {
	p := profile.New("u", t0)
	averages := []float64{-0.4, -0.2, 0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	for i, avg := range averages {
		sum := pattern.Summary{
			MessagesCount:    2,
			AverageSentiment: avg,
			RiskLevel:        pattern.LevelLow,
			EmotionCounts:    map[types.FineEmotion]int{types.EmotionJoy: 1, types.EmotionSadness: 1},
		}
		if i == 3 {
			sum.RiskLevel = pattern.LevelHigh
		}
		if i == 8 {
			sum.RiskLevel = pattern.LevelCritical
		}
		p.AppendSnapshot(profile.NewSnapshot(sum, t0.AddDate(0, 0, i)), 0)
	}

	w := BuildWeeklySummary(p)
	assert.Equal(t, 7, w.CheckIns)
	assert.Equal(t, "2024-09-04", w.From)
	assert.Equal(t, "2024-09-10", w.To)
	assert.InDelta(t, 0.3, w.AverageSentiment, 1e-9)
	assert.Equal(t, 2, w.RiskIncidents)
	assert.Equal(t, 7, w.EmotionTotals[types.EmotionJoy])
	assert.Equal(t, 7, w.EmotionTotals[types.EmotionSadness])
	assert.Equal(t, 0, w.EmotionTotals[types.EmotionCrisis])
	assert.Len(t, w.EmotionTotals, len(types.FineEmotions))
	require.NotNil(t, w.Forecast)
	assert.Greater(t, w.Forecast.Slope, 0.0)
	assert.Equal(t, w.Forecast.Message, w.ForecastText)

	text := FormatWeekly(w)
	assert.Contains(t, text, "Check-ins: 7")
	assert.Contains(t, text, "High-risk sessions: 2")
}

func TestWeeklySummaryInsufficientData(t *testing.T) {
	p := profile.New("u", t0)
	w := BuildWeeklySummary(p)
	assert.Zero(t, w.CheckIns)
	assert.Nil(t, w.Forecast)
	assert.Equal(t, noForecastText, w.ForecastText)
	assert.Contains(t, FormatWeekly(w), "No check-ins recorded yet.")

	p.AppendSnapshot(profile.Snapshot{Date: "2024-09-01"}, 0)
	p.AppendSnapshot(profile.Snapshot{Date: "2024-09-02"}, 0)
	w = BuildWeeklySummary(p)
	assert.Equal(t, 2, w.CheckIns)
	assert.Nil(t, w.Forecast, "two points are not enough to forecast")
}

func TestCompanionWeeklySummary(t *testing.T) {
	ctx := context.Background()
	c, fake, _ := newTestCompanion(t, nil)

	for i := 0; i < 3; i++ {
		s, err := c.Open(ctx, "u")
		require.NoError(t, err)
		send(t, s, "I feel great today")
		_, err = s.Close(ctx)
		require.NoError(t, err)
		fake.Advance(24 * time.Hour)
	}

	w, err := c.WeeklySummary(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 3, w.CheckIns)
	assert.Equal(t, 3, w.MoodStreak)
	assert.Contains(t, w.Badges, "three-day-streak")
	require.NotNil(t, w.Forecast)

	_, err = c.WeeklySummary(ctx, "ghost")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestCheerfulEnglishWithLoanwordRaisesNoAlert(t *testing.T) {
	c, _, _ := newTestCompanion(t, nil)
	s, err := c.Open(context.Background(), "u")
	require.NoError(t, err)

	text := "I'm so happy and excited today, no tension at all"
	r := send(t, s, text, text, text)
	assert.Equal(t, types.EmotionJoy, r.Record.FineEmotion)
	assert.Equal(t, types.ScriptEnglish, r.Record.DetectedScript)
	assert.Zero(t, r.Summary.ConsecutiveDistress)
	assert.Nil(t, r.Alert)
	assert.Empty(t, s.Alerts())
}

func TestOpenForecastsFromHistory(t *testing.T) {
	ctx := context.Background()
	store := profile.NewMemoryStore()
	c, _, _ := newTestCompanion(t, store)

	fresh, err := c.Open(ctx, "new")
	require.NoError(t, err)
	assert.Nil(t, fresh.Outlook(), "no history, no outlook")

	p := profile.New("u", t0)
	for i, avg := range []float64{-0.5, -0.3, -0.1, 0.1} {
		p.AppendSnapshot(profile.NewSnapshot(pattern.Summary{MessagesCount: 1, AverageSentiment: avg}, t0.AddDate(0, 0, i)), 0)
	}
	require.NoError(t, store.Save(ctx, p))

	s, err := c.Open(ctx, "u")
	require.NoError(t, err)
	outlook := s.Outlook()
	require.NotNil(t, outlook)
	assert.Equal(t, 4, outlook.N)
	assert.InDelta(t, 0.2, outlook.Slope, 1e-9)
	assert.InDelta(t, 0.3, outlook.Predicted, 1e-9)

	outlook.Predicted = 9
	assert.InDelta(t, 0.3, s.Outlook().Predicted, 1e-9, "outlook is returned by value")
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCompanion(t, nil)
	for i := 0; i < 3; i++ {
		s, err := c.Open(ctx, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		send(t, s, "I feel great today")
	}
	require.Len(t, c.Sessions(), 3)
	c.CloseAll(ctx)
	assert.Empty(t, c.Sessions())
}

func TestDistinctUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCompanion(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Open(ctx, fmt.Sprintf("user-%d", i))
			if !assert.NoError(t, err) {
				return
			}
			for _, text := range distressRun {
				_, err := s.HandleMessage(ctx, text)
				assert.NoError(t, err)
			}
			assert.Len(t, s.Alerts(), 1)
		}(i)
	}
	wg.Wait()
}

func TestHandleMessageCancelled(t *testing.T) {
	c, _, _ := newTestCompanion(t, nil)
	s, err := c.Open(context.Background(), "u")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.HandleMessage(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Summary().MessagesCount)
}
