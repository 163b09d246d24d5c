package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/normanking/buddy/internal/prediction"
	"github.com/normanking/buddy/internal/profile"
	"github.com/normanking/buddy/pkg/types"
)

// WeekDays is how many of the newest snapshots a weekly summary covers.
const WeekDays = 7

const noForecastText = "Not enough check-ins yet to forecast your next session. Keep checking in!"

// WeeklySummary aggregates the newest snapshots of a profile.
type WeeklySummary struct {
	UserID           string                    `json:"user_id"`
	CheckIns         int                       `json:"check_ins"`
	AverageSentiment float64                   `json:"average_sentiment"`
	RiskIncidents    int                       `json:"risk_incidents"`
	EmotionTotals    map[types.FineEmotion]int `json:"emotion_totals"`
	From             string                    `json:"from,omitempty"`
	To               string                    `json:"to,omitempty"`

	Forecast     *prediction.Forecast `json:"forecast,omitempty"`
	ForecastText string               `json:"forecast_text"`

	MoodStreak int      `json:"mood_streak"`
	Badges     []string `json:"badges"`
}

// BuildWeeklySummary aggregates the last WeekDays snapshots of p and
// forecasts the next session from their average sentiments.
func BuildWeeklySummary(p *profile.Profile) WeeklySummary {
	w := WeeklySummary{
		UserID:        p.UserID,
		EmotionTotals: make(map[types.FineEmotion]int, len(types.FineEmotions)),
		ForecastText:  noForecastText,
		MoodStreak:    p.MoodStreak,
		Badges:        append([]string{}, p.Badges...),
	}
	for _, e := range types.FineEmotions {
		w.EmotionTotals[e] = 0
	}

	recent := p.RecentSnapshots(WeekDays)
	w.CheckIns = len(recent)
	if w.CheckIns == 0 {
		return w
	}
	w.From = recent[0].Date
	w.To = recent[len(recent)-1].Date

	averages := sessionAverages(recent)
	for _, s := range recent {
		if s.EmotionData.RiskLevel.AtLeastHigh() {
			w.RiskIncidents++
		}
		for e, n := range s.SessionSummary.EmotionCounts {
			w.EmotionTotals[e.Normalize()] += n
		}
	}

	var sum float64
	for _, a := range averages {
		sum += a
	}
	w.AverageSentiment = math.Round(sum/float64(len(averages))*10000) / 10000

	if fc, ok := prediction.PredictNext(averages); ok {
		w.Forecast = &fc
		w.ForecastText = fc.Message
	}
	return w
}

// NextSessionOutlook forecasts the average sentiment of the user's next
// session from the newest WeekDays snapshots. It needs prediction.MinPoints
// stored sessions.
func NextSessionOutlook(p *profile.Profile) (prediction.Forecast, bool) {
	return prediction.PredictNext(sessionAverages(p.RecentSnapshots(WeekDays)))
}

func sessionAverages(snaps []profile.Snapshot) []float64 {
	out := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.SessionSummary.AverageSentiment)
	}
	return out
}

// WeeklySummary loads the user's profile and summarises the past week. An
// open session's unsaved messages are not included.
func (c *Companion) WeeklySummary(ctx context.Context, userID string) (WeeklySummary, error) {
	p, err := c.store.Load(ctx, userID)
	if err != nil {
		return WeeklySummary{}, fmt.Errorf("weekly summary for %s: %w", userID, err)
	}
	return BuildWeeklySummary(p), nil
}

// FormatWeekly renders a weekly summary as plain text.
func FormatWeekly(w WeeklySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly summary for %s\n", w.UserID)
	if w.CheckIns == 0 {
		b.WriteString("No check-ins recorded yet.\n")
		b.WriteString(w.ForecastText)
		return b.String()
	}
	fmt.Fprintf(&b, "Check-ins: %d (%s to %s)\n", w.CheckIns, w.From, w.To)
	fmt.Fprintf(&b, "Average sentiment: %+.2f\n", w.AverageSentiment)
	fmt.Fprintf(&b, "High-risk sessions: %d\n", w.RiskIncidents)

	var counts []string
	for _, e := range types.FineEmotions {
		if n := w.EmotionTotals[e]; n > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", e, n))
		}
	}
	if len(counts) > 0 {
		fmt.Fprintf(&b, "Emotions: %s\n", strings.Join(counts, ", "))
	}
	fmt.Fprintf(&b, "Mood streak: %d\n", w.MoodStreak)
	if len(w.Badges) > 0 {
		titles := make([]string, 0, len(w.Badges))
		for _, id := range w.Badges {
			if badge, ok := LookupBadge(id); ok {
				titles = append(titles, badge.Title)
			} else {
				titles = append(titles, id)
			}
		}
		fmt.Fprintf(&b, "Badges: %s\n", strings.Join(titles, ", "))
	}
	b.WriteString("Next session: " + w.ForecastText)
	return b.String()
}

