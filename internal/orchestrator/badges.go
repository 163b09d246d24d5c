package orchestrator

import "github.com/normanking/buddy/internal/profile"

// Badge is a gamification milestone.
type Badge struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BadgeEvaluator decides which badges a profile newly earns. It is called on
// session close after the snapshot and streak are applied.
type BadgeEvaluator interface {
	Evaluate(p *profile.Profile) []Badge
}

// Milestones awards the stock check-in and streak badges.
type Milestones struct{}

var milestones = []struct {
	badge Badge
	met   func(*profile.Profile) bool
}{
	{
		Badge{ID: "first-check-in", Title: "First Check-in", Description: "Completed your first check-in."},
		func(p *profile.Profile) bool { return len(p.EmotionalHistory) >= 1 },
	},
	{
		Badge{ID: "three-day-streak", Title: "Three in a Row", Description: "Three positive check-ins in a row."},
		func(p *profile.Profile) bool { return p.MoodStreak >= 3 },
	},
	{
		Badge{ID: "week-streak", Title: "Week of Sunshine", Description: "Seven positive check-ins in a row."},
		func(p *profile.Profile) bool { return p.MoodStreak >= 7 },
	},
	{
		Badge{ID: "thirty-check-ins", Title: "Regular", Description: "Thirty check-ins recorded."},
		func(p *profile.Profile) bool { return len(p.EmotionalHistory) >= 30 },
	},
}

// Evaluate implements BadgeEvaluator. Already-held badges are not returned.
func (Milestones) Evaluate(p *profile.Profile) []Badge {
	out := []Badge{}
	for _, m := range milestones {
		if m.met(p) && !p.HasBadge(m.badge.ID) {
			out = append(out, m.badge)
		}
	}
	return out
}

// LookupBadge returns the milestone badge with id.
func LookupBadge(id string) (Badge, bool) {
	for _, m := range milestones {
		if m.badge.ID == id {
			return m.badge, true
		}
	}
	return Badge{}, false
}
