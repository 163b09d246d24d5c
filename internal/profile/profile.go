// Package profile defines the per-user profile, the session snapshots kept in
// its emotional history, and the Store contract the companion persists through.
package profile

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Store.Load for an unknown user.
	ErrNotFound = errors.New("profile not found")
	// ErrCorruptSnapshot marks a stored snapshot that failed to decode or validate.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// DefaultHistoryDays caps EmotionalHistory.
const DefaultHistoryDays = 365

// Language is a user's reply language preference.
type Language string

const (
	LanguageEnglish   Language = "english"
	LanguageTamil     Language = "tamil"
	LanguageBilingual Language = "bilingual"
)

// Languages lists every supported preference.
var Languages = []Language{LanguageEnglish, LanguageTamil, LanguageBilingual}

// ParseLanguage validates a language name case-insensitively.
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Languages {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// ResponseStyle controls reply length.
type ResponseStyle string

const (
	StyleShort    ResponseStyle = "short"
	StyleBalanced ResponseStyle = "balanced"
	StyleDetailed ResponseStyle = "detailed"
)

// ParseResponseStyle validates a style name case-insensitively.
func ParseResponseStyle(s string) (ResponseStyle, bool) {
	switch st := ResponseStyle(strings.ToLower(strings.TrimSpace(s))); st {
	case StyleShort, StyleBalanced, StyleDetailed:
		return st, true
	}
	return "", false
}

// Contact is a guardian, trusted or unsafe person.
type Contact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
}

// Profile is the persisted per-user record. It is replaced whole on save.
type Profile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Age    int    `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`

	Guardians       []Contact `json:"guardians"`
	TrustedContacts []Contact `json:"trusted_contacts"`
	UnsafeContacts  []Contact `json:"unsafe_contacts"`

	LanguagePreference Language      `json:"language_preference"`
	ResponseStyle      ResponseStyle `json:"response_style"`

	MoodStreak  int        `json:"mood_streak"`
	LastCheckIn *time.Time `json:"last_check_in,omitempty"`
	Badges      []string   `json:"badges"`

	// EmotionalHistory is ordered oldest first.
	EmotionalHistory []Snapshot `json:"emotional_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Diagnostics collects load-time problems such as skipped snapshots.
	Diagnostics []string `json:"-"`
}

// New returns a profile with default preferences.
func New(userID string, now time.Time) *Profile {
	return &Profile{
		UserID:             userID,
		Guardians:          []Contact{},
		TrustedContacts:    []Contact{},
		UnsafeContacts:     []Contact{},
		LanguagePreference: LanguageEnglish,
		ResponseStyle:      StyleBalanced,
		Badges:             []string{},
		EmotionalHistory:   []Snapshot{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// IsFemale reports whether the recorded gender is female.
func (p *Profile) IsFemale() bool {
	switch strings.ToLower(strings.TrimSpace(p.Gender)) {
	case "female", "f", "woman", "girl":
		return true
	}
	return false
}

// HasBadge reports whether the badge was already awarded.
func (p *Profile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// AppendSnapshot adds s as the newest history entry and drops the oldest
// entries beyond limit. A non-positive limit selects DefaultHistoryDays.
func (p *Profile) AppendSnapshot(s Snapshot, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryDays
	}
	p.EmotionalHistory = append(p.EmotionalHistory, s)
	if over := len(p.EmotionalHistory) - limit; over > 0 {
		p.EmotionalHistory = append([]Snapshot(nil), p.EmotionalHistory[over:]...)
	}
}

// RecentSnapshots returns up to n of the newest snapshots, oldest first.
func (p *Profile) RecentSnapshots(n int) []Snapshot {
	h := p.EmotionalHistory
	if n < len(h) {
		h = h[len(h)-n:]
	}
	return append([]Snapshot(nil), h...)
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Guardians = append([]Contact{}, p.Guardians...)
	out.TrustedContacts = append([]Contact{}, p.TrustedContacts...)
	out.UnsafeContacts = append([]Contact{}, p.UnsafeContacts...)
	out.Badges = append([]string{}, p.Badges...)
	out.Diagnostics = append([]string(nil), p.Diagnostics...)
	if p.LastCheckIn != nil {
		t := *p.LastCheckIn
		out.LastCheckIn = &t
	}
	out.EmotionalHistory = make([]Snapshot, len(p.EmotionalHistory))
	for i, s := range p.EmotionalHistory {
		out.EmotionalHistory[i] = s.Clone()
	}
	return &out
}

// Store persists profiles. Reads and writes are whole-value and last writer
// wins per user id.
type Store interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Load(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]string, error)
}
