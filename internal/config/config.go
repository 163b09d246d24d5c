// Package config loads Buddy's process-wide settings from
// ~/.buddy/config.yaml with BUDDY_* environment overrides. The loaded value is
// validated once at startup and converted into per-component option records;
// nothing mutates it afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/pattern"
	"github.com/normanking/buddy/internal/profile"
)

// ErrInputRange marks a configuration value outside its declared bounds.
var ErrInputRange = errors.New("configuration value out of range")

// EnvPrefix is prepended to environment overrides, e.g.
// BUDDY_WELLNESS_SUSTAINED_DISTRESS_COUNT.
const EnvPrefix = "BUDDY"

// MaxWindow bounds wellness.pattern_tracking_window.
const MaxWindow = 1000

// Config holds all application configuration.
type Config struct {
	Wellness WellnessConfig `mapstructure:"wellness" yaml:"wellness"`
	Data     DataConfig     `mapstructure:"data" yaml:"data"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Speech   SpeechConfig   `mapstructure:"speech" yaml:"speech"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// WellnessConfig carries the detection thresholds and alert policy.
type WellnessConfig struct {
	// PatternTrackingWindow is the capacity of the sliding windows (W).
	PatternTrackingWindow int `mapstructure:"pattern_tracking_window" yaml:"pattern_tracking_window"`

	// SustainedDistressCount is the consecutive-distress threshold (D).
	SustainedDistressCount int `mapstructure:"sustained_distress_count" yaml:"sustained_distress_count"`

	// AlertSeverityLevels is the ordered ladder INFO..CRITICAL.
	AlertSeverityLevels []string `mapstructure:"alert_severity_levels" yaml:"alert_severity_levels"`

	// EscalationIntervals is the dwell in minutes per severity; 0 is terminal.
	EscalationIntervals map[string]int `mapstructure:"escalation_intervals" yaml:"escalation_intervals"`

	MaxAlertLogEntries   int  `mapstructure:"max_alert_log_entries" yaml:"max_alert_log_entries"`
	EmotionalHistoryDays int  `mapstructure:"emotional_history_days" yaml:"emotional_history_days"`
	EnableGuardianAlerts bool `mapstructure:"enable_guardian_alerts" yaml:"enable_guardian_alerts"`

	SupportedLanguages []string `mapstructure:"supported_languages" yaml:"supported_languages"`
	DefaultLanguage    string   `mapstructure:"default_language" yaml:"default_language"`
}

// DataConfig locates the profile store.
type DataConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Passphrase seals stored profiles when set. Prefer BUDDY_DATA_PASSPHRASE
	// over writing it to the file.
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase"`
}

// LoggingConfig controls the zerolog setup.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  bool   `mapstructure:"file" yaml:"file"`
	Dir   string `mapstructure:"dir" yaml:"dir"`
}

// SpeechConfig selects the text-to-speech collaborator.
type SpeechConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Provider       string `mapstructure:"provider" yaml:"provider"` // "none" or "polly"
	Region         string `mapstructure:"region" yaml:"region"`
	Voice          string `mapstructure:"voice" yaml:"voice"`
	Engine         string `mapstructure:"engine" yaml:"engine"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ServerConfig configures `buddy serve`.
type ServerConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	EscalationSchedule string `mapstructure:"escalation_schedule" yaml:"escalation_schedule"`
}

// Default returns a Config with the stock thresholds.
func Default() *Config {
	return &Config{
		Wellness: WellnessConfig{
			PatternTrackingWindow:  pattern.DefaultWindow,
			SustainedDistressCount: pattern.DefaultSustainedCount,
			AlertSeverityLevels:    ladderNames(),
			EscalationIntervals: map[string]int{
				"info":     60,
				"low":      30,
				"medium":   15,
				"high":     5,
				"critical": 0,
			},
			MaxAlertLogEntries:   alert.DefaultMaxLogEntries,
			EmotionalHistoryDays: profile.DefaultHistoryDays,
			EnableGuardianAlerts: true,
			SupportedLanguages:   []string{"english", "tamil", "bilingual"},
			DefaultLanguage:      "english",
		},
		Data: DataConfig{
			Dir: "~/.buddy/data",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  true,
			Dir:   "~/.buddy/logs",
		},
		Speech: SpeechConfig{
			Enabled:        false,
			Provider:       "none",
			Region:         "ap-south-1",
			Voice:          "Kajal",
			Engine:         "neural",
			TimeoutSeconds: 10,
		},
		Server: ServerConfig{
			Addr:               "127.0.0.1:8787",
			EscalationSchedule: "@every 1m",
		},
	}
}

func ladderNames() []string {
	names := make([]string, len(alert.Ladder))
	for i, s := range alert.Ladder {
		names[i] = s.String()
	}
	return names
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOAD / SAVE
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultPath is where Load looks for the config file.
func DefaultPath() string {
	return expandPath("~/.buddy/config.yaml")
}

// Load reads the config from ~/.buddy/config.yaml, creating it with defaults
// on first run.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// LoadFromPath reads the config from path, creating it with defaults when
// missing. Environment variables with the BUDDY_ prefix override file values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: BUDDY_WELLNESS_PATTERN_TRACKING_WINDOW=20
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Data.Dir = expandPath(cfg.Data.Dir)
	cfg.Logging.Dir = expandPath(cfg.Logging.Dir)

	return cfg, nil
}

// SaveToPath writes the config as YAML.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{expandPath(c.Data.Dir)}
	if c.Logging.File {
		dirs = append(dirs, expandPath(c.Logging.Dir))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Data.Passphrase != "" {
		out.Data.Passphrase = "********"
	}
	return &out
}

// YAML renders the config the way it is stored.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// ═══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ═══════════════════════════════════════════════════════════════════════════════

// Validate checks every option against its bounds. All failures wrap
// ErrInputRange.
func (c *Config) Validate() error {
	w := c.Wellness

	if w.PatternTrackingWindow < 1 || w.PatternTrackingWindow > MaxWindow {
		return rangeErr("wellness.pattern_tracking_window must be between 1 and %d, got %d", MaxWindow, w.PatternTrackingWindow)
	}
	if w.SustainedDistressCount < 1 || w.SustainedDistressCount > w.PatternTrackingWindow {
		return rangeErr("wellness.sustained_distress_count must be between 1 and the window (%d), got %d",
			w.PatternTrackingWindow, w.SustainedDistressCount)
	}

	want := ladderNames()
	if len(w.AlertSeverityLevels) != len(want) {
		return rangeErr("wellness.alert_severity_levels must be %s", strings.Join(want, ", "))
	}
	for i, name := range w.AlertSeverityLevels {
		if !strings.EqualFold(strings.TrimSpace(name), want[i]) {
			return rangeErr("wellness.alert_severity_levels must be %s", strings.Join(want, ", "))
		}
	}

	for key, minutes := range w.EscalationIntervals {
		sev, err := alert.ParseSeverity(key)
		if err != nil {
			return rangeErr("wellness.escalation_intervals: unknown level '%s'", key)
		}
		if minutes < 0 {
			return rangeErr("wellness.escalation_intervals.%s cannot be negative", strings.ToLower(key))
		}
		if sev == alert.SeverityCritical && minutes != 0 {
			return rangeErr("wellness.escalation_intervals.critical must be 0, got %d", minutes)
		}
	}

	if w.MaxAlertLogEntries < 1 {
		return rangeErr("wellness.max_alert_log_entries must be at least 1, got %d", w.MaxAlertLogEntries)
	}
	if w.EmotionalHistoryDays < 1 {
		return rangeErr("wellness.emotional_history_days must be at least 1, got %d", w.EmotionalHistoryDays)
	}

	if len(w.SupportedLanguages) == 0 {
		return rangeErr("wellness.supported_languages cannot be empty")
	}
	supported := make(map[profile.Language]bool)
	for _, name := range w.SupportedLanguages {
		lang, ok := profile.ParseLanguage(name)
		if !ok {
			return rangeErr("wellness.supported_languages: unknown language '%s'", name)
		}
		supported[lang] = true
	}
	def, ok := profile.ParseLanguage(w.DefaultLanguage)
	if !ok || !supported[def] {
		return rangeErr("wellness.default_language '%s' is not a supported language", w.DefaultLanguage)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return rangeErr("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	switch strings.ToLower(c.Speech.Provider) {
	case "", "none", "polly":
	default:
		return rangeErr("invalid speech provider '%s', must be 'none' or 'polly'", c.Speech.Provider)
	}
	if c.Speech.TimeoutSeconds < 0 {
		return rangeErr("speech.timeout_seconds cannot be negative")
	}

	if strings.TrimSpace(c.Server.EscalationSchedule) == "" {
		return rangeErr("server.escalation_schedule cannot be empty")
	}

	return nil
}

func rangeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInputRange, fmt.Sprintf(format, args...))
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMPONENT OPTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// PatternOptions converts the wellness section for pattern.NewTracker.
func (c *Config) PatternOptions() pattern.Options {
	return pattern.Options{
		Window:         c.Wellness.PatternTrackingWindow,
		SustainedCount: c.Wellness.SustainedDistressCount,
	}
}

// AlertConfig converts the wellness section for alert.NewEngine. Levels
// missing from escalation_intervals keep their default dwell.
func (c *Config) AlertConfig() alert.Config {
	intervals := alert.DefaultIntervals()
	for key, minutes := range c.Wellness.EscalationIntervals {
		if sev, err := alert.ParseSeverity(key); err == nil {
			intervals[sev] = time.Duration(minutes) * time.Minute
		}
	}
	return alert.Config{
		Intervals:            intervals,
		MaxLogEntries:        c.Wellness.MaxAlertLogEntries,
		EnableGuardianAlerts: c.Wellness.EnableGuardianAlerts,
	}
}

// DefaultLanguage returns the parsed default language, falling back to
// English.
func (c *Config) DefaultLanguage() profile.Language {
	if lang, ok := profile.ParseLanguage(c.Wellness.DefaultLanguage); ok {
		return lang
	}
	return profile.LanguageEnglish
}

// Languages returns the parsed supported languages in sorted order.
func (c *Config) Languages() []profile.Language {
	var out []profile.Language
	for _, name := range c.Wellness.SupportedLanguages {
		if lang, ok := profile.ParseLanguage(name); ok {
			out = append(out, lang)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SpeechTimeout is the per-request synthesis deadline.
func (c *Config) SpeechTimeout() time.Duration {
	return time.Duration(c.Speech.TimeoutSeconds) * time.Second
}
