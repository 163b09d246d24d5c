package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/bus"
	"github.com/normanking/buddy/internal/data"
	"github.com/normanking/buddy/internal/orchestrator"
	"github.com/normanking/buddy/internal/speech"
)

// app bundles the long-lived components a command needs.
type app struct {
	store     *data.Store
	bus       *bus.Bus
	companion *orchestrator.Companion
	tts       speech.TTS
}

// initializeApp validates the configuration, opens the profile store and
// builds the companion. The returned cleanup closes everything in reverse.
func initializeApp() (*app, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, fmt.Errorf("failed to create directories: %w", err)
	}

	log.Debug().Str("dir", cfg.Data.Dir).Msg("opening profile store")
	store, err := data.NewDB(cfg.Data.Dir, data.Options{Passphrase: cfg.Data.Passphrase})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open profile store: %w", err)
	}

	b := bus.NewBus()
	companion := orchestrator.New(&orchestrator.Config{
		Options: orchestrator.Options{
			Pattern:         cfg.PatternOptions(),
			Alert:           cfg.AlertConfig(),
			HistoryDays:     cfg.Wellness.EmotionalHistoryDays,
			DefaultLanguage: cfg.DefaultLanguage(),
		},
		Store: store,
		Bus:   b,
	})

	a := &app{
		store:     store,
		bus:       b,
		companion: companion,
		tts:       speech.Select(cfg.Speech.Enabled, cfg.Speech.Provider, pollyConfig()),
	}
	cleanup := func() {
		if err := b.Close(); err != nil {
			log.Debug().Err(err).Msg("bus close")
		}
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close profile store")
		}
	}
	return a, cleanup, nil
}

func pollyConfig() speech.PollyConfig {
	return speech.PollyConfig{
		Region:  cfg.Speech.Region,
		VoiceID: cfg.Speech.Voice,
		Engine:  cfg.Speech.Engine,
		Timeout: cfg.SpeechTimeout(),
	}
}
