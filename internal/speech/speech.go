// Package speech holds the optional voice collaborators. Both directions
// degrade to a no-op: synthesis returns nil audio and transcription returns
// an empty string whenever the backing service is absent or fails.
package speech

import (
	"context"
	"strings"
)

// Language codes accepted by TTS.
const (
	LangEnglish = "en"
	LangTamil   = "ta"
)

// Locales accepted by STT.
const (
	LocaleEnglishIndia = "en-IN"
	LocaleTamilIndia   = "ta-IN"
)

// TTS turns reply text into audio. A nil result means no audio.
type TTS interface {
	Synthesize(ctx context.Context, text, lang string) []byte
}

// STT turns recorded audio into text. An empty result means nothing usable.
type STT interface {
	Transcribe(ctx context.Context, audio []byte, locale string) string
}

// Nop is the degraded collaborator for both directions.
type Nop struct{}

// Synthesize implements TTS.
func (Nop) Synthesize(context.Context, string, string) []byte { return nil }

// Transcribe implements STT.
func (Nop) Transcribe(context.Context, []byte, string) string { return "" }

var (
	_ TTS = Nop{}
	_ STT = Nop{}
)

// Select returns the configured TTS, or Nop when speech is disabled or the
// provider is unknown.
func Select(enabled bool, provider string, cfg PollyConfig) TTS {
	if !enabled {
		return Nop{}
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "polly":
		return NewPolly(cfg)
	default:
		return Nop{}
	}
}

// LangForText picks the TTS language for a reply: text containing Tamil
// script is voiced as Tamil.
func LangForText(text string) string {
	for _, r := range text {
		if r >= 0x0B80 && r <= 0x0BFF {
			return LangTamil
		}
	}
	return LangEnglish
}
