// Package language detects the script of an utterance and resolves
// script-specific emotion keywords, so that Tamil and Tanglish input is not
// judged by an English-only sentiment signal.
package language

import (
	"github.com/normanking/buddy/internal/lexicon"
	"github.com/normanking/buddy/pkg/types"
)

// Tamil Unicode block.
const (
	tamilBlockStart = '\u0B80'
	tamilBlockEnd   = '\u0BFF'
)

// Detector classifies scripts against a shared lexicon.
type Detector struct {
	lex *lexicon.Lexicon
}

// NewDetector creates a detector. A nil lexicon selects lexicon.Default().
func NewDetector(lex *lexicon.Lexicon) *Detector {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Detector{lex: lex}
}

// DetectScript returns tamil when any rune lies in the Tamil block, tanglish
// when a romanised Tamil token is present, and english otherwise.
func (d *Detector) DetectScript(text string) types.Script {
	for _, r := range text {
		if r >= tamilBlockStart && r <= tamilBlockEnd {
			return types.ScriptTamil
		}
	}
	if d.lex.HasTanglish(text) {
		return types.ScriptTanglish
	}
	return types.ScriptEnglish
}

// MatchScriptEmotion returns the first emotion, in severity order, whose
// script keyword bucket has a hit. Ties are resolved by order, not by count.
// The second result is false for English or when nothing matched.
func (d *Detector) MatchScriptEmotion(text string, script types.Script) (types.FineEmotion, bool) {
	if script.IsEnglish() {
		return "", false
	}
	for _, e := range types.SeverityOrder {
		if len(d.lex.MatchScriptEmotion(script, e, text)) > 0 {
			return e, true
		}
	}
	return "", false
}

// ScriptCounts returns per-emotion keyword hit counts for a non-English script.
func (d *Detector) ScriptCounts(text string, script types.Script) map[types.FineEmotion][]string {
	if script.IsEnglish() {
		return nil
	}
	hits := make(map[types.FineEmotion][]string)
	for _, e := range types.SeverityOrder {
		if m := d.lex.MatchScriptEmotion(script, e, text); len(m) > 0 {
			hits[e] = m
		}
	}
	return hits
}
