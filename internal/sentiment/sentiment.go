// Package sentiment provides the polarity/subjectivity capability consumed by
// the emotion classifier. The Lexical analyzer is deterministic: a word
// lexicon with negation and intensifier handling, averaged over the
// sentiment-bearing words of the input.
package sentiment

import (
	"strings"
	"unicode"
)

// Analyzer scores free text.
// Polarity is in [-1, 1]; Subjectivity is in [0, 1].
type Analyzer interface {
	Polarity(text string) float64
	Subjectivity(text string) float64
}

// Analyze runs a against text and clamps the results to their declared ranges.
// A nil analyzer yields (0, 0), which is the degraded path when no sentiment
// capability is configured.
func Analyze(a Analyzer, text string) (polarity, subjectivity float64) {
	if a == nil {
		return 0, 0
	}
	return clamp(a.Polarity(text), -1, 1), clamp(a.Subjectivity(text), 0, 1)
}

// Stub returns fixed scores. Used by tests to pin the polarity signal.
type Stub struct {
	P float64
	S float64
}

// Polarity implements Analyzer.
func (s Stub) Polarity(string) float64 { return s.P }

// Subjectivity implements Analyzer.
func (s Stub) Subjectivity(string) float64 { return s.S }

// ═══════════════════════════════════════════════════════════════════════════════
// LEXICAL ANALYZER
// ═══════════════════════════════════════════════════════════════════════════════

type wordScore struct {
	polarity     float64
	subjectivity float64
}

// Lexical is the built-in analyzer.
type Lexical struct {
	words        map[string]wordScore
	intensifiers map[string]float64
	negators     map[string]bool
}

// NewLexical returns an analyzer over the built-in word lexicon.
func NewLexical() *Lexical {
	return &Lexical{
		words:        builtinWords,
		intensifiers: builtinIntensifiers,
		negators:     builtinNegators,
	}
}

// Polarity implements Analyzer.
func (l *Lexical) Polarity(text string) float64 {
	p, _ := l.score(text)
	return p
}

// Subjectivity implements Analyzer.
func (l *Lexical) Subjectivity(text string) float64 {
	_, s := l.score(text)
	return s
}

// Scores returns both values from a single pass.
func (l *Lexical) Scores(text string) (polarity, subjectivity float64) {
	return l.score(text)
}

func (l *Lexical) score(text string) (float64, float64) {
	tokens := tokenize(text)
	var polSum, subSum float64
	n := 0

	for i, tok := range tokens {
		ws, ok := l.words[tok]
		if !ok {
			continue
		}
		pol, sub := ws.polarity, ws.subjectivity

		if i > 0 {
			if m, ok := l.intensifiers[tokens[i-1]]; ok {
				pol *= m
				sub *= m
			}
		}
		// a negator up to three tokens back flips and dampens the word
		for j := i - 1; j >= 0 && j >= i-3; j-- {
			if l.negators[tokens[j]] {
				pol *= -0.5
				break
			}
		}

		polSum += clamp(pol, -1, 1)
		subSum += clamp(sub, 0, 1)
		n++
	}

	if n == 0 {
		return 0, 0
	}
	return clamp(polSum/float64(n), -1, 1), clamp(subSum/float64(n), 0, 1)
}

func tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
