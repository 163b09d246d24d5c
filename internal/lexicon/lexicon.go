// Package lexicon holds the keyword tables shared by the language detector and
// the emotion classifier. The tables are embedded as YAML, parsed once, and
// never mutated afterwards; callers only see match results, never the backing
// slices.
package lexicon

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/normanking/buddy/pkg/types"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Category names an English keyword list that is not a fine emotion.
type Category string

const (
	CategoryCrisis   Category = "crisis"
	CategoryDistress Category = "distress"
	CategoryAbuse    Category = "abuse"
)

type scriptFile struct {
	Markers  []string            `yaml:"markers"`
	Emotions map[string][]string `yaml:"emotions"`
}

type lexiconFile struct {
	English struct {
		Crisis   []string            `yaml:"crisis"`
		Distress []string            `yaml:"distress"`
		Abuse    []string            `yaml:"abuse"`
		Emotions map[string][]string `yaml:"emotions"`
	} `yaml:"english"`
	Tamil    scriptFile `yaml:"tamil"`
	Tanglish scriptFile `yaml:"tanglish"`
}

// Lexicon is an immutable set of keyword tables.
type Lexicon struct {
	categories map[Category][]string
	english    map[types.FineEmotion][]string
	scripts    map[types.Script]map[types.FineEmotion][]string

	// tanglishTerms is the detection set: markers plus every Tanglish emotion keyword.
	tanglishTerms []string
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the process-wide lexicon built from the embedded tables.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Parse(defaultLexicon)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded tables are invalid: %v", err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// Parse builds a Lexicon from YAML. English lists must be disjoint.
func Parse(data []byte) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}

	lex := &Lexicon{
		categories: map[Category][]string{
			CategoryCrisis:   normalizeList(f.English.Crisis),
			CategoryDistress: normalizeList(f.English.Distress),
			CategoryAbuse:    normalizeList(f.English.Abuse),
		},
		english: make(map[types.FineEmotion][]string),
		scripts: make(map[types.Script]map[types.FineEmotion][]string),
	}

	english, err := emotionTable(f.English.Emotions, types.KeywordEmotions)
	if err != nil {
		return nil, fmt.Errorf("english emotions: %w", err)
	}
	lex.english = english

	scriptEmotions := append([]types.FineEmotion{types.EmotionCrisis}, types.KeywordEmotions...)
	tamil, err := emotionTable(f.Tamil.Emotions, scriptEmotions)
	if err != nil {
		return nil, fmt.Errorf("tamil emotions: %w", err)
	}
	lex.scripts[types.ScriptTamil] = tamil

	tanglish, err := emotionTable(f.Tanglish.Emotions, scriptEmotions)
	if err != nil {
		return nil, fmt.Errorf("tanglish emotions: %w", err)
	}
	lex.scripts[types.ScriptTanglish] = tanglish

	lex.tanglishTerms = normalizeList(f.Tanglish.Markers)
	for _, e := range scriptEmotions {
		lex.tanglishTerms = append(lex.tanglishTerms, tanglish[e]...)
	}

	if err := lex.checkDisjoint(); err != nil {
		return nil, err
	}
	if err := lex.checkTanglish(); err != nil {
		return nil, err
	}
	return lex, nil
}

func emotionTable(raw map[string][]string, allowed []types.FineEmotion) (map[types.FineEmotion][]string, error) {
	table := make(map[types.FineEmotion][]string, len(allowed))
	for name, words := range raw {
		e := types.FineEmotion(strings.ToLower(strings.TrimSpace(name)))
		if !containsEmotion(allowed, e) {
			return nil, fmt.Errorf("unexpected emotion bucket %q", name)
		}
		table[e] = normalizeList(words)
	}
	return table, nil
}

// checkDisjoint enforces that an English term belongs to exactly one list.
func (l *Lexicon) checkDisjoint() error {
	owner := make(map[string]string)
	claim := func(list string, words []string) error {
		for _, w := range words {
			if prev, ok := owner[w]; ok && prev != list {
				return fmt.Errorf("term %q appears in both %s and %s", w, prev, list)
			}
			owner[w] = list
		}
		return nil
	}
	for _, c := range []Category{CategoryCrisis, CategoryDistress, CategoryAbuse} {
		if err := claim(string(c), l.categories[c]); err != nil {
			return err
		}
	}
	for _, e := range types.KeywordEmotions {
		if err := claim(string(e), l.english[e]); err != nil {
			return err
		}
	}
	return nil
}

// checkTanglish rejects Tanglish detection terms that are also English
// keywords. Such a term would flip a plain English sentence to Tanglish and
// let the script override replace its English emotion.
func (l *Lexicon) checkTanglish() error {
	english := make(map[string]string)
	for _, c := range []Category{CategoryCrisis, CategoryDistress, CategoryAbuse} {
		for _, w := range l.categories[c] {
			english[w] = string(c)
		}
	}
	for _, e := range types.KeywordEmotions {
		for _, w := range l.english[e] {
			english[w] = string(e)
		}
	}
	for _, t := range l.tanglishTerms {
		if list, ok := english[t]; ok {
			return fmt.Errorf("tanglish term %q is an english %s keyword", t, list)
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// MATCHING
// ═══════════════════════════════════════════════════════════════════════════════

// Match returns the terms of an English category found in lowered, in table order.
func (l *Lexicon) Match(c Category, lowered string) []string {
	return matchSubstrings(l.categories[c], lowered)
}

// MatchEmotion returns the English keywords of e found in lowered.
func (l *Lexicon) MatchEmotion(e types.FineEmotion, lowered string) []string {
	return matchSubstrings(l.english[e], lowered)
}

// MatchScriptEmotion returns the script-specific keywords of e found in text.
// Tamil script is matched by substring; Tanglish on word boundaries.
func (l *Lexicon) MatchScriptEmotion(script types.Script, e types.FineEmotion, text string) []string {
	table, ok := l.scripts[script]
	if !ok {
		return nil
	}
	if script == types.ScriptTanglish {
		return matchWords(table[e], Words(text))
	}
	return matchSubstrings(table[e], strings.ToLower(text))
}

// HasTanglish reports whether any Tanglish detection term occurs in text.
func (l *Lexicon) HasTanglish(text string) bool {
	return len(matchWords(l.tanglishTerms, Words(text))) > 0
}

// Words lowercases text and joins its letter runs with single spaces, so that
// word-boundary matching becomes a padded substring test.
func Words(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func matchSubstrings(terms []string, lowered string) []string {
	if lowered == "" {
		return nil
	}
	var out []string
	for _, t := range terms {
		if strings.Contains(lowered, t) {
			out = append(out, t)
		}
	}
	return out
}

func matchWords(terms []string, words string) []string {
	if words == "" {
		return nil
	}
	padded := " " + words + " "
	var out []string
	for _, t := range terms {
		if strings.Contains(padded, " "+t+" ") {
			out = append(out, t)
		}
	}
	return out
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, w := range in {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func containsEmotion(list []types.FineEmotion, e types.FineEmotion) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}
