// Package emotion converts an utterance into a structured emotion Record.
//
// Classification combines a lexical polarity signal with keyword lookups
// against the shared lexicon (crisis, distress, abuse and per-emotion lists)
// and a script-specific override for Tamil and Tanglish input.
package emotion

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/clock"
	"github.com/normanking/buddy/internal/language"
	"github.com/normanking/buddy/internal/lexicon"
	"github.com/normanking/buddy/internal/sentiment"
	"github.com/normanking/buddy/pkg/types"
)

// maxExplainedKeywords bounds the keyword list quoted in an explanation.
const maxExplainedKeywords = 5

// SeverityWeights resolves ties between fine-emotion keyword buckets.
var SeverityWeights = map[types.FineEmotion]float64{
	types.EmotionCrisis:  1.00,
	types.EmotionSadness: 0.65,
	types.EmotionFear:    0.60,
	types.EmotionAnxiety: 0.55,
	types.EmotionAnger:   0.45,
	types.EmotionNeutral: 0.10,
	types.EmotionJoy:     0.00,
}

// Classifier is safe for concurrent use; it holds only read-only tables.
type Classifier struct {
	lex      *lexicon.Lexicon
	detector *language.Detector
	analyzer sentiment.Analyzer
	clock    clock.Clock
}

// NewClassifier builds a classifier. A nil lexicon selects lexicon.Default()
// and a nil clock selects the system clock. A nil analyzer is allowed and
// yields zero polarity for every input.
func NewClassifier(analyzer sentiment.Analyzer, lex *lexicon.Lexicon, clk clock.Clock) *Classifier {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Classifier{
		lex:      lex,
		detector: language.NewDetector(lex),
		analyzer: analyzer,
		clock:    clock.Or(clk),
	}
}

// Classify produces a Record for text.
func (c *Classifier) Classify(text string) Record {
	normalized := strings.ReplaceAll(text, "’", "'")
	lowered := strings.ToLower(normalized)

	polarity, subjectivity := sentiment.Analyze(c.analyzer, lowered)

	rec := Record{
		Polarity:                polarity,
		Subjectivity:            subjectivity,
		MatchedCrisisKeywords:   orEmpty(c.lex.Match(lexicon.CategoryCrisis, lowered)),
		MatchedDistressKeywords: orEmpty(c.lex.Match(lexicon.CategoryDistress, lowered)),
		MatchedAbuseKeywords:    orEmpty(c.lex.Match(lexicon.CategoryAbuse, lowered)),
		EmotionScores:           make(map[types.FineEmotion]int, len(types.FineEmotions)),
		Timestamp:               c.clock.Now(),
	}
	rec.HasAbuseIndicators = len(rec.MatchedAbuseKeywords) > 0
	rec.IsCrisis = len(rec.MatchedCrisisKeywords) > 0

	for _, e := range types.FineEmotions {
		rec.EmotionScores[e] = 0
	}
	rec.EmotionScores[types.EmotionCrisis] = len(rec.MatchedCrisisKeywords)

	var emotionKeywords []string
	for _, e := range types.KeywordEmotions {
		hits := c.lex.MatchEmotion(e, lowered)
		rec.EmotionScores[e] = len(hits)
		emotionKeywords = append(emotionKeywords, hits...)
	}

	rec.DetectedScript = c.detector.DetectScript(normalized)
	scriptHits := c.detector.ScriptCounts(normalized, rec.DetectedScript)
	for _, e := range types.SeverityOrder {
		hits := scriptHits[e]
		rec.EmotionScores[e] += len(hits)
		emotionKeywords = append(emotionKeywords, hits...)
	}

	rec.CoarseEmotion, rec.CoarseSeverity = coarseFromPolarity(polarity)
	if n := len(rec.MatchedDistressKeywords); n > 0 {
		if rec.CoarseEmotion == types.CoarsePositive || rec.CoarseEmotion == types.CoarseNeutral {
			rec.CoarseEmotion = types.CoarseNegative
		}
		want := types.SeverityMedium
		if n > 2 {
			want = types.SeverityHigh
		}
		if want.Rank() > rec.CoarseSeverity.Rank() {
			rec.CoarseSeverity = want
		}
	}

	rec.FineEmotion = fineFromScores(rec.EmotionScores, polarity)

	if !rec.IsCrisis {
		if e, ok := c.detector.MatchScriptEmotion(normalized, rec.DetectedScript); ok {
			rec.FineEmotion = e
			rec.IsCrisis = e == types.EmotionCrisis
		}
	}
	if rec.IsCrisis {
		rec.FineEmotion = types.EmotionCrisis
		rec.CoarseEmotion = types.CoarseDistress
		rec.CoarseSeverity = types.SeverityHigh
	}

	rec.Confidence = confidence(rec.EmotionScores, polarity)
	rec.Explanation = explain(rec, emotionKeywords)

	log.Debug().
		Str("fine", string(rec.FineEmotion)).
		Str("coarse", string(rec.CoarseEmotion)).
		Str("script", string(rec.DetectedScript)).
		Float64("polarity", rec.Polarity).
		Bool("crisis", rec.IsCrisis).
		Msg("classified message")

	return rec
}

// coarseFromPolarity applies the polarity thresholds. Exactly -0.1 is neutral.
func coarseFromPolarity(p float64) (types.CoarseEmotion, types.CoarseSeverity) {
	switch {
	case p > 0.3:
		return types.CoarsePositive, types.SeverityLow
	case p >= -0.1:
		return types.CoarseNeutral, types.SeverityLow
	case p > -0.5:
		return types.CoarseNegative, types.SeverityMedium
	default:
		return types.CoarseDistress, types.SeverityHigh
	}
}

// fineFromScores picks the max-count keyword bucket, breaking ties by
// SeverityWeights, or falls back to polarity bands when nothing matched.
func fineFromScores(scores map[types.FineEmotion]int, polarity float64) types.FineEmotion {
	best, bestCount := types.EmotionNeutral, 0
	for _, e := range types.KeywordEmotions {
		n := scores[e]
		if n == 0 {
			continue
		}
		if n > bestCount || (n == bestCount && SeverityWeights[e] > SeverityWeights[best]) {
			best, bestCount = e, n
		}
	}
	if bestCount > 0 {
		return best
	}

	switch {
	case polarity > 0.2:
		return types.EmotionJoy
	case polarity >= -0.1:
		return types.EmotionNeutral
	default:
		return types.EmotionSadness
	}
}

// confidence distributes unit mass over the seven fine emotions.
func confidence(scores map[types.FineEmotion]int, polarity float64) map[types.FineEmotion]float64 {
	conf := make(map[types.FineEmotion]float64, len(types.FineEmotions))
	for _, e := range types.FineEmotions {
		conf[e] = 0
	}

	total := 0
	for _, n := range scores {
		total += n
	}
	if total > 0 {
		for e, n := range scores {
			conf[e.Normalize()] += float64(n) / float64(total)
		}
		return conf
	}

	a := math.Min(1, math.Abs(polarity))
	switch {
	case polarity > 0.1:
		conf[types.EmotionJoy] = a
		conf[types.EmotionNeutral] = 1 - a
	case polarity < -0.1:
		conf[types.EmotionNeutral] = 1 - a
		conf[types.EmotionSadness] = a * 0.50
		conf[types.EmotionFear] = a * 0.25
		conf[types.EmotionAnxiety] = a * 0.25
	default:
		conf[types.EmotionNeutral] = 1
	}
	return conf
}

func explain(rec Record, emotionKeywords []string) string {
	var all []string
	seen := make(map[string]bool)
	for _, group := range [][]string{
		rec.MatchedCrisisKeywords,
		rec.MatchedDistressKeywords,
		rec.MatchedAbuseKeywords,
		emotionKeywords,
	} {
		for _, kw := range group {
			if !seen[kw] {
				seen[kw] = true
				all = append(all, kw)
			}
		}
	}

	if len(all) == 0 {
		return fmt.Sprintf("Detected %s based on overall sentiment (polarity %.2f)", rec.FineEmotion, rec.Polarity)
	}
	if len(all) > maxExplainedKeywords {
		all = all[:maxExplainedKeywords]
	}
	return fmt.Sprintf("Detected %s from keywords: %s", rec.FineEmotion, strings.Join(all, ", "))
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
