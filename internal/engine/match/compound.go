package match

import (
	"regexp"
	"strings"

	"github.com/intentcore/server/internal/engine/model"
)

// Signal is one indicator that a message holds more than one intent.
type Signal struct {
	Type        string // "conjunction", "multiple_sentences", "category_mix"
	Description string
	Confidence  float64
}

// CompoundResult is the detector's verdict. The detector never emits
// intents itself; a positive result only forces deep-path routing.
type CompoundResult struct {
	IsCompound bool
	Signals    []Signal
	Segments   []string
	Confidence float64
}

// Conjunctions that often join two separate requests.
var conjunctionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\band\s+(?:also|then|I\s+also)\b`),
	regexp.MustCompile(`(?i)\bbut\s+also\b`),
	regexp.MustCompile(`(?i)\balso\s+(?:want|need|would\s+like)\b`),
	regexp.MustCompile(`(?i)\bplus\b`),
	regexp.MustCompile(`(?i)\bas\s+well\s+as\b`),
	regexp.MustCompile(`(?i)\bin\s+addition\b`),
	regexp.MustCompile(`(?i)\bon\s+top\s+of\s+that\b`),
	regexp.MustCompile(`(?i)\bwhile\s+you'?re\s+at\s+it\b`),
}

// Action verbs that mark an intent-bearing clause.
var actionVerbPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(cancel|return|exchange|refund|track|replace|change|update|modify)\b`),
	regexp.MustCompile(`(?i)\b(where\s+is|when\s+will|how\s+do\s+i|can\s+i|i\s+want|i\s+need)\b`),
	regexp.MustCompile(`(?i)\b(check|find|get|send|ship|deliver)\b`),
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+\s+`)

// Clause separators followed by a fresh clause opener.
var clauseSplit = regexp.MustCompile(`(?i)[,;]\s+(and\b|but\b|also\b|i\s)`)

// Signal weights and the minimum per-candidate similarity considered for
// category mixing.
const (
	conjunctionWeight   = 0.70
	multiSentenceWeight = 0.80
	categoryMixWeight   = 0.75
	categoryMixMinScore = 0.50
)

// CompoundDetector flags multi-intent requests from lexical and structural
// signals plus category spread in the match candidates.
type CompoundDetector struct {
	threshold float64
}

func NewCompoundDetector(cfg model.CompoundConfig) *CompoundDetector {
	return &CompoundDetector{threshold: cfg.Threshold}
}

// Detect combines conjunction, multi-clause, and category-mix signals.
// Overall confidence is min(1, sum/2); compound when it reaches the
// threshold.
func (d *CompoundDetector) Detect(text string, candidates []model.MatchCandidate) CompoundResult {
	var signals []Signal

	for _, p := range conjunctionPatterns {
		if p.MatchString(text) {
			signals = append(signals, Signal{
				Type:        "conjunction",
				Description: "compound conjunction: " + p.String(),
				Confidence:  conjunctionWeight,
			})
		}
	}

	segments := SegmentSentences(text)
	if s, ok := detectMultiAction(segments); ok {
		signals = append(signals, s)
	}

	if s, ok := detectCategoryMix(candidates); ok {
		signals = append(signals, s)
	}

	confidence := 0.0
	for _, s := range signals {
		confidence += s.Confidence
	}
	confidence /= 2
	if confidence > 1 {
		confidence = 1
	}

	return CompoundResult{
		IsCompound: confidence >= d.threshold,
		Signals:    signals,
		Segments:   segments,
		Confidence: confidence,
	}
}

// ForcesDeepPath reports whether routing must take the deep path. Any
// positive signal forces it, even when the summed confidence stays under
// the compound threshold and even when the matcher alone would fast-path.
func (r CompoundResult) ForcesDeepPath() bool {
	return len(r.Signals) > 0
}

// SegmentSentences splits the text on sentence boundaries and on clause
// separators that open a new request ("..., and I also...").
func SegmentSentences(text string) []string {
	var segments []string
	for _, sentence := range sentenceBoundary.Split(text, -1) {
		start := 0
		for _, loc := range clauseSplit.FindAllStringSubmatchIndex(sentence, -1) {
			// Cut before the clause opener so it stays with the next segment.
			segments = appendSegment(segments, sentence[start:loc[0]])
			start = loc[2]
		}
		segments = appendSegment(segments, sentence[start:])
	}
	return segments
}

func appendSegment(segments []string, s string) []string {
	s = strings.TrimSpace(s)
	if len(s) > 3 {
		segments = append(segments, s)
	}
	return segments
}

func detectMultiAction(segments []string) (Signal, bool) {
	if len(segments) < 2 {
		return Signal{}, false
	}

	segmentsWithActions := 0
	allActions := make(map[string]bool)
	for _, seg := range segments {
		found := false
		for _, p := range actionVerbPatterns {
			for _, m := range p.FindAllString(strings.ToLower(seg), -1) {
				allActions[m] = true
				found = true
			}
		}
		if found {
			segmentsWithActions++
		}
	}

	if segmentsWithActions >= 2 && len(allActions) >= 2 {
		return Signal{
			Type:        "multiple_sentences",
			Description: "multiple segments with distinct actions",
			Confidence:  multiSentenceWeight,
		}, true
	}
	return Signal{}, false
}

func detectCategoryMix(candidates []model.MatchCandidate) (Signal, bool) {
	if len(candidates) < 2 {
		return Signal{}, false
	}

	categories := make(map[string]bool)
	limit := len(candidates)
	if limit > 3 {
		limit = 3
	}
	for _, c := range candidates[:limit] {
		if c.Similarity >= categoryMixMinScore {
			categories[c.Category()] = true
		}
	}

	if len(categories) >= 2 {
		names := make([]string, 0, len(categories))
		for c := range categories {
			names = append(names, c)
		}
		return Signal{
			Type:        "category_mix",
			Description: "top matches span categories: " + strings.Join(names, ", "),
			Confidence:  categoryMixWeight,
		}, true
	}
	return Signal{}, false
}
