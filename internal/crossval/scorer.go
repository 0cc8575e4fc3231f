package crossval

import (
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/attestra/internal/compare"
)

// Scorer assigns confidence scores to candidate words and segments of a
// single transcript. Implementations must be pure and deterministic.
type Scorer interface {
	// ScoreWord returns a confidence in [0,1] for one candidate word.
	ScoreWord(word string) float64
	// ScoreSegment returns a confidence in [0,1] for one candidate segment.
	ScoreSegment(segment string) float64
}

// referenceScorer scores candidates against an independent reference
// decoding of the audio.
type referenceScorer struct {
	reference string
	tokens    map[string]bool
}

var _ Scorer = (*referenceScorer)(nil)

// newReferenceScorer builds a scorer over the given reference text. The
// reference is normalized once up front.
func newReferenceScorer(reference string) *referenceScorer {
	norm := compare.Normalize(reference)
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(norm) {
		tokens[t] = true
	}
	return &referenceScorer{reference: norm, tokens: tokens}
}

// ScoreWord returns 1.0 for a literal substring of the reference, 0.8 when
// any reference token contains or is contained by the word, and otherwise a
// character-set Jaccard similarity between the word and the full reference.
func (s *referenceScorer) ScoreWord(word string) float64 {
	w := compare.Normalize(word)
	if w == "" || s.reference == "" {
		return 0
	}
	if strings.Contains(s.reference, w) {
		return 1.0
	}
	for t := range s.tokens {
		if strings.Contains(t, w) || strings.Contains(w, t) {
			return 0.8
		}
	}
	return compare.CharJaccard(w, s.reference)
}

// ScoreSegment returns 1.0 for a literal substring of the reference, and
// otherwise the token-set Jaccard overlap between the segment and the
// reference decoding.
func (s *referenceScorer) ScoreSegment(segment string) float64 {
	seg := compare.Normalize(segment)
	words := strings.Fields(seg)
	if len(words) == 0 || len(s.tokens) == 0 {
		return 0
	}
	if strings.Contains(s.reference, seg) {
		return 1.0
	}
	hits := 0
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		if s.tokens[w] {
			hits++
		}
	}
	union := len(seen) + len(s.tokens) - hits
	if union == 0 {
		return 0
	}
	return float64(hits) / float64(union)
}

// heuristicScorer is the fallback when no reference recognizer is available.
// Confidence grows with candidate length, capped at 1.0, so downstream logic
// never has to special-case the missing-model path.
type heuristicScorer struct{}

var _ Scorer = heuristicScorer{}

// NewHeuristicScorer returns the length-proportional fallback scorer.
func NewHeuristicScorer() Scorer {
	return heuristicScorer{}
}

func (heuristicScorer) ScoreWord(word string) float64 {
	return capped(float64(utf8.RuneCountInString(word)) / 10)
}

func (heuristicScorer) ScoreSegment(segment string) float64 {
	return capped(float64(utf8.RuneCountInString(segment)) / 100)
}

func capped(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
