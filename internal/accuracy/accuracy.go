// Package accuracy scores a hypothesis transcript against a trusted
// reference using edit-distance metrics. This is a separate metric family
// from the comparator's character-set similarity: edit distance measures
// transcription fidelity against a known-good text, while the comparator
// judges agreement between two untrusted candidates.
package accuracy

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/attestra/internal/compare"
)

// Overall score weights. Word accuracy dominates, with character accuracy
// and string similarity sharing the rest; a high WER then scales the result
// down.
const (
	wordWeight       = 0.4
	charWeight       = 0.3
	similarityWeight = 0.3
)

// Metrics are the edit-distance accuracy figures for one reference/
// hypothesis pair. All values are in [0,1].
type Metrics struct {
	// WordAccuracy is 1 - WordErrorRate, floored at 0.
	WordAccuracy float64 `json:"wordAccuracy"`
	// WordErrorRate is the word-level edit distance over the reference
	// word count. It can exceed 1 for hypotheses much longer than the
	// reference.
	WordErrorRate float64 `json:"wordErrorRate"`
	// CharacterAccuracy is 1 - CharacterErrorRate, floored at 0.
	CharacterAccuracy float64 `json:"characterAccuracy"`
	// CharacterErrorRate is the character-level edit distance over the
	// longer text's length.
	CharacterErrorRate float64 `json:"characterErrorRate"`
	// SimilarityRatio is the Jaro-Winkler similarity of the two texts.
	SimilarityRatio float64 `json:"similarityRatio"`
	// Overall is the weighted combination of the above, penalized by WER.
	Overall float64 `json:"overall"`
}

// Assess computes accuracy metrics for a hypothesis transcript against a
// reference. Both texts are normalized (lowercase, no punctuation, single
// spaces) before scoring. Pure and deterministic.
func Assess(reference, hypothesis string) Metrics {
	ref := compare.Normalize(reference)
	hyp := compare.Normalize(hypothesis)

	if ref == "" && hyp == "" {
		return Metrics{
			WordAccuracy:      1,
			CharacterAccuracy: 1,
			SimilarityRatio:   1,
			Overall:           1,
		}
	}

	var m Metrics
	m.WordErrorRate = wordErrorRate(strings.Fields(ref), strings.Fields(hyp))
	m.WordAccuracy = floored(1 - m.WordErrorRate)
	m.CharacterErrorRate = charErrorRate(ref, hyp)
	m.CharacterAccuracy = floored(1 - m.CharacterErrorRate)
	m.SimilarityRatio = matchr.JaroWinkler(ref, hyp, false)

	m.Overall = m.WordAccuracy*wordWeight +
		m.CharacterAccuracy*charWeight +
		m.SimilarityRatio*similarityWeight
	m.Overall *= 1 - capped(m.WordErrorRate)
	return m
}

// wordErrorRate is the classic WER: word-level Levenshtein distance divided
// by the reference word count.
func wordErrorRate(ref, hyp []string) float64 {
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}

	prev := make([]int, len(hyp)+1)
	curr := make([]int, len(hyp)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ref); i++ {
		curr[0] = i
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = 1 + min(prev[j-1], min(prev[j], curr[j-1]))
			}
		}
		prev, curr = curr, prev
	}
	return float64(prev[len(hyp)]) / float64(len(ref))
}

// charErrorRate is the character-level Levenshtein distance divided by the
// longer text's rune count.
func charErrorRate(ref, hyp string) float64 {
	longest := len([]rune(ref))
	if l := len([]rune(hyp)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return float64(matchr.Levenshtein(ref, hyp)) / float64(longest)
}

func floored(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func capped(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
