package accuracy

import (
	"math"
	"testing"
)

func almostOne(v float64) bool {
	return math.Abs(v-1) < 1e-9
}

func TestAssessIdentical(t *testing.T) {
	t.Parallel()
	m := Assess("let me sing a story", "let me sing a story")
	if m.WordErrorRate != 0 || m.WordAccuracy != 1 {
		t.Errorf("word metrics = %+v, want perfect", m)
	}
	if m.CharacterErrorRate != 0 || m.CharacterAccuracy != 1 {
		t.Errorf("char metrics = %+v, want perfect", m)
	}
	if m.SimilarityRatio != 1 {
		t.Errorf("SimilarityRatio = %v, want 1", m.SimilarityRatio)
	}
	if !almostOne(m.Overall) {
		t.Errorf("Overall = %v, want 1", m.Overall)
	}
}

func TestAssessNormalizes(t *testing.T) {
	t.Parallel()
	m := Assess("Hello, World!", "hello   world")
	if m.WordErrorRate != 0 {
		t.Errorf("WordErrorRate = %v, want 0 after normalization", m.WordErrorRate)
	}
	if !almostOne(m.Overall) {
		t.Errorf("Overall = %v, want 1", m.Overall)
	}
}

func TestAssessSingleSubstitution(t *testing.T) {
	t.Parallel()
	// One substituted word out of five.
	m := Assess("let me sing a story", "let me sang a story")
	if m.WordErrorRate != 0.2 {
		t.Errorf("WordErrorRate = %v, want 0.2", m.WordErrorRate)
	}
	if m.WordAccuracy != 0.8 {
		t.Errorf("WordAccuracy = %v, want 0.8", m.WordAccuracy)
	}
	if m.CharacterErrorRate <= 0 || m.CharacterErrorRate >= 0.2 {
		t.Errorf("CharacterErrorRate = %v, want small but non-zero", m.CharacterErrorRate)
	}
	if m.Overall <= 0 || m.Overall >= 1 {
		t.Errorf("Overall = %v, want in (0,1)", m.Overall)
	}
}

func TestAssessEmptyInputs(t *testing.T) {
	t.Parallel()
	m := Assess("", "")
	if !almostOne(m.Overall) {
		t.Errorf("Assess(empty, empty).Overall = %v, want 1", m.Overall)
	}

	m = Assess("hello world", "")
	if m.WordErrorRate != 1 || m.WordAccuracy != 0 {
		t.Errorf("empty hypothesis word metrics = %+v", m)
	}
	if m.Overall != 0 {
		t.Errorf("empty hypothesis Overall = %v, want 0 (fully penalized)", m.Overall)
	}

	m = Assess("", "hello world")
	if m.WordErrorRate != 1 {
		t.Errorf("empty reference WordErrorRate = %v, want 1", m.WordErrorRate)
	}
}

func TestWordErrorRateInsertionsAndDeletions(t *testing.T) {
	t.Parallel()
	// Two insertions against a three-word reference.
	if got := wordErrorRate(
		[]string{"a", "b", "c"},
		[]string{"a", "x", "b", "y", "c"},
	); got != 2.0/3.0 {
		t.Errorf("insertion WER = %v, want 2/3", got)
	}
	// One deletion against a four-word reference.
	if got := wordErrorRate(
		[]string{"a", "b", "c", "d"},
		[]string{"a", "c", "d"},
	); got != 0.25 {
		t.Errorf("deletion WER = %v, want 0.25", got)
	}
	// WER can exceed 1 when the hypothesis is much longer.
	if got := wordErrorRate(
		[]string{"a"},
		[]string{"x", "y", "z"},
	); got != 3 {
		t.Errorf("oversize hypothesis WER = %v, want 3", got)
	}
}
