// Package compare implements the dual-pipeline transcript comparator. It is
// pure text analysis: no I/O, no clocks, deterministic for a given input pair.
package compare

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Similarity and match thresholds for the dual-pipeline verdict.
const (
	// matchSimilarity is the minimum character-set Jaccard similarity for
	// two transcripts to be considered a match.
	matchSimilarity = 0.75
	// incorrectPairFloor is the lower bound (inclusive) of word similarity
	// at which two aligned, differing words count as a near-duplicate
	// transcription of the same spoken word.
	incorrectPairFloor = 0.7
	// maxWordCountDelta is the largest tolerated word-count difference for
	// a match.
	maxWordCountDelta = 5
	// substantialWordLen is the minimum length in characters (exclusive) for
	// a word to be reported as missing from the other transcript.
	substantialWordLen = 2
)

// ReasonEmptyInput is the Reason reported when at least one transcript is
// empty.
const ReasonEmptyInput = "one or both transcripts are empty"

// IncorrectPair is a pair of positionally aligned words that differ but are
// similar enough to likely be two renderings of the same spoken word.
type IncorrectPair struct {
	Position       int     `json:"position"`
	WordA          string  `json:"wordA"`
	WordB          string  `json:"wordB"`
	WordSimilarity float64 `json:"wordSimilarity"`
}

// IssueReport itemizes the differences between two transcripts.
type IssueReport struct {
	// MissingWordsA are substantial words present in transcript B but
	// absent from transcript A.
	MissingWordsA []string `json:"missingWordsA"`
	// MissingWordsB are substantial words present in transcript A but
	// absent from transcript B.
	MissingWordsB   []string        `json:"missingWordsB"`
	IncorrectPairs  []IncorrectPair `json:"incorrectPairs"`
	WordCountDelta  int             `json:"wordCountDelta"`
	CommonWordRatio float64         `json:"commonWordRatio"`
}

// Count returns the total number of itemized issues.
func (r IssueReport) Count() int {
	return len(r.MissingWordsA) + len(r.MissingWordsB) + len(r.IncorrectPairs)
}

// Result is the verdict of comparing two transcripts. It is never mutated
// after creation.
type Result struct {
	Matched        bool        `json:"matched"`
	Similarity     float64     `json:"similarity"`
	FinalCandidate string      `json:"finalCandidate"`
	Issues         IssueReport `json:"issues"`
	Reason         string      `json:"reason"`
}

// Compare analyzes two transcripts of the same audio and produces a
// similarity verdict with a detailed issue report. The original strings are
// preserved in the result; normalization applies to scoring only.
func Compare(a, b string) Result {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		candidate := a
		if strings.TrimSpace(a) == "" {
			candidate = b
		}
		return Result{
			Matched:        false,
			Similarity:     0,
			FinalCandidate: candidate,
			Issues:         detectIssues(Normalize(a), Normalize(b)),
			Reason:         ReasonEmptyInput,
		}
	}

	normA := Normalize(a)
	normB := Normalize(b)

	sim := CharJaccard(normA, normB)
	issues := detectIssues(normA, normB)

	matched := sim >= matchSimilarity &&
		issues.Count() == 0 &&
		issues.WordCountDelta <= maxWordCountDelta

	result := Result{
		Matched:    matched,
		Similarity: sim,
		Issues:     issues,
	}
	if matched {
		result.FinalCandidate = longer(a, b)
		result.Reason = "transcripts match"
	} else {
		// Pipeline B is the more thoroughly preprocessed one and serves
		// as the default candidate; the merger may still override it.
		result.FinalCandidate = b
		result.Reason = "transcripts differ"
	}
	return result
}

// Normalize lowercases the text, strips punctuation and collapses whitespace
// runs to single spaces.
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// CharJaccard computes the character-set Jaccard index of two strings:
// the size of the intersection of their unique character sets divided by the
// size of the union. Returns 0 if either string is empty.
func CharJaccard(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := charSet(a)
	setB := charSet(b)
	intersection := 0
	for r := range setA {
		if setB[r] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		if r == ' ' {
			continue
		}
		set[r] = true
	}
	return set
}

// detectIssues itemizes missing words and near-duplicate aligned pairs
// between two normalized transcripts.
func detectIssues(normA, normB string) IssueReport {
	wordsA := strings.Fields(normA)
	wordsB := strings.Fields(normB)
	setA := wordSet(wordsA)
	setB := wordSet(wordsB)

	report := IssueReport{
		MissingWordsA:  []string{},
		MissingWordsB:  []string{},
		IncorrectPairs: []IncorrectPair{},
		WordCountDelta: int(math.Abs(float64(len(wordsA) - len(wordsB)))),
	}

	// Aligned positions whose words differ but are near-duplicates are
	// likely the same spoken word transcribed two ways. A paired word still
	// lands in the missing-word sets: both signals count toward the issue
	// total that drives escalation.
	for i := 0; i < len(wordsA) && i < len(wordsB); i++ {
		if wordsA[i] == wordsB[i] {
			continue
		}
		sim := CharJaccard(wordsA[i], wordsB[i])
		if sim >= incorrectPairFloor && sim < 1.0 {
			report.IncorrectPairs = append(report.IncorrectPairs, IncorrectPair{
				Position:       i,
				WordA:          wordsA[i],
				WordB:          wordsB[i],
				WordSimilarity: sim,
			})
		}
	}

	for _, w := range wordsB {
		if substantial(w) && !setA[w] && !contains(report.MissingWordsA, w) {
			report.MissingWordsA = append(report.MissingWordsA, w)
		}
	}
	for _, w := range wordsA {
		if substantial(w) && !setB[w] && !contains(report.MissingWordsB, w) {
			report.MissingWordsB = append(report.MissingWordsB, w)
		}
	}

	common := 0
	for w := range setA {
		if setB[w] {
			common++
		}
	}
	if larger := max(len(setA), len(setB)); larger > 0 {
		report.CommonWordRatio = float64(common) / float64(larger)
	}
	return report
}

// substantial reports whether a word is long enough, in characters, to be
// worth itemizing as missing.
func substantial(w string) bool {
	return utf8.RuneCountInString(w) > substantialWordLen
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

// longer returns the transcript with more characters, preferring a on a tie.
func longer(a, b string) string {
	if utf8.RuneCountInString(a) >= utf8.RuneCountInString(b) {
		return a
	}
	return b
}
