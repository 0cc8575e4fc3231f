// Package merge combines two candidate transcripts into one consensus
// transcript, optionally guided by cross-validation confidences.
package merge

import (
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/attestra/internal/compare"
	"github.com/MrWong99/attestra/internal/crossval"
)

const (
	// dominanceRatio is the word-count lead (10%) at which one transcript
	// becomes the merge base outright.
	dominanceRatio = 1.1
	// substantialWordLen is the minimum length in characters (exclusive) for
	// a word from the other transcript to be appended to the base.
	substantialWordLen = 2
)

// Rule rewrites a known mis-transcribed phrase. Rules are exact substring
// replacements applied in order as a final pass; they are a domain patch
// injected from configuration, not a general correction mechanism.
type Rule struct {
	From string
	To   string
}

// Merger merges transcript pairs. The zero value is usable and applies no
// substitution rules.
type Merger struct {
	rules []Rule
}

// New creates a Merger with the given ordered substitution rules.
func New(rules []Rule) *Merger {
	return &Merger{rules: rules}
}

// Merge produces the consensus transcript. A non-empty validation result
// wins outright; otherwise the merge is rule-based: the dominant transcript
// (or the one with fewer missing words) becomes the base, and the other
// side's unique substantial words are appended at the end. Positional
// re-insertion is not attempted. Deterministic for identical inputs.
func (m *Merger) Merge(a, b string, issues compare.IssueReport, validation *crossval.Result) string {
	if !validation.Empty() {
		return m.substitute(validation.OptimalTranscript)
	}
	return m.substitute(ruleBased(a, b, issues))
}

// ruleBased picks a base transcript and appends the other side's unique
// substantial words at the end.
func ruleBased(a, b string, issues compare.IssueReport) string {
	if strings.TrimSpace(a) == "" {
		return strings.TrimSpace(b)
	}
	if strings.TrimSpace(b) == "" {
		return strings.TrimSpace(a)
	}

	base, other := pickBase(a, b, issues)

	baseWords := strings.Fields(base)
	present := make(map[string]bool, len(baseWords))
	for _, w := range baseWords {
		present[compare.Normalize(w)] = true
	}

	merged := baseWords
	for _, w := range strings.Fields(other) {
		norm := compare.Normalize(w)
		if utf8.RuneCountInString(norm) > substantialWordLen && !present[norm] {
			merged = append(merged, w)
			present[norm] = true
		}
	}
	return strings.Join(merged, " ")
}

// pickBase returns (base, other): the transcript with at least 10% more
// words wins; failing that, the one with fewer itemized missing words.
func pickBase(a, b string, issues compare.IssueReport) (string, string) {
	countA := len(strings.Fields(a))
	countB := len(strings.Fields(b))

	switch {
	case float64(countA) >= float64(countB)*dominanceRatio:
		return a, b
	case float64(countB) >= float64(countA)*dominanceRatio:
		return b, a
	case len(issues.MissingWordsA) < len(issues.MissingWordsB):
		// Fewer words missing from A means A is the more complete side.
		return a, b
	case len(issues.MissingWordsB) < len(issues.MissingWordsA):
		return b, a
	default:
		return b, a
	}
}

// substitute applies the ordered substitution rules.
func (m *Merger) substitute(text string) string {
	for _, r := range m.rules {
		if r.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return text
}
