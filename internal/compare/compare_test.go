package compare

import (
	"strings"
	"testing"
)

func TestCompareIdentical(t *testing.T) {
	t.Parallel()
	for _, s := range []string{
		"let me sing a story",
		"hello",
		"The quick brown fox, jumps over the lazy dog!",
	} {
		res := Compare(s, s)
		if !res.Matched {
			t.Errorf("Compare(%q, %q).Matched = false, want true", s, s)
		}
		if res.Similarity != 1.0 {
			t.Errorf("Compare(%q, %q).Similarity = %v, want 1.0", s, s, res.Similarity)
		}
		if res.FinalCandidate != s {
			t.Errorf("FinalCandidate = %q, want %q", res.FinalCandidate, s)
		}
	}
}

func TestCompareSimilaritySymmetric(t *testing.T) {
	t.Parallel()
	pairs := [][2]string{
		{"hello world", "hello there"},
		{"a b c", "x y z"},
		{"let me sing a story", "let me sing kutti story"},
		{"", "hello"},
	}
	for _, p := range pairs {
		ab := Compare(p[0], p[1]).Similarity
		ba := Compare(p[1], p[0]).Similarity
		if ab != ba {
			t.Errorf("similarity not symmetric for %q / %q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestCompareEmptyInput(t *testing.T) {
	t.Parallel()
	res := Compare("", "hello world")
	if res.Matched {
		t.Error("Matched = true for empty input, want false")
	}
	if res.FinalCandidate != "hello world" {
		t.Errorf("FinalCandidate = %q, want %q", res.FinalCandidate, "hello world")
	}
	if res.Reason != ReasonEmptyInput {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonEmptyInput)
	}
	if res.Similarity != 0 {
		t.Errorf("Similarity = %v, want 0", res.Similarity)
	}

	res = Compare("only side a", "")
	if res.FinalCandidate != "only side a" {
		t.Errorf("FinalCandidate = %q, want the non-empty side", res.FinalCandidate)
	}
}

func TestCompareDissimilarWordsBecomeMissing(t *testing.T) {
	t.Parallel()
	// "good" vs "kutti" score well below the near-duplicate threshold, so
	// they must show up as one missing word per side rather than as a pair.
	res := Compare("let me sing good story", "let me sing kutti story")
	if len(res.Issues.IncorrectPairs) != 0 {
		t.Errorf("IncorrectPairs = %v, want none", res.Issues.IncorrectPairs)
	}
	if !containsWord(res.Issues.MissingWordsA, "kutti") {
		t.Errorf("MissingWordsA = %v, want to contain %q", res.Issues.MissingWordsA, "kutti")
	}
	if !containsWord(res.Issues.MissingWordsB, "good") {
		t.Errorf("MissingWordsB = %v, want to contain %q", res.Issues.MissingWordsB, "good")
	}
	if res.Matched {
		t.Error("Matched = true with itemized issues, want false")
	}
}

func TestCompareNearDuplicatePair(t *testing.T) {
	t.Parallel()
	// "sing" and "singe" share four of five unique characters, so the aligned
	// pair lands in the near-duplicate band. The two words are still unique to
	// their sides and count as missing words as well, so the pair contributes
	// three issues in total.
	res := Compare("let me sing a story", "let me singe a story")
	if len(res.Issues.IncorrectPairs) != 1 {
		t.Fatalf("IncorrectPairs = %v, want exactly one", res.Issues.IncorrectPairs)
	}
	pair := res.Issues.IncorrectPairs[0]
	if pair.Position != 2 || pair.WordA != "sing" || pair.WordB != "singe" {
		t.Errorf("unexpected pair %+v", pair)
	}
	if pair.WordSimilarity < 0.7 || pair.WordSimilarity >= 1.0 {
		t.Errorf("WordSimilarity = %v, want in [0.7, 1.0)", pair.WordSimilarity)
	}
	if !containsWord(res.Issues.MissingWordsA, "singe") {
		t.Errorf("MissingWordsA = %v, want to contain %q", res.Issues.MissingWordsA, "singe")
	}
	if !containsWord(res.Issues.MissingWordsB, "sing") {
		t.Errorf("MissingWordsB = %v, want to contain %q", res.Issues.MissingWordsB, "sing")
	}
	if got := res.Issues.Count(); got != 3 {
		t.Errorf("Issues.Count() = %d, want 3", got)
	}
}

func TestCompareCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()
	// Tamil runes are three bytes each. The trailing word is two characters,
	// below the substantial-word threshold, so a clean prefix match with a
	// word count delta of one still matches.
	a := "வணக்கம் நண்பா டி"
	b := "வணக்கம் நண்பா"
	res := Compare(a, b)
	if len(res.Issues.MissingWordsB) != 0 {
		t.Errorf("MissingWordsB = %v, want none for a two-character word", res.Issues.MissingWordsB)
	}
	if !res.Matched {
		t.Errorf("Matched = false (similarity %v, issues %+v), want true", res.Similarity, res.Issues)
	}
	if res.FinalCandidate != a {
		t.Errorf("FinalCandidate = %q, want the longer input %q", res.FinalCandidate, a)
	}
}

func TestCompareCommonWordRatio(t *testing.T) {
	t.Parallel()
	// Common words over the larger word set: 2 shared of max(3, 4) unique.
	res := Compare("one two three", "one two four five")
	if got, want := res.Issues.CommonWordRatio, 0.5; got != want {
		t.Errorf("CommonWordRatio = %v, want %v", got, want)
	}
}

func TestCompareWordCountDelta(t *testing.T) {
	t.Parallel()
	a := "one two"
	b := a + strings.Repeat(" one", 6)
	res := Compare(a, b)
	if res.Issues.WordCountDelta != 6 {
		t.Errorf("WordCountDelta = %d, want 6", res.Issues.WordCountDelta)
	}
	if res.Matched {
		t.Error("Matched = true with word count delta above the limit, want false")
	}
}

func TestCompareMatchedPicksLonger(t *testing.T) {
	t.Parallel()
	a := "hello there friend"
	b := "Hello, there friend"
	res := Compare(a, b)
	if !res.Matched {
		t.Fatalf("Matched = false, want true (similarity %v, issues %+v)", res.Similarity, res.Issues)
	}
	if res.FinalCandidate != b {
		t.Errorf("FinalCandidate = %q, want the longer input %q", res.FinalCandidate, b)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{"Hello,   World!", "hello world"},
		{"  a\tb\nc  ", "a b c"},
		{"UPPER lower", "upper lower"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCharJaccard(t *testing.T) {
	t.Parallel()
	if got := CharJaccard("abc", "abc"); got != 1.0 {
		t.Errorf("CharJaccard(abc, abc) = %v, want 1.0", got)
	}
	if got := CharJaccard("abc", "xyz"); got != 0 {
		t.Errorf("CharJaccard(abc, xyz) = %v, want 0", got)
	}
	if got := CharJaccard("", "abc"); got != 0 {
		t.Errorf("CharJaccard with empty input = %v, want 0", got)
	}
	// {a,b} vs {b,c}: intersection 1, union 3.
	if got := CharJaccard("ab", "bc"); got != 1.0/3.0 {
		t.Errorf("CharJaccard(ab, bc) = %v, want 1/3", got)
	}
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
