package crossval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/attestra/pkg/audio"
	refasrmock "github.com/MrWong99/attestra/pkg/provider/refasr/mock"
)

// stubDecoder returns a fixed signal, an unreadable error for paths listed
// in bad, or a sample-less signal for paths listed in silent.
type stubDecoder struct {
	bad    map[string]bool
	silent map[string]bool
}

func (d *stubDecoder) Load(path string) (audio.Signal, error) {
	if d.bad[path] {
		return audio.Signal{}, audio.ErrUnreadable
	}
	if d.silent[path] {
		return audio.Signal{SampleRate: 16000}, nil
	}
	return audio.Signal{Samples: make([]float32, 16000), SampleRate: 16000}, nil
}

func TestValidateHeuristicWithoutRecognizer(t *testing.T) {
	t.Parallel()
	v, err := NewValidator(&stubDecoder{})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	res, err := v.Validate(context.Background(), "hello there friend", "hello there", "a.wav", "b.wav")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Mode != ModeHeuristic {
		t.Errorf("Mode = %q, want %q", res.Mode, ModeHeuristic)
	}
	if len(res.Words) != 3 {
		t.Fatalf("len(Words) = %d, want 3", len(res.Words))
	}
	// Position 2 exists only in transcript A.
	last := res.Words[2]
	if last.CandidateA != "friend" || last.CandidateB != "" {
		t.Errorf("position 2 = %+v, want candidate only on side A", last)
	}
	if res.OptimalTranscript != "hello there friend" {
		t.Errorf("OptimalTranscript = %q, want %q", res.OptimalTranscript, "hello there friend")
	}
}

func TestValidateUnreadableAudioFails(t *testing.T) {
	t.Parallel()
	v, err := NewValidator(&stubDecoder{bad: map[string]bool{"b.wav": true}})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, err = v.Validate(context.Background(), "a", "b", "a.wav", "b.wav")
	if !errors.Is(err, audio.ErrUnreadable) {
		t.Errorf("Validate error = %v, want audio.ErrUnreadable", err)
	}
}

func TestValidateReferenceScoring(t *testing.T) {
	t.Parallel()
	rec := &refasrmock.Recognizer{Text: "let me sing a story"}
	v, err := NewValidator(&stubDecoder{}, WithRecognizer(rec))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	res, err := v.Validate(context.Background(), "let me sing a story", "let me sang a story", "a.wav", "b.wav")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Mode != ModeReference {
		t.Errorf("Mode = %q, want %q", res.Mode, ModeReference)
	}
	if len(rec.Calls()) != 2 {
		t.Errorf("recognizer calls = %d, want 2 (one per audio stream)", len(rec.Calls()))
	}
	// "sing" is a literal substring of the reference (confidence 1.0);
	// "sang" only token-overlaps (0.8), so side A wins position 2.
	pos2 := res.Words[2]
	if pos2.ConfidenceA != 1.0 {
		t.Errorf("ConfidenceA = %v, want 1.0", pos2.ConfidenceA)
	}
	if pos2.ConfidenceB != 0.8 {
		t.Errorf("ConfidenceB = %v, want 0.8", pos2.ConfidenceB)
	}
	if pos2.Winner != WinnerA {
		t.Errorf("Winner = %q, want %q", pos2.Winner, WinnerA)
	}
	if res.OptimalTranscript != "let me sing a story" {
		t.Errorf("OptimalTranscript = %q, want %q", res.OptimalTranscript, "let me sing a story")
	}
}

func TestValidateRecognizerErrorFallsBack(t *testing.T) {
	t.Parallel()
	rec := &refasrmock.Recognizer{Err: errors.New("model crashed")}
	v, err := NewValidator(&stubDecoder{}, WithRecognizer(rec))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	res, err := v.Validate(context.Background(), "hello world", "hello world", "a.wav", "b.wav")
	if err != nil {
		t.Fatalf("Validate: %v (recognizer failures must not be fatal)", err)
	}
	if res.Mode != ModeHeuristic {
		t.Errorf("Mode = %q, want %q after recognizer failure", res.Mode, ModeHeuristic)
	}
	if res.OptimalTranscript != "hello world" {
		t.Errorf("OptimalTranscript = %q, want %q", res.OptimalTranscript, "hello world")
	}
}

func TestValidateEmptySignalSkipsRecognizer(t *testing.T) {
	t.Parallel()
	rec := &refasrmock.Recognizer{Text: "hello world"}
	v, err := NewValidator(&stubDecoder{silent: map[string]bool{"b.wav": true}}, WithRecognizer(rec))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	res, err := v.Validate(context.Background(), "hello world", "hello world", "a.wav", "b.wav")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Mode != ModeHeuristic {
		t.Errorf("Mode = %q, want %q for a sample-less signal", res.Mode, ModeHeuristic)
	}
	if calls := len(rec.Calls()); calls != 0 {
		t.Errorf("recognizer calls = %d, want 0", calls)
	}
}

func TestChunk(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("word ", 30)
	segments := chunk(text, maxSegmentLen)
	if len(segments) == 0 {
		t.Fatal("chunk returned no segments")
	}
	for i, s := range segments {
		if len(s) > maxSegmentLen {
			t.Errorf("segment %d length %d exceeds %d: %q", i, len(s), maxSegmentLen, s)
		}
		if s != strings.TrimSpace(s) {
			t.Errorf("segment %d has surrounding whitespace: %q", i, s)
		}
	}
	if got := strings.Join(segments, " "); got != strings.TrimSpace(text) {
		t.Errorf("joined segments = %q, want original word sequence", got)
	}

	if got := chunk("", maxSegmentLen); got != nil {
		t.Errorf("chunk(empty) = %v, want nil", got)
	}

	long := strings.Repeat("x", 80)
	segments = chunk(long, maxSegmentLen)
	if len(segments) != 1 || segments[0] != long {
		t.Errorf("oversize single word = %v, want one segment", segments)
	}
}

func TestOptimalTranscriptTieBreaks(t *testing.T) {
	t.Parallel()
	words := []WordValidation{
		{Position: 0, CandidateA: "hi", CandidateB: "hello", ConfidenceA: 0.5, ConfidenceB: 0.52},
		{Position: 1, CandidateA: "there", CandidateB: "the", ConfidenceA: 0.5, ConfidenceB: 0.9},
		{Position: 2, CandidateA: "", CandidateB: "friend"},
		{Position: 3, CandidateA: "கா", CandidateB: "abc", ConfidenceA: 0.5, ConfidenceB: 0.5},
	}
	// Position 0: within margin, longer word wins. Position 1: clear
	// confidence lead. Position 2: only one side present. Position 3: tie,
	// and length is measured in characters, so three-character "abc" beats
	// two-character (six-byte) "கா".
	if got := optimalTranscript(words); got != "hello the friend abc" {
		t.Errorf("optimalTranscript = %q, want %q", got, "hello the friend abc")
	}
}

func TestHeuristicScorer(t *testing.T) {
	t.Parallel()
	s := NewHeuristicScorer()
	if got := s.ScoreWord("hello"); got != 0.5 {
		t.Errorf("ScoreWord(hello) = %v, want 0.5", got)
	}
	if got := s.ScoreWord(strings.Repeat("a", 25)); got != 1.0 {
		t.Errorf("ScoreWord(long) = %v, want capped 1.0", got)
	}
	if got := s.ScoreSegment(strings.Repeat("a", 50)); got != 0.5 {
		t.Errorf("ScoreSegment = %v, want 0.5", got)
	}
	// Length is counted in characters: seven Tamil runes score 0.7, not the
	// saturated byte count.
	if got := s.ScoreWord("வணக்கம்"); got != 0.7 {
		t.Errorf("ScoreWord(வணக்கம்) = %v, want 0.7", got)
	}
}

func TestReferenceScorer(t *testing.T) {
	t.Parallel()
	s := newReferenceScorer("The quick brown fox")
	if got := s.ScoreWord("quick"); got != 1.0 {
		t.Errorf("substring word = %v, want 1.0", got)
	}
	if got := s.ScoreWord("quic"); got != 1.0 {
		t.Errorf("substring fragment = %v, want 1.0", got)
	}
	if got := s.ScoreWord("foxes"); got != 0.8 {
		t.Errorf("token containment = %v, want 0.8", got)
	}
	if got := s.ScoreWord("zzz"); got >= 0.8 {
		t.Errorf("unrelated word = %v, want below containment score", got)
	}
	// An exact substring of the reference scores 1.0 outright.
	if got := s.ScoreSegment("quick brown"); got != 1.0 {
		t.Errorf("substring segment = %v, want 1.0", got)
	}
	// Token-set Jaccard otherwise: 2 shared over a union of 5
	// ({quick, brown, dance} ∪ {the, quick, brown, fox}).
	if got := s.ScoreSegment("quick brown dance"); got != 2.0/5.0 {
		t.Errorf("segment overlap = %v, want 2/5", got)
	}
}
