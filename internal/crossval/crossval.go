// Package crossval scores two candidate transcripts against their source
// audio. An optional reference recognizer provides an independent decoding to
// score against; when it is absent or failing, a deterministic heuristic
// scorer takes its place so the rest of the pipeline never branches on
// recognizer availability.
package crossval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/attestra/pkg/audio"
	"github.com/MrWong99/attestra/pkg/provider/refasr"
)

const (
	// winMargin is the minimum confidence lead for a word or segment to
	// win its position; anything closer is uncertain.
	winMargin = 0.1
	// optimalMargin is the confidence lead required during optimal
	// transcript construction before falling back to the length tie-break.
	optimalMargin = 0.05
	// maxSegmentLen bounds segment chunks, split on word boundaries.
	maxSegmentLen = 50
)

// Winner identifies which transcript won a position.
type Winner string

const (
	WinnerA         Winner = "a"
	WinnerB         Winner = "b"
	WinnerUncertain Winner = "uncertain"
)

// Mode records which scoring strategy produced a validation result.
type Mode string

const (
	ModeReference Mode = "reference"
	ModeHeuristic Mode = "heuristic"
)

// WordValidation scores the two candidate words at one aligned position.
// A candidate is empty when that transcript has no word at the position.
type WordValidation struct {
	Position    int     `json:"position"`
	CandidateA  string  `json:"candidateA"`
	CandidateB  string  `json:"candidateB"`
	ConfidenceA float64 `json:"confidenceA"`
	ConfidenceB float64 `json:"confidenceB"`
	Winner      Winner  `json:"winner"`
}

// SegmentValidation scores the two candidate segments at one chunk position.
type SegmentValidation struct {
	Position    int     `json:"position"`
	CandidateA  string  `json:"candidateA"`
	CandidateB  string  `json:"candidateB"`
	ConfidenceA float64 `json:"confidenceA"`
	ConfidenceB float64 `json:"confidenceB"`
	Winner      Winner  `json:"winner"`
}

// Result is the outcome of cross-validating two transcripts against audio.
type Result struct {
	Words             []WordValidation    `json:"words"`
	Segments          []SegmentValidation `json:"segments"`
	OptimalTranscript string              `json:"optimalTranscript"`
	Mode              Mode                `json:"mode"`
}

// Empty reports whether the validation produced no usable optimal transcript.
func (r *Result) Empty() bool {
	return r == nil || strings.TrimSpace(r.OptimalTranscript) == ""
}

// Validator cross-validates transcript pairs. The recognizer is optional; a
// nil recognizer selects the heuristic scorer for every run.
type Validator struct {
	decoder       audio.Decoder
	recognizer    refasr.Recognizer
	fallback      Scorer
	decodeTimeout time.Duration
	log           *slog.Logger
}

// Option is a functional option for configuring a Validator.
type Option func(*Validator)

// WithRecognizer attaches a reference recognizer. A nil recognizer is
// allowed and keeps the heuristic fallback.
func WithRecognizer(r refasr.Recognizer) Option {
	return func(v *Validator) { v.recognizer = r }
}

// WithDecodeTimeout bounds each reference decode call. Defaults to 60s.
func WithDecodeTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.decodeTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// NewValidator creates a Validator reading audio through the given decoder.
func NewValidator(decoder audio.Decoder, opts ...Option) (*Validator, error) {
	if decoder == nil {
		return nil, fmt.Errorf("crossval: decoder must not be nil")
	}
	v := &Validator{
		decoder:       decoder,
		fallback:      NewHeuristicScorer(),
		decodeTimeout: 60 * time.Second,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Validate loads both audio files, scores each transcript's words and
// segments, and constructs the optimal transcript. Either audio path failing
// to decode is a hard failure wrapping [audio.ErrUnreadable]; recognizer
// failures are not, they degrade to the heuristic scorer.
func (v *Validator) Validate(ctx context.Context, a, b, audioPathA, audioPathB string) (*Result, error) {
	signalA, err := v.decoder.Load(audioPathA)
	if err != nil {
		return nil, fmt.Errorf("crossval: load pipeline A audio: %w", err)
	}
	signalB, err := v.decoder.Load(audioPathB)
	if err != nil {
		return nil, fmt.Errorf("crossval: load pipeline B audio: %w", err)
	}

	scorerA, scorerB, mode := v.buildScorers(ctx, signalA, signalB)

	result := &Result{
		Words:    scoreWords(a, b, scorerA, scorerB),
		Segments: scoreSegments(a, b, scorerA, scorerB),
		Mode:     mode,
	}
	result.OptimalTranscript = optimalTranscript(result.Words)
	return result, nil
}

// buildScorers decodes both audio signals through the reference recognizer,
// concurrently, and wraps the decodings in reference scorers. Any decode
// failure drops both sides to the heuristic scorer so confidences stay on a
// single scale; a signal with no samples skips decoding entirely.
func (v *Validator) buildScorers(ctx context.Context, signalA, signalB audio.Signal) (Scorer, Scorer, Mode) {
	if v.recognizer == nil || signalA.Empty() || signalB.Empty() {
		return v.fallback, v.fallback, ModeHeuristic
	}

	var refA, refB string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		refA, err = v.decode(gctx, signalA)
		return err
	})
	g.Go(func() error {
		var err error
		refB, err = v.decode(gctx, signalB)
		return err
	})
	if err := g.Wait(); err != nil {
		v.log.Warn("reference decode failed, using heuristic scoring", "error", err)
		return v.fallback, v.fallback, ModeHeuristic
	}
	return newReferenceScorer(refA), newReferenceScorer(refB), ModeReference
}

func (v *Validator) decode(ctx context.Context, signal audio.Signal) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, v.decodeTimeout)
	defer cancel()
	return v.recognizer.Decode(dctx, signal.Samples, signal.SampleRate)
}

// scoreWords walks the aligned word positions of both transcripts.
func scoreWords(a, b string, scorerA, scorerB Scorer) []WordValidation {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	n := max(len(wordsA), len(wordsB))
	out := make([]WordValidation, 0, n)
	for i := 0; i < n; i++ {
		wv := WordValidation{Position: i}
		if i < len(wordsA) {
			wv.CandidateA = wordsA[i]
			wv.ConfidenceA = scorerA.ScoreWord(wordsA[i])
		}
		if i < len(wordsB) {
			wv.CandidateB = wordsB[i]
			wv.ConfidenceB = scorerB.ScoreWord(wordsB[i])
		}
		wv.Winner = decide(wv.ConfidenceA, wv.ConfidenceB)
		out = append(out, wv)
	}
	return out
}

// scoreSegments chunks both transcripts and scores the chunks pairwise.
func scoreSegments(a, b string, scorerA, scorerB Scorer) []SegmentValidation {
	segsA := chunk(a, maxSegmentLen)
	segsB := chunk(b, maxSegmentLen)
	n := max(len(segsA), len(segsB))
	out := make([]SegmentValidation, 0, n)
	for i := 0; i < n; i++ {
		sv := SegmentValidation{Position: i}
		if i < len(segsA) {
			sv.CandidateA = segsA[i]
			sv.ConfidenceA = scorerA.ScoreSegment(segsA[i])
		}
		if i < len(segsB) {
			sv.CandidateB = segsB[i]
			sv.ConfidenceB = scorerB.ScoreSegment(segsB[i])
		}
		sv.Winner = decide(sv.ConfidenceA, sv.ConfidenceB)
		out = append(out, sv)
	}
	return out
}

// decide compares two confidences with the win margin.
func decide(confA, confB float64) Winner {
	switch {
	case confA > confB+winMargin:
		return WinnerA
	case confB > confA+winMargin:
		return WinnerB
	default:
		return WinnerUncertain
	}
}

// chunk splits text into segments of at most maxLen characters (runes, not
// bytes), breaking on word boundaries. A single word longer than maxLen
// becomes its own segment.
func chunk(text string, maxLen int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var segments []string
	var current strings.Builder
	runes := 0
	for _, w := range words {
		wlen := utf8.RuneCountInString(w)
		if runes > 0 && runes+1+wlen > maxLen {
			segments = append(segments, current.String())
			current.Reset()
			runes = 0
		}
		if runes > 0 {
			current.WriteByte(' ')
			runes++
		}
		current.WriteString(w)
		runes += wlen
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

// optimalTranscript picks one word per position: the clearly more confident
// candidate, then the longer candidate, then whichever side still has one.
func optimalTranscript(words []WordValidation) string {
	picked := make([]string, 0, len(words))
	for _, wv := range words {
		var w string
		switch {
		case wv.CandidateA == "":
			w = wv.CandidateB
		case wv.CandidateB == "":
			w = wv.CandidateA
		case wv.ConfidenceA > wv.ConfidenceB+optimalMargin:
			w = wv.CandidateA
		case wv.ConfidenceB > wv.ConfidenceA+optimalMargin:
			w = wv.CandidateB
		case utf8.RuneCountInString(wv.CandidateB) > utf8.RuneCountInString(wv.CandidateA):
			w = wv.CandidateB
		default:
			w = wv.CandidateA
		}
		if w != "" {
			picked = append(picked, w)
		}
	}
	return strings.Join(picked, " ")
}
