package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/attestra/internal/crossval"
	"github.com/MrWong99/attestra/internal/qc"
	"github.com/MrWong99/attestra/pkg/audio"
	"github.com/MrWong99/attestra/pkg/provider/asr"
	asrmock "github.com/MrWong99/attestra/pkg/provider/asr/mock"
)

type stubDecoder struct {
	fail bool
}

func (d *stubDecoder) Load(path string) (audio.Signal, error) {
	if d.fail {
		return audio.Signal{}, audio.ErrUnreadable
	}
	return audio.Signal{Samples: make([]float32, 16000), SampleRate: 16000}, nil
}

func newTestQueue(t *testing.T) *qc.Queue {
	t.Helper()
	store, err := qc.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	q, err := qc.NewQueue(store)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	return q
}

func newCoordinator(t *testing.T, textA, textB string, opts ...Option) (*Coordinator, *qc.Queue) {
	t.Helper()
	queue := newTestQueue(t)
	c, err := New(
		Pipeline{Name: "a", Backend: &asrmock.Backend{Transcript: asr.Transcript{Text: textA}}},
		Pipeline{Name: "b", Backend: &asrmock.Backend{Transcript: asr.Transcript{Text: textB}}},
		queue,
		opts...,
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, queue
}

func TestRunDualPipelineMatched(t *testing.T) {
	t.Parallel()
	text := "let me sing a story"
	c, queue := newCoordinator(t, text, text)

	res, err := c.RunDualPipeline(context.Background(), "take.wav")
	if err != nil {
		t.Fatalf("RunDualPipeline: %v", err)
	}
	if !res.Comparison.Matched || res.Comparison.Similarity != 1.0 {
		t.Errorf("Comparison = %+v, want matched with similarity 1.0", res.Comparison)
	}
	if res.FinalTranscript != text {
		t.Errorf("FinalTranscript = %q, want %q", res.FinalTranscript, text)
	}
	if res.QCRequired || res.QCCaseID != "" {
		t.Errorf("QCRequired = %v, QCCaseID = %q, want no escalation", res.QCRequired, res.QCCaseID)
	}

	stats, err := queue.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("queue contains %d cases after a matched run, want 0", stats.Total)
	}
}

func TestRunDualPipelineEmptySideEscalates(t *testing.T) {
	t.Parallel()
	c, queue := newCoordinator(t, "", "hello there friend")

	res, err := c.RunDualPipeline(context.Background(), "take.wav")
	if err != nil {
		t.Fatalf("RunDualPipeline: %v", err)
	}
	if res.Comparison.Matched {
		t.Error("Matched = true with an empty side, want false")
	}
	if res.Comparison.FinalCandidate != "hello there friend" {
		t.Errorf("FinalCandidate = %q, want the non-empty side", res.Comparison.FinalCandidate)
	}
	if res.FinalTranscript != "hello there friend" {
		t.Errorf("FinalTranscript = %q, want %q", res.FinalTranscript, "hello there friend")
	}
	// Similarity 0.0 is below the floor, so a case is created even though
	// the merged text is long enough.
	if !res.QCRequired || res.QCCaseID == "" {
		t.Fatalf("QCRequired = %v, QCCaseID = %q, want escalation", res.QCRequired, res.QCCaseID)
	}

	stored, err := queue.GetCase(context.Background(), res.QCCaseID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if stored.Status != qc.StatusPending {
		t.Errorf("case status = %q, want %q", stored.Status, qc.StatusPending)
	}
	if stored.Payload.TranscriptB != "hello there friend" {
		t.Errorf("stored payload = %+v", stored.Payload)
	}
	// The merged transcript is stored with the case even when no audio
	// validation ran.
	if stored.Payload.OptimalTranscript != res.FinalTranscript {
		t.Errorf("stored OptimalTranscript = %q, want %q", stored.Payload.OptimalTranscript, res.FinalTranscript)
	}
}

func TestRunDualPipelineValidatorFailureMergesRuleBased(t *testing.T) {
	t.Parallel()
	v, err := crossval.NewValidator(&stubDecoder{fail: true})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	c, queue := newCoordinator(t, "hello there friend", "hello there friends", WithValidator(v))

	res, err := c.RunDualPipeline(context.Background(), "take.wav")
	if err != nil {
		t.Fatalf("RunDualPipeline: %v (validator failures must degrade, not abort)", err)
	}
	if res.FinalTranscript == "" {
		t.Error("FinalTranscript empty after rule-based fallback")
	}
	if !strings.HasPrefix(res.FinalTranscript, "hello there") {
		t.Errorf("FinalTranscript = %q", res.FinalTranscript)
	}
	// High similarity, few itemized issues, long merged text: no escalation.
	if res.QCRequired {
		t.Errorf("QCRequired = true, want automatic result (comparison %+v)", res.Comparison)
	}
	stats, err := queue.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("queue contains %d cases, want 0", stats.Total)
	}
}

func TestRunDualPipelineValidationAdvancesCase(t *testing.T) {
	t.Parallel()
	v, err := crossval.NewValidator(&stubDecoder{})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	// Completely different transcripts: many issues, low similarity.
	c, queue := newCoordinator(t,
		"alpha beta gamma delta epsilon zeta eta",
		"one two three four five six seven",
		WithValidator(v))

	res, err := c.RunDualPipeline(context.Background(), "take.wav")
	if err != nil {
		t.Fatalf("RunDualPipeline: %v", err)
	}
	if !res.QCRequired {
		t.Fatalf("QCRequired = false for divergent transcripts (comparison %+v)", res.Comparison)
	}

	stored, err := queue.GetCase(context.Background(), res.QCCaseID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if stored.Status != qc.StatusAudioValidated {
		t.Errorf("case status = %q, want %q when validation already ran", stored.Status, qc.StatusAudioValidated)
	}
	if stored.AudioCrossValidation == nil {
		t.Error("AudioCrossValidation not persisted with the case")
	}
	if stored.Payload.OptimalTranscript == "" {
		t.Error("optimal transcript not persisted with the case")
	}
}

func TestRunDualPipelineBackendTimeout(t *testing.T) {
	t.Parallel()
	queue := newTestQueue(t)
	c, err := New(
		Pipeline{Name: "a", Backend: &asrmock.Backend{Block: true}},
		Pipeline{Name: "b", Backend: &asrmock.Backend{Transcript: asr.Transcript{Text: "hello there friend"}}},
		queue,
		WithTranscriptionTimeout(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.RunDualPipeline(context.Background(), "take.wav")
	if err != nil {
		t.Fatalf("RunDualPipeline: %v (a timeout is a degraded input, not a failure)", err)
	}
	if res.TranscriptA.Text != "" || res.TranscriptA.Err == "" {
		t.Errorf("TranscriptA = %+v, want empty text with attached error", res.TranscriptA)
	}
	if res.FinalTranscript != "hello there friend" {
		t.Errorf("FinalTranscript = %q, want the surviving pipeline's text", res.FinalTranscript)
	}
	if !res.QCRequired {
		t.Error("QCRequired = false, want escalation for a half-failed run")
	}
}

func TestRecordQCDecision(t *testing.T) {
	t.Parallel()
	c, _ := newCoordinator(t, "", "hello there friend")
	ctx := context.Background()

	res, err := c.RunDualPipeline(ctx, "take.wav")
	if err != nil {
		t.Fatalf("RunDualPipeline: %v", err)
	}
	if err := c.RecordQCDecision(ctx, res.QCCaseID, "checked manually", "approve", "alice"); err != nil {
		t.Fatalf("RecordQCDecision: %v", err)
	}

	stored, err := c.GetQCCase(ctx, res.QCCaseID)
	if err != nil {
		t.Fatalf("GetQCCase: %v", err)
	}
	if stored.Status != qc.StatusCompleted || stored.Decision != "approve" {
		t.Errorf("stored case = %+v", stored)
	}

	if err := c.RecordQCDecision(ctx, "qc_0_missing", "", "approve", "alice"); !errors.Is(err, qc.ErrNotFound) {
		t.Errorf("RecordQCDecision unknown id = %v, want qc.ErrNotFound", err)
	}

	view, err := c.ListQCQueue(ctx)
	if err != nil {
		t.Fatalf("ListQCQueue: %v", err)
	}
	if len(view.Cases) != 0 {
		t.Errorf("open cases = %d, want 0 after the decision", len(view.Cases))
	}
	if view.Stats.Completed != 1 {
		t.Errorf("Stats = %+v, want one completed case", view.Stats)
	}
}

func TestRunAudioCrossValidation(t *testing.T) {
	t.Parallel()
	v, err := crossval.NewValidator(&stubDecoder{})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	// No validator on the coordinator used for the run, so the case stays
	// pending; then re-run validation explicitly.
	c, queue := newCoordinator(t, "", "hello there friend")
	ctx := context.Background()

	res, err := c.RunDualPipeline(ctx, "take.wav")
	if err != nil {
		t.Fatalf("RunDualPipeline: %v", err)
	}

	validated, err := New(c.pipeA, c.pipeB, queue, WithValidator(v))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	view, err := validated.RunAudioCrossValidation(ctx, res.QCCaseID)
	if err != nil {
		t.Fatalf("RunAudioCrossValidation: %v", err)
	}
	if view.OptimalTranscript != "hello there friend" {
		t.Errorf("OptimalTranscript = %q", view.OptimalTranscript)
	}

	stored, err := queue.GetCase(ctx, res.QCCaseID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if stored.Status != qc.StatusAudioValidated {
		t.Errorf("case status = %q, want %q", stored.Status, qc.StatusAudioValidated)
	}

	if _, err := validated.RunAudioCrossValidation(ctx, "qc_0_missing"); !errors.Is(err, qc.ErrNotFound) {
		t.Errorf("RunAudioCrossValidation unknown id = %v, want qc.ErrNotFound", err)
	}
}
