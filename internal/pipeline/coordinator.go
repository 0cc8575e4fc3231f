// Package pipeline orchestrates the dual-transcription flow: run both
// backends, compare, cross-validate, merge, and decide whether the result
// ships automatically or escalates to the QC queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/attestra/internal/compare"
	"github.com/MrWong99/attestra/internal/crossval"
	"github.com/MrWong99/attestra/internal/merge"
	"github.com/MrWong99/attestra/internal/observe"
	"github.com/MrWong99/attestra/internal/qc"
	"github.com/MrWong99/attestra/pkg/provider/asr"
)

// Escalation policy thresholds.
const (
	// minMergedLen is the minimum merged transcript length below which a
	// run always escalates.
	minMergedLen = 10
	// maxIssues is the itemized issue count above which a run escalates.
	maxIssues = 5
	// minSimilarity is the comparator similarity below which a run
	// escalates.
	minSimilarity = 0.7
)

// Run outcomes, used as metric attribute values.
const (
	outcomeMatched   = "matched"
	outcomeAuto      = "auto"
	outcomeEscalated = "escalated"
)

// Pipeline couples a transcription backend with its per-pipeline settings.
type Pipeline struct {
	// Name labels the pipeline in logs and metrics.
	Name string
	// Backend produces the transcript.
	Backend asr.Backend
	// Language is the BCP 47 language tag passed to the backend.
	Language string
	// Diarization requests speaker-attributed segments.
	Diarization bool
}

// RunResult is the outcome of one dual-pipeline run.
type RunResult struct {
	TranscriptA     asr.Transcript `json:"transcriptA"`
	TranscriptB     asr.Transcript `json:"transcriptB"`
	Comparison      compare.Result `json:"comparison"`
	FinalTranscript string         `json:"finalTranscript"`
	QCRequired      bool           `json:"qcRequired"`
	QCCaseID        string         `json:"qcCaseId,omitempty"`
}

// QueueView pairs the open cases with the store-wide counts.
type QueueView struct {
	Cases []*qc.Case `json:"cases"`
	Stats qc.Stats   `json:"stats"`
}

// ValidationView is the outcome of re-running cross-validation for a stored
// case.
type ValidationView struct {
	Validation        *crossval.Result `json:"validation"`
	OptimalTranscript string           `json:"optimalTranscript"`
}

// Coordinator runs the dual-pipeline flow. Ambiguity never surfaces as an
// error: it becomes a QC case and QCRequired=true in the result.
type Coordinator struct {
	pipeA   Pipeline
	pipeB   Pipeline
	queue   *qc.Queue
	merger  *merge.Merger
	valider *crossval.Validator
	metrics *observe.Metrics
	timeout time.Duration
	log     *slog.Logger
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// WithValidator attaches an audio cross-validator. Without one, unmatched
// runs merge rule-based only.
func WithValidator(v *crossval.Validator) Option {
	return func(c *Coordinator) { c.valider = v }
}

// WithMerger replaces the default merger (no substitution rules).
func WithMerger(m *merge.Merger) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.merger = m
		}
	}
}

// WithMetrics replaces the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTranscriptionTimeout bounds each backend call. Defaults to 120s.
func WithTranscriptionTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Coordinator over the two pipelines and the QC queue.
func New(pipeA, pipeB Pipeline, queue *qc.Queue, opts ...Option) (*Coordinator, error) {
	var errs []error
	if pipeA.Backend == nil {
		errs = append(errs, errors.New("pipeline: pipeline A backend must not be nil"))
	}
	if pipeB.Backend == nil {
		errs = append(errs, errors.New("pipeline: pipeline B backend must not be nil"))
	}
	if queue == nil {
		errs = append(errs, errors.New("pipeline: qc queue must not be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if pipeA.Name == "" {
		pipeA.Name = "a"
	}
	if pipeB.Name == "" {
		pipeB.Name = "b"
	}

	c := &Coordinator{
		pipeA:   pipeA,
		pipeB:   pipeB,
		queue:   queue,
		merger:  merge.New(nil),
		metrics: observe.DefaultMetrics(),
		timeout: 120 * time.Second,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// RunDualPipeline transcribes the audio through both pipelines and
// reconciles the results. Backend failures degrade to empty transcripts;
// only a QC store failure is returned as an error.
func (c *Coordinator) RunDualPipeline(ctx context.Context, audioPath string) (*RunResult, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()
	start := time.Now()

	var ta, tb asr.Transcript
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ta = c.transcribe(gctx, c.pipeA, audioPath)
		return nil
	})
	g.Go(func() error {
		tb = c.transcribe(gctx, c.pipeB, audioPath)
		return nil
	})
	// The goroutines never return errors; failures are carried inside the
	// transcripts.
	_ = g.Wait()

	result := &RunResult{
		TranscriptA: ta,
		TranscriptB: tb,
		Comparison:  compare.Compare(ta.Text, tb.Text),
	}

	if result.Comparison.Matched {
		result.FinalTranscript = result.Comparison.FinalCandidate
		c.metrics.RecordRun(ctx, outcomeMatched, time.Since(start).Seconds())
		c.log.Info("transcripts matched",
			"similarity", result.Comparison.Similarity,
			"audio", audioPath)
		return result, nil
	}

	validation := c.validate(ctx, ta.Text, tb.Text, audioPath)
	result.FinalTranscript = c.merger.Merge(ta.Text, tb.Text, result.Comparison.Issues, validation)

	if !c.shouldEscalate(result) {
		c.metrics.RecordRun(ctx, outcomeAuto, time.Since(start).Seconds())
		c.log.Info("transcripts merged automatically",
			"similarity", result.Comparison.Similarity,
			"issues", result.Comparison.Issues.Count(),
			"audio", audioPath)
		return result, nil
	}

	caseID, err := c.escalate(ctx, audioPath, result, validation)
	if err != nil {
		return nil, err
	}
	result.QCRequired = true
	result.QCCaseID = caseID
	c.metrics.RecordRun(ctx, outcomeEscalated, time.Since(start).Seconds())
	return result, nil
}

// transcribe runs one backend with a bounded wait. A failure or timeout
// yields an empty transcript carrying the error, never a fatal result.
func (c *Coordinator) transcribe(ctx context.Context, p Pipeline, audioPath string) asr.Transcript {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	t, err := p.Backend.Transcribe(tctx, asr.Request{
		AudioPath:   audioPath,
		Language:    p.Language,
		Diarization: p.Diarization,
	})
	c.metrics.BackendDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		kind := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "timeout"
		}
		c.metrics.RecordBackendError(ctx, p.Name, kind)
		c.log.Warn("transcription backend failed",
			"pipeline", p.Name,
			"kind", kind,
			"error", err)
		return asr.Transcript{AudioPath: audioPath, Err: err.Error()}
	}
	return t
}

// validate runs the cross-validator when configured. Any failure degrades to
// a nil result and a rule-based merge.
func (c *Coordinator) validate(ctx context.Context, a, b, audioPath string) *crossval.Result {
	if c.valider == nil {
		return nil
	}
	start := time.Now()
	validation, err := c.valider.Validate(ctx, a, b, audioPath, audioPath)
	c.metrics.ValidationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("audio cross-validation failed, merging rule-based", "error", err)
		return nil
	}
	return validation
}

// shouldEscalate applies the escalation policy to a merged run.
func (c *Coordinator) shouldEscalate(r *RunResult) bool {
	return len(strings.TrimSpace(r.FinalTranscript)) < minMergedLen ||
		r.Comparison.Issues.Count() > maxIssues ||
		r.Comparison.Similarity < minSimilarity
}

// escalate persists a QC case for the run. When validation already ran, the
// case advances straight to audio_validated.
func (c *Coordinator) escalate(ctx context.Context, audioPath string, r *RunResult, validation *crossval.Result) (string, error) {
	payload := qc.Payload{
		TranscriptA:       r.TranscriptA.Text,
		TranscriptB:       r.TranscriptB.Text,
		Comparison:        r.Comparison,
		OptimalTranscript: r.FinalTranscript,
		AudioPath:         audioPath,
	}
	id, err := c.queue.AddCase(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("pipeline: escalate run: %w", err)
	}
	if !validation.Empty() {
		if err := c.queue.RecordAudioValidation(ctx, id, validation, validation.OptimalTranscript); err != nil {
			c.log.Warn("could not attach validation to qc case", "id", id, "error", err)
		}
	}
	c.metrics.Escalations.Add(ctx, 1)
	c.metrics.PendingCases.Add(ctx, 1)
	c.log.Info("run escalated to qc",
		"id", id,
		"similarity", r.Comparison.Similarity,
		"issues", r.Comparison.Issues.Count(),
		"audio", audioPath)
	return id, nil
}

// ListQCQueue returns the open cases in review order plus store-wide counts.
func (c *Coordinator) ListQCQueue(ctx context.Context) (*QueueView, error) {
	cases, err := c.queue.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := c.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueView{Cases: cases, Stats: stats}, nil
}

// GetQCCase returns one case or qc.ErrNotFound.
func (c *Coordinator) GetQCCase(ctx context.Context, id string) (*qc.Case, error) {
	return c.queue.GetCase(ctx, id)
}

// RecordQCDecision completes a case with the reviewer's verdict.
func (c *Coordinator) RecordQCDecision(ctx context.Context, id, notes, decision, reviewer string) error {
	if err := c.queue.RecordDecision(ctx, id, notes, decision, reviewer); err != nil {
		return err
	}
	c.metrics.PendingCases.Add(ctx, -1)
	return nil
}

// RunAudioCrossValidation re-runs the validator for a stored case and
// records the audio_validated transition.
func (c *Coordinator) RunAudioCrossValidation(ctx context.Context, id string) (*ValidationView, error) {
	if c.valider == nil {
		return nil, errors.New("pipeline: no audio cross-validator configured")
	}
	stored, err := c.queue.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Payload.AudioPath == "" {
		return nil, fmt.Errorf("pipeline: case %q has no audio reference", id)
	}

	validation, err := c.valider.Validate(ctx,
		stored.Payload.TranscriptA, stored.Payload.TranscriptB,
		stored.Payload.AudioPath, stored.Payload.AudioPath)
	if err != nil {
		return nil, err
	}
	if err := c.queue.RecordAudioValidation(ctx, id, validation, validation.OptimalTranscript); err != nil {
		return nil, err
	}
	return &ValidationView{
		Validation:        validation,
		OptimalTranscript: validation.OptimalTranscript,
	}, nil
}
