// Package whisper implements [refasr.Recognizer] using the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded exactly once at construction and shared across all
// Decode calls; a load failure is reported to the caller, who keeps a nil
// capability and lets the cross-validator fall back to heuristic scoring.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/attestra/pkg/provider/refasr"
)

const defaultLanguage = "en"

// Recognizer implements refasr.Recognizer using a locally loaded whisper.cpp
// model. It is safe for concurrent use: the shared model is read-only and
// each Decode call creates its own whisper context.
type Recognizer struct {
	model    whisperlib.Model
	language string
}

// Compile-time interface check.
var _ refasr.Recognizer = (*Recognizer)(nil)

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the recognition language code (e.g., "en", "ta").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// New loads the whisper.cpp model from the given file path. The caller must
// call Close when the recognizer is no longer needed.
func New(modelPath string, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	r := &Recognizer{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close releases the whisper model.
func (r *Recognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// Decode implements refasr.Recognizer. It runs whisper.cpp inference over the
// samples using a fresh context and returns the concatenated segment text.
//
// whisper.cpp expects 16 kHz mono input; other rates return an error rather
// than silently producing garbage.
func (r *Recognizer) Decode(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.model == nil {
		return "", fmt.Errorf("whisper: %w", refasr.ErrUnavailable)
	}
	if sampleRate != whisperlib.SampleRate {
		return "", fmt.Errorf("whisper: sample rate %d not supported (want %d)", sampleRate, whisperlib.SampleRate)
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w: %w", refasr.ErrUnavailable, err)
	}

	if err := wctx.SetLanguage(r.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", r.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
