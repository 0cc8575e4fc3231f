// Package refasr defines the Recognizer interface for reference speech
// recognition.
//
// A reference recognizer produces an independent decoding of an audio signal.
// It is consulted only to score candidate words and segments from the two
// transcription pipelines against the audio — its output is never itself a
// candidate transcript. The capability is optional: when no recognizer is
// configured (or the model fails to load), the cross-validator substitutes a
// deterministic heuristic scorer and the rest of the pipeline is unaffected.
package refasr

import (
	"context"
	"errors"
)

// ErrUnavailable indicates that no reference recognizer is usable for this
// request. The cross-validator treats it as a signal to fall back to the
// heuristic scorer, never as a pipeline failure.
var ErrUnavailable = errors.New("reference recognizer unavailable")

// Recognizer decodes an audio signal into text.
//
// Implementations must be safe for concurrent use: the cross-validator decodes
// the two pipelines' audio signals in parallel.
type Recognizer interface {
	// Decode runs recognition over the given mono samples. samples are
	// normalised to [-1, 1] at the given rate. Implementations should return
	// an error wrapping [ErrUnavailable] for capability-level failures
	// (model not loaded, service down) as opposed to malformed input.
	Decode(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
