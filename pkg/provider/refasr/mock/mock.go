// Package mock provides a scripted [refasr.Recognizer] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/attestra/pkg/provider/refasr"
)

// Recognizer is a scripted refasr.Recognizer. Each Decode call returns the
// configured Text and Err. Decoded sample slices are recorded for assertions.
type Recognizer struct {
	// Text is returned from every Decode call when Err is nil.
	Text string
	// Err, if set, is returned from every Decode call.
	Err error

	mu    sync.Mutex
	calls []Call
}

// Call records the arguments of one Decode invocation.
type Call struct {
	Samples    []float32
	SampleRate int
}

var _ refasr.Recognizer = (*Recognizer)(nil)

// Decode implements refasr.Recognizer.
func (r *Recognizer) Decode(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{Samples: samples, SampleRate: sampleRate})
	r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Calls returns a copy of all recorded Decode invocations.
func (r *Recognizer) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}
