// Package mock provides a scripted [asr.Backend] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/attestra/pkg/provider/asr"
)

// Backend is a test double implementing asr.Backend. Configure the exported
// fields before use; calls are recorded for later inspection.
// Safe for concurrent use.
type Backend struct {
	// Transcript is returned by every Transcribe call when Err is nil.
	Transcript asr.Transcript

	// Err, when non-nil, is returned by every Transcribe call.
	Err error

	// Block, when set, makes Transcribe wait until ctx is done before
	// returning its error. Used to exercise per-call timeouts without
	// real sleeps.
	Block bool

	mu    sync.Mutex
	calls []asr.Request
}

// Compile-time interface check.
var _ asr.Backend = (*Backend)(nil)

// Name identifies the backend in logs.
func (b *Backend) Name() string { return "mock" }

// Transcribe implements asr.Backend.
func (b *Backend) Transcribe(ctx context.Context, req asr.Request) (asr.Transcript, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()

	if b.Block {
		<-ctx.Done()
		return asr.Transcript{}, ctx.Err()
	}
	if b.Err != nil {
		return asr.Transcript{}, b.Err
	}
	t := b.Transcript
	if t.AudioPath == "" {
		t.AudioPath = req.AudioPath
	}
	return t, nil
}

// Calls returns a copy of all recorded requests.
func (b *Backend) Calls() []asr.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]asr.Request, len(b.calls))
	copy(out, b.calls)
	return out
}
