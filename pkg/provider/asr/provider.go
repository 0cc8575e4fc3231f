// Package asr defines the Backend interface for batch speech-to-text
// transcription services.
//
// A Backend wraps a transcription provider (e.g., the OpenAI audio API or a
// self-hosted whisper server) and exposes a uniform one-shot interface: submit
// an audio file, receive the full transcript. Backends are the upstream
// collaborators of the dual-pipeline coordinator — they may be slow, may fail,
// and may be only partially available; the coordinator degrades gracefully in
// all three cases.
//
// Implementations must be safe for concurrent use: the coordinator invokes
// both pipelines' backends in parallel.
package asr

import (
	"context"
	"time"
)

// Request describes a single batch transcription job.
type Request struct {
	// AudioPath is the filesystem path of the audio file to transcribe.
	AudioPath string

	// Language is the BCP-47 language tag for recognition (e.g., "ta-IN").
	// An empty string lets the backend auto-detect the language, if supported.
	Language string

	// Diarization requests speaker-attributed segments. Backends that do not
	// support diarization ignore the flag and return only plain text.
	Diarization bool
}

// Segment is one speaker-attributed span of a diarized transcript.
type Segment struct {
	Speaker string        `json:"speaker"`
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
	Text    string        `json:"text"`
}

// Transcript is the result of a batch transcription job. It is immutable
// after creation.
type Transcript struct {
	// Text is the full transcript text. Empty when the job failed.
	Text string `json:"text"`

	// Segments holds diarized speaker segments when diarization was requested
	// and the backend supports it. Nil otherwise.
	Segments []Segment `json:"segments,omitempty"`

	// AudioPath is the audio file the transcript was produced from, carried
	// forward so the cross-validator can re-read the source signal.
	AudioPath string `json:"audio_path,omitempty"`

	// Err records a backend failure. A failed pipeline yields an empty Text
	// with Err set; the coordinator proceeds with whatever succeeded.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the transcript comes from a failed pipeline run.
func (t Transcript) Failed() bool { return t.Err != "" }

// Backend is the abstraction over any batch transcription service.
//
// Transcribe blocks until the backend returns or ctx is done. Implementations
// must honour ctx cancellation for the caller-facing wait, but need not cancel
// work already dispatched to the remote service.
type Backend interface {
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}

// Name returns a short identifier for logging when the backend implements
// interface{ Name() string }, and "unknown" otherwise.
func Name(b Backend) string {
	if n, ok := b.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}
