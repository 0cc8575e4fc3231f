// Package audio provides WAV decoding and PCM conversion utilities for the
// attestra pipeline. The central type is [Decoder], the capability used by the
// cross-validator to load the audio a transcript was produced from.
//
// Only 16-bit PCM WAV input is supported. Decoded signals are downmixed to
// mono and resampled to the decoder's target rate (16 kHz by default, the rate
// expected by the reference recognizer).
package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnreadable indicates an audio file that is missing or cannot be decoded.
// Callers should test for it with [errors.Is]; the wrapped error carries the
// underlying cause.
var ErrUnreadable = errors.New("audio unreadable")

// Signal is a decoded mono audio signal.
type Signal struct {
	// Samples are normalised to [-1, 1].
	Samples []float32

	// SampleRate is the sample rate in Hz after decoding.
	SampleRate int
}

// Duration returns the playback duration of the signal.
func (s Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// Empty reports whether the signal contains no samples.
func (s Signal) Empty() bool { return len(s.Samples) == 0 }

// Decoder loads an audio file into a mono [Signal].
// Implementations must be safe for concurrent use.
type Decoder interface {
	// Load decodes the file at path. A missing or undecodable file yields an
	// error wrapping [ErrUnreadable].
	Load(path string) (Signal, error)
}

// unreadable wraps cause so that errors.Is(err, ErrUnreadable) holds.
func unreadable(path string, cause error) error {
	return fmt.Errorf("audio: %q: %w: %w", path, ErrUnreadable, cause)
}
