// Package qc holds the durable quality-control queue: cases escalated by the
// pipeline, a strict status state machine and pluggable persistence.
package qc

import (
	"errors"
	"time"

	"github.com/MrWong99/attestra/internal/compare"
	"github.com/MrWong99/attestra/internal/crossval"
)

var (
	// ErrNotFound is returned when a case id does not exist in the store.
	ErrNotFound = errors.New("qc case not found")
	// ErrDuplicateID is returned by a store when creating a case whose id
	// already exists.
	ErrDuplicateID = errors.New("qc case id already exists")
	// ErrAlreadyCompleted is returned when a decision is recorded against
	// a completed case.
	ErrAlreadyCompleted = errors.New("qc case already completed")
	// ErrIllegalTransition is returned when a status change would move a
	// case backwards or repeat a step with different data.
	ErrIllegalTransition = errors.New("illegal qc status transition")
)

// Status is the review state of a case. It only ever advances.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAudioValidated Status = "audio_validated"
	StatusCompleted      Status = "completed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAudioValidated, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal advance.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusAudioValidated || next == StatusCompleted
	case StatusAudioValidated:
		return next == StatusCompleted
	default:
		return false
	}
}

// Payload is the escalated pipeline state a reviewer needs to decide a case.
type Payload struct {
	TranscriptA       string         `json:"transcriptA"`
	TranscriptB       string         `json:"transcriptB"`
	Comparison        compare.Result `json:"comparison"`
	OptimalTranscript string         `json:"optimalTranscript,omitempty"`
	// AudioPath references the source recording so cross-validation can be
	// re-run for a stored case.
	AudioPath string `json:"audioPath,omitempty"`
}

// Case is one durable QC record. Once completed, the decision fields are
// immutable.
type Case struct {
	ID                   string           `json:"id"`
	CreatedAt            time.Time        `json:"createdAt"`
	Status               Status           `json:"status"`
	Payload              Payload          `json:"payload"`
	Notes                string           `json:"notes,omitempty"`
	Decision             string           `json:"decision,omitempty"`
	ProcessedBy          string           `json:"processedBy,omitempty"`
	ProcessedAt          *time.Time       `json:"processedAt,omitempty"`
	AudioCrossValidation *crossval.Result `json:"audioCrossValidation,omitempty"`
}

// Clone returns a copy of the case so store internals never alias caller
// state.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	if c.ProcessedAt != nil {
		t := *c.ProcessedAt
		out.ProcessedAt = &t
	}
	if c.AudioCrossValidation != nil {
		v := *c.AudioCrossValidation
		v.Words = append([]crossval.WordValidation(nil), c.AudioCrossValidation.Words...)
		v.Segments = append([]crossval.SegmentValidation(nil), c.AudioCrossValidation.Segments...)
		out.AudioCrossValidation = &v
	}
	return &out
}
