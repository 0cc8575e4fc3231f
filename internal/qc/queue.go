package qc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/attestra/internal/crossval"
)

// idAttempts bounds the retries when a generated case id collides.
const idAttempts = 5

// lockStripes is the number of mutexes writes are striped over. Writes to
// the same case id always serialise on the same stripe; independent cases
// rarely contend.
const lockStripes = 32

// Stats are the per-status case counts.
type Stats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	AudioValidated int `json:"audio_validated"`
	Completed      int `json:"completed"`
}

// Queue is the QC case state machine over a [CaseStore]. It owns all status
// transitions; nothing else may mutate stored cases.
type Queue struct {
	store CaseStore
	log   *slog.Logger
	now   func() time.Time

	locks [lockStripes]sync.Mutex
}

// QueueOption is a functional option for configuring a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the logger. Defaults to slog.Default().
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// NewQueue creates a Queue over the given store.
func NewQueue(store CaseStore, opts ...QueueOption) (*Queue, error) {
	if store == nil {
		return nil, fmt.Errorf("qc: store must not be nil")
	}
	q := &Queue{
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q, nil
}

// AddCase creates a new pending case for the given payload and returns its
// id. Id collisions are detected and retried, never silently overwritten.
func (q *Queue) AddCase(ctx context.Context, payload Payload) (string, error) {
	var lastErr error
	for attempt := 0; attempt < idAttempts; attempt++ {
		c := &Case{
			ID:        newCaseID(q.now()),
			CreatedAt: q.now().UTC(),
			Status:    StatusPending,
			Payload:   payload,
		}
		err := q.store.Create(ctx, c)
		if err == nil {
			q.log.Info("qc case created", "id", c.ID)
			return c.ID, nil
		}
		if !isDuplicateID(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("qc: could not allocate a unique case id after %d attempts: %w", idAttempts, lastErr)
}

// GetCase returns the case with the given id or ErrNotFound.
func (q *Queue) GetCase(ctx context.Context, id string) (*Case, error) {
	return q.store.Get(ctx, id)
}

// RecordAudioValidation attaches a cross-validation result to a pending case
// and advances it to audio_validated. Repeating the call with an identical
// result is a no-op; any other repetition or a completed case is rejected.
func (q *Queue) RecordAudioValidation(ctx context.Context, id string, validation *crossval.Result, optimalTranscript string) error {
	q.lock(id)
	defer q.unlock(id)

	c, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}

	switch c.Status {
	case StatusPending:
		c.Status = StatusAudioValidated
		c.AudioCrossValidation = validation
		c.Payload.OptimalTranscript = optimalTranscript
		return q.store.Put(ctx, c)
	case StatusAudioValidated:
		if equalValidation(c.AudioCrossValidation, validation) && c.Payload.OptimalTranscript == optimalTranscript {
			return nil
		}
		return fmt.Errorf("qc: case %q already audio-validated with different data: %w", id, ErrIllegalTransition)
	default:
		return fmt.Errorf("qc: case %q is %s: %w", id, c.Status, ErrIllegalTransition)
	}
}

// RecordDecision completes a case with the reviewer's decision. A second
// decision against the same case fails and leaves the stored record
// untouched.
func (q *Queue) RecordDecision(ctx context.Context, id, notes, decision, reviewer string) error {
	q.lock(id)
	defer q.unlock(id)

	c, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.Status.CanTransitionTo(StatusCompleted) {
		return fmt.Errorf("qc: case %q: %w", id, ErrAlreadyCompleted)
	}

	processedAt := q.now().UTC()
	c.Status = StatusCompleted
	c.Notes = notes
	c.Decision = decision
	c.ProcessedBy = reviewer
	c.ProcessedAt = &processedAt
	if err := q.store.Put(ctx, c); err != nil {
		return err
	}
	q.log.Info("qc case completed", "id", id, "decision", decision, "reviewer", reviewer)
	return nil
}

// ListPending returns all cases still awaiting a decision (pending or
// audio_validated), oldest first.
func (q *Queue) ListPending(ctx context.Context) ([]*Case, error) {
	cases, err := q.store.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := cases[:0:0]
	for _, c := range cases {
		if c.Status == StatusPending || c.Status == StatusAudioValidated {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// Stats returns per-status case counts.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	cases, err := q.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	s.Total = len(cases)
	for _, c := range cases {
		switch c.Status {
		case StatusPending:
			s.Pending++
		case StatusAudioValidated:
			s.AudioValidated++
		case StatusCompleted:
			s.Completed++
		}
	}
	return s, nil
}

func (q *Queue) lock(id string) {
	q.locks[stripe(id)].Lock()
}

func (q *Queue) unlock(id string) {
	q.locks[stripe(id)].Unlock()
}

func stripe(id string) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % lockStripes)
}

// newCaseID derives an id from the creation time plus a random
// disambiguator: qc_<unix>_<uuid prefix>.
func newCaseID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("qc_%d_%s", t.Unix(), suffix)
}

func isDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

func equalValidation(a, b *crossval.Result) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(aj) == string(bj)
}
