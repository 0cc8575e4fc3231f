package qc

import "context"

// CaseStore is the persistence capability behind the queue. Implementations
// must keep one durable record per case and never lose or duplicate a case
// on a crash mid-write.
type CaseStore interface {
	// Create stores a new case. Returns ErrDuplicateID if the id exists.
	Create(ctx context.Context, c *Case) error
	// Put replaces an existing case. Returns ErrNotFound for unknown ids.
	Put(ctx context.Context, c *Case) error
	// Get returns the case with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Case, error)
	// List returns all cases in no particular order.
	List(ctx context.Context) ([]*Case, error)
}
