package status

import (
	"context"
)

// Store reads and writes analysis records.
type Store interface {
	// FindByID returns ErrNotFound when no record exists.
	FindByID(ctx context.Context, id string) (Record, error)
	// Create inserts a queued record.
	Create(ctx context.Context, rec Record) (Record, error)
	// Cancel moves a non-terminal record to cancelled atomically.
	// Returns ErrNotFound or ErrNotCancellable.
	Cancel(ctx context.Context, id string) (Record, error)
	// Apply writes a transition to a non-terminal record.
	// Returns ErrNotFound, ErrTerminal or ErrInvalidPatch.
	Apply(ctx context.Context, id string, p Patch) (Record, error)
}

// MarkError moves a record to the error state with msg.
func MarkError(ctx context.Context, s Store, id, msg string) (Record, error) {
	return s.Apply(ctx, id, Patch{Status: Error, CurrentStage: string(Error), Error: msg})
}
