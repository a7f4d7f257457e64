package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the wait in whole seconds, rounded up. Zero when allowed.
	RetryAfter int
	// Degraded is set when the store failed and the request was let through.
	Degraded bool
}

// Usage is a read-only view of a key's window.
type Usage struct {
	Limit     int
	Used      int
	Remaining int
	ResetAt   time.Time
	Window    time.Duration
	Degraded  bool
}

// WindowState is what a store reports after pruning a key's window.
type WindowState struct {
	// Count is the number of entries that survived pruning, measured before
	// the current attempt was inserted.
	Count int
	// Oldest is the timestamp of the oldest entry left in the window after
	// the operation, zero when the window is empty.
	Oldest time.Time
}

// Store keeps per-key ordered timestamp collections.
type Store interface {
	// Record prunes entries at or before now-window, counts the survivors and
	// inserts an entry for now. When onlyIfAllowed is set the entry is
	// inserted only if the count is below limit. The key's expiry is
	// refreshed to window plus a grace period.
	Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int, onlyIfAllowed bool) (WindowState, error)

	// Inspect prunes and counts without inserting.
	Inspect(ctx context.Context, key string, now time.Time, window time.Duration) (WindowState, error)

	// Delete drops the key's window.
	Delete(ctx context.Context, key string) error
}

// Checker is the admission decision used by the HTTP middleware.
type Checker interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// expiryGrace is added to the window when refreshing a key's TTL so that
// abandoned keys clean themselves up.
const expiryGrace = 60 * time.Second
