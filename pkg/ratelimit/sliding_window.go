package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/logger"
)

// SlidingWindow admits requests by counting timestamped entries in a
// trailing window per key. Store failures fail open: the request is allowed
// and a degraded result is returned.
type SlidingWindow struct {
	store          Store
	logger         *slog.Logger
	now            func() time.Time
	recordRejected bool
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(l *slog.Logger) Option {
	return func(sw *SlidingWindow) {
		if l != nil {
			sw.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(sw *SlidingWindow) {
		if now != nil {
			sw.now = now
		}
	}
}

// WithRecordRejected controls whether rejected attempts still occupy a slot
// in the window. Enabled by default: repeated rejected bursts keep the key
// throttled until they age out.
func WithRecordRejected(record bool) Option {
	return func(sw *SlidingWindow) {
		sw.recordRejected = record
	}
}

// NewSlidingWindow creates a sliding window admission controller.
func NewSlidingWindow(store Store, opts ...Option) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	sw := &SlidingWindow{
		store:          store,
		logger:         slog.Default(),
		now:            time.Now,
		recordRejected: true,
	}
	for _, opt := range opts {
		opt(sw)
	}
	sw.logger = sw.logger.With(logger.Component("ratelimit"))

	return sw, nil
}

// RecordsRejected reports whether rejected attempts are recorded.
func (sw *SlidingWindow) RecordsRejected() bool {
	return sw.recordRejected
}

// Check decides whether one more request for key fits into limit requests
// per window. Errors are returned only for invalid arguments.
func (sw *SlidingWindow) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if err := validate(key, limit, window); err != nil {
		return Result{}, err
	}

	now := sw.now()
	state, err := sw.store.Record(ctx, key, now, window, limit, !sw.recordRejected)
	if err != nil {
		sw.logger.LogAttrs(ctx, slog.LevelWarn, "rate limit store unavailable, allowing request",
			slog.String("key", key),
			logger.Error(err),
		)
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - 1,
			ResetAt:   now.Add(window),
			Degraded:  true,
		}, nil
	}

	allowed := state.Count < limit
	used := state.Count
	if allowed {
		used++
	}

	res := Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(0, limit-used),
		ResetAt:   resetAt(state, now, window),
	}
	if !allowed {
		res.RetryAfter = retryAfterSeconds(res.ResetAt.Sub(now))
	}
	return res, nil
}

// Status reports the current usage of key without recording an attempt.
func (sw *SlidingWindow) Status(ctx context.Context, key string, limit int, window time.Duration) (Usage, error) {
	if err := validate(key, limit, window); err != nil {
		return Usage{}, err
	}

	now := sw.now()
	state, err := sw.store.Inspect(ctx, key, now, window)
	if err != nil {
		sw.logger.LogAttrs(ctx, slog.LevelWarn, "rate limit status unavailable",
			slog.String("key", key),
			logger.Error(err),
		)
		return Usage{
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now.Add(window),
			Window:    window,
			Degraded:  true,
		}, nil
	}

	return Usage{
		Limit:     limit,
		Used:      state.Count,
		Remaining: max(0, limit-state.Count),
		ResetAt:   resetAt(state, now, window),
		Window:    window,
	}, nil
}

// Reset clears the window for key.
func (sw *SlidingWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return sw.store.Delete(ctx, key)
}

func validate(key string, limit int, window time.Duration) error {
	switch {
	case key == "":
		return ErrKeyRequired
	case limit <= 0:
		return ErrInvalidLimit
	case window <= 0:
		return ErrInvalidWindow
	}
	return nil
}

// resetAt is when the oldest surviving entry leaves the window, or a full
// window from now when the window was empty before this call.
func resetAt(state WindowState, now time.Time, window time.Duration) time.Time {
	if state.Count == 0 || state.Oldest.IsZero() {
		return now.Add(window)
	}
	return state.Oldest.Add(window)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	return max(secs, 1)
}
