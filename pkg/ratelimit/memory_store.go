package ratelimit

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Suitable for tests and single
// instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

type window struct {
	entries   []time.Time
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired keys are dropped.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// NewMemoryStore creates a MemoryStore and starts its cleanup loop.
// Call Close to stop it.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:         make(map[string]*window),
		cleanupInterval: time.Minute,
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) Record(_ context.Context, key string, now time.Time, win time.Duration, limit int, onlyIfAllowed bool) (WindowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.prune(key, now, win)
	count := len(w.entries)

	if !onlyIfAllowed || count < limit {
		// keep entries sorted so the oldest is always first
		i, _ := slices.BinarySearchFunc(w.entries, now, func(a, b time.Time) int { return a.Compare(b) })
		w.entries = slices.Insert(w.entries, i+countEqual(w.entries[i:], now), now)
	}
	w.expiresAt = now.Add(win + expiryGrace)

	return stateOf(w, count), nil
}

func (s *MemoryStore) Inspect(_ context.Context, key string, now time.Time, win time.Duration) (WindowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		return WindowState{}, nil
	}
	w = s.prune(key, now, win)
	return stateOf(w, len(w.entries)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()
	return nil
}

// Close stops the cleanup loop. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// prune must be called with s.mu held.
func (s *MemoryStore) prune(key string, now time.Time, win time.Duration) *window {
	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}

	boundary := now.Add(-win)
	cut := 0
	for cut < len(w.entries) && !w.entries[cut].After(boundary) {
		cut++
	}
	if cut > 0 {
		w.entries = slices.Delete(w.entries, 0, cut)
	}
	return w
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, w := range s.windows {
		if now.After(w.expiresAt) {
			delete(s.windows, key)
		}
	}
}

func stateOf(w *window, count int) WindowState {
	st := WindowState{Count: count}
	if len(w.entries) > 0 {
		st.Oldest = w.entries[0]
	}
	return st
}

func countEqual(entries []time.Time, t time.Time) int {
	n := 0
	for n < len(entries) && entries[n].Equal(t) {
		n++
	}
	return n
}
