package status

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/broadcast"
)

// Change is a write observed on a MemoryStore.
type Change struct {
	OperationType string
	Record        Record
}

// MemoryStore is a process-local Store that emits a Change for every write.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	changes *broadcast.MemoryBroadcaster[Change]
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		changes: broadcast.NewMemoryBroadcaster[Change](64),
		now:     time.Now,
	}
}

// Changes subscribes to writes made after the call.
func (s *MemoryStore) Changes(ctx context.Context) broadcast.Subscriber[Change] {
	return s.changes.Subscribe(ctx)
}

// Close ends every change subscription.
func (s *MemoryStore) Close() error {
	return s.changes.Close()
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return clone(rec), nil
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.AnalysisID]; ok {
		return Record{}, ErrAlreadyExists
	}
	rec = withDefaults(rec, s.now())
	s.records[rec.AnalysisID] = rec
	s.emit(ctx, "insert", rec)
	return clone(rec), nil
}

// Replace stores rec as is, creating or overwriting it.
func (s *MemoryStore) Replace(ctx context.Context, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = s.now()
	s.records[rec.AnalysisID] = rec
	s.emit(ctx, "replace", rec)
}

func (s *MemoryStore) Cancel(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return Record{}, fmt.Errorf("%w: current status: %s", ErrNotCancellable, rec.Status)
	}

	rec.Status = Cancelled
	rec.CurrentStage = string(Cancelled)
	rec.UpdatedAt = s.now()
	s.records[id] = rec
	s.emit(ctx, "update", rec)
	return clone(rec), nil
}

func (s *MemoryStore) Apply(ctx context.Context, id string, p Patch) (Record, error) {
	if err := p.Validate(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return Record{}, fmt.Errorf("%w: current status: %s", ErrTerminal, rec.Status)
	}

	now := s.now()
	rec.Status = p.Status
	rec.CurrentStage = p.stage()
	rec.UpdatedAt = now
	if p.Error != "" {
		rec.Error = p.Error
	}
	if p.Progress != nil {
		rec.Progress = max(rec.Progress, *p.Progress)
	}
	if p.Status == Completed {
		rec.Progress = 100
		rec.Results = maps.Clone(p.Results)
		rec.CompletedAt = &now
	}

	s.records[id] = rec
	s.emit(ctx, "update", rec)
	return clone(rec), nil
}

// emit must be called with s.mu held so changes are published in write order.
func (s *MemoryStore) emit(ctx context.Context, op string, rec Record) {
	_ = s.changes.Broadcast(ctx, broadcast.Message[Change]{Data: Change{OperationType: op, Record: clone(rec)}})
}

func clone(rec Record) Record {
	rec.Results = maps.Clone(rec.Results)
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		rec.CompletedAt = &t
	}
	return rec
}
