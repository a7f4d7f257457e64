package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces for testing and local development
type MemoryStorage struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]*Job
	pending   []uuid.UUID
	history   map[JobStatus][]uuid.UUID // newest first
	retention Retention

	// Lock management
	lockTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...StorageOption) *MemoryStorage {
	o := newStorageOptions(opts)
	ms := &MemoryStorage{
		jobs:      make(map[uuid.UUID]*Job),
		history:   make(map[JobStatus][]uuid.UUID),
		retention: o.retention,
		done:      make(chan struct{}),
	}

	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background goroutines
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

// CreateJob implements EnqueuerRepository
func (ms *MemoryStorage) CreateJob(_ context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	jobCopy := cloneJob(job)
	ms.jobs[job.ID] = jobCopy
	ms.pending = append(ms.pending, job.ID)

	return nil
}

// ClaimJob implements WorkerRepository
func (ms *MemoryStorage) ClaimJob(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	ms.expireLocksLocked(now)

	var best *Job
	for _, id := range ms.pending {
		job := ms.jobs[id]
		if !slices.Contains(queues, job.Queue) || job.ScheduledAt.After(now) {
			continue
		}
		// earliest scheduled first
		if best == nil || job.ScheduledAt.Before(best.ScheduledAt) {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = JobStatusProcessing
	best.Attempts++
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID
	best.ProcessedAt = &now
	ms.pending = slices.DeleteFunc(ms.pending, func(id uuid.UUID) bool { return id == best.ID })

	return cloneJob(best), nil
}

// CompleteJob implements WorkerRepository
func (ms *MemoryStorage) CompleteJob(_ context.Context, workerID, jobID uuid.UUID, result json.RawMessage) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.processingLocked(workerID, jobID)
	if err != nil {
		return err
	}
	job.Result = slices.Clone(result)
	ms.finishLocked(job, JobStatusCompleted)
	return nil
}

// RetryJob implements WorkerRepository
func (ms *MemoryStorage) RetryJob(_ context.Context, workerID, jobID uuid.UUID, errorMsg string, retryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.processingLocked(workerID, jobID)
	if err != nil {
		return err
	}
	job.Status = JobStatusPending
	job.Error = errorMsg
	job.ScheduledAt = retryAt
	job.LockedUntil = nil
	job.LockedBy = nil
	ms.pending = append(ms.pending, jobID)
	return nil
}

// FailJob implements WorkerRepository
func (ms *MemoryStorage) FailJob(_ context.Context, workerID, jobID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.processingLocked(workerID, jobID)
	if err != nil {
		return err
	}
	job.Error = errorMsg
	ms.finishLocked(job, JobStatusFailed)
	return nil
}

// GetJob implements HistoryRepository
func (ms *MemoryStorage) GetJob(_ context.Context, jobID uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// History implements HistoryRepository
func (ms *MemoryStorage) History(_ context.Context, status JobStatus, limit int) ([]Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ids := ms.history[status]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, *cloneJob(ms.jobs[id]))
	}
	return jobs, nil
}

func (ms *MemoryStorage) processingLocked(workerID, jobID uuid.UUID) (*Job, error) {
	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status != JobStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrJobNotProcessing, jobID)
	}
	if job.LockedBy == nil || *job.LockedBy != workerID {
		return nil, fmt.Errorf("%w: %s", ErrJobNotOwned, jobID)
	}
	return job, nil
}

// finishLocked moves job to the terminal history and prunes the oldest
// entries beyond the retention limit.
func (ms *MemoryStorage) finishLocked(job *Job, status JobStatus) {
	now := time.Now()
	job.Status = status
	job.FinishedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil

	ids := append([]uuid.UUID{job.ID}, ms.history[status]...)
	if limit := ms.retention.limit(status); len(ids) > limit {
		for _, id := range ids[limit:] {
			delete(ms.jobs, id)
		}
		ids = ids[:limit]
	}
	ms.history[status] = ids
}

// lockExpirationManager returns jobs held by dead workers to the queue.
// The lock duration should be longer than the expected job run time.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case now := <-ms.lockTicker.C:
			ms.mu.Lock()
			ms.expireLocksLocked(now)
			ms.mu.Unlock()
		case <-ms.done:
			return
		}
	}
}

// expireLocksLocked releases processing jobs whose lock has passed. Jobs
// with attempts left go back to pending, the rest move to failed.
func (ms *MemoryStorage) expireLocksLocked(now time.Time) {
	for id, job := range ms.jobs {
		if job.Status != JobStatusProcessing || job.LockedUntil == nil || !job.LockedUntil.Before(now) {
			continue
		}
		if job.exhausted() {
			job.Error = ErrLockExpired.Error()
			ms.finishLocked(job, JobStatusFailed)
			continue
		}
		job.Status = JobStatusPending
		job.LockedUntil = nil
		job.LockedBy = nil
		ms.pending = append(ms.pending, id)
	}
}

func cloneJob(job *Job) *Job {
	c := *job
	c.Payload = slices.Clone(job.Payload)
	c.Result = slices.Clone(job.Result)
	return &c
}
