package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/statuscast/pkg/broadcast"
	"github.com/dmitrymomot/statuscast/pkg/logger"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimJob atomically claims the next ready job and increments its attempt counter
	ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Job, error)

	// CompleteJob stores the result and moves the job to the completed history.
	// It returns ErrJobNotOwned when workerID no longer holds the lock.
	CompleteJob(ctx context.Context, workerID, jobID uuid.UUID, result json.RawMessage) error

	// RetryJob records the error and makes the job claimable again at retryAt
	RetryJob(ctx context.Context, workerID, jobID uuid.UUID, errorMsg string, retryAt time.Time) error

	// FailJob records the error and moves the job to the failed history
	FailJob(ctx context.Context, workerID, jobID uuid.UUID, errorMsg string) error
}

// Worker processes jobs from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations
	outcomes *broadcast.MemoryBroadcaster[Outcome]

	// Configuration
	pullInterval time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger
	now          func() time.Time

	// State management
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new job worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:       []string{DefaultQueueName},
		pullInterval: time.Second,
		lockTimeout:  5 * time.Minute,
		concurrency:  5,
		logger:       slog.Default(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(options)
	}

	workerID := uuid.New()
	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     workerID,
		sem:          make(chan struct{}, options.concurrency),
		outcomes:     broadcast.NewMemoryBroadcaster[Outcome](128),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		logger:       options.logger.With(logger.Component("queue"), slog.String("worker_id", workerID.String())),
		now:          options.now,
	}, nil
}

// RegisterHandler registers a single job handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple job handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing jobs in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run(w.ctx)

	w.logger.Info("worker started",
		slog.Any("queues", w.queues),
		slog.Int("concurrency", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker. Jobs in flight run to completion.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	// Use stopMu to synchronize with run() goroutine
	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active jobs to complete")
	w.wg.Wait()
	w.logger.Info("worker stopped")

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main processing loop. Every tick fills the free slots with
// drainers that claim jobs until the queue has nothing ready.
func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.fillSlots(ctx)
		}
	}
}

func (w *Worker) fillSlots(ctx context.Context) {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			// all slots busy
			return
		}

		w.stopMu.Lock()
		if w.stopping.Load() {
			w.stopMu.Unlock()
			<-w.sem
			return
		}
		w.wg.Add(1)
		w.stopMu.Unlock()

		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()

			if err := w.drain(ctx); err != nil {
				w.logger.Error("failed to process job", logger.Error(err))
			}
		}()
	}
}

// drain claims and processes jobs until none is ready or the worker stops.
func (w *Worker) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		job, err := w.repo.ClaimJob(ctx, w.workerID, w.queues, w.lockTimeout)
		if err != nil {
			if errors.Is(err, ErrNoJobToClaim) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to claim job: %w", err)
		}

		w.logger.Debug("claimed job",
			logger.JobID(job.ID),
			logger.JobName(job.Name),
			logger.Attempt(job.Attempts),
			slog.String("queue", job.Queue))

		if err := w.processJob(job); err != nil && !errors.Is(err, ErrHandlerNotFound) {
			return err
		}
	}
	return nil
}

// processJob executes a job with its handler
func (w *Worker) processJob(job *Job) error {
	start := time.Now()

	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(job)
	}

	// not tied to the worker lifecycle so that shutdown lets jobs finish
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	result, err := w.execute(withJobInfo(ctx, job), handler, job)
	duration := time.Since(start)
	if err != nil {
		return w.handleJobFailure(job, err, duration)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return w.handleJobFailure(job, errors.Join(ErrResultMarshal, err), duration)
	}
	return w.handleJobSuccess(job, raw, duration)
}

// execute runs the handler and converts a panic into an error.
func (w *Worker) execute(ctx context.Context, handler Handler, job *Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				logger.JobID(job.ID),
				logger.JobName(job.Name),
				slog.Any("panic", r))
		}
	}()
	return handler.Handle(ctx, job.Payload)
}

// handleMissingHandler fails the job right away, retries cannot help.
func (w *Worker) handleMissingHandler(job *Job) error {
	w.logger.Error("no handler registered for job",
		logger.JobID(job.ID),
		logger.JobName(job.Name))

	ctx, cancel := storeContext()
	defer cancel()

	errorMsg := fmt.Sprintf("%s: %s", ErrHandlerNotFound, job.Name)
	if err := w.repo.FailJob(ctx, w.workerID, job.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to mark job %s as failed: %w", job.ID, err)
	}

	w.publish(Outcome{
		JobID:   job.ID,
		Name:    job.Name,
		Queue:   job.Queue,
		Status:  JobStatusFailed,
		Attempt: job.Attempts,
		Err:     fmt.Errorf("%w: %s", ErrHandlerNotFound, job.Name),
	})
	return ErrHandlerNotFound
}

// handleJobFailure reschedules the job with backoff while attempts remain,
// otherwise moves it to the failed history.
func (w *Worker) handleJobFailure(job *Job, execErr error, duration time.Duration) error {
	out := Outcome{
		JobID:    job.ID,
		Name:     job.Name,
		Queue:    job.Queue,
		Attempt:  job.Attempts,
		Err:      execErr,
		Duration: duration,
	}

	ctx, cancel := storeContext()
	defer cancel()

	if job.Attempts < job.MaxAttempts {
		retryAt := w.now().Add(job.Backoff.Next(job.Attempts))
		w.logger.Warn("job attempt failed, retrying",
			logger.JobID(job.ID),
			logger.JobName(job.Name),
			logger.Attempt(job.Attempts),
			slog.Int("max_attempts", job.MaxAttempts),
			slog.Time("retry_at", retryAt),
			logger.Error(execErr))

		if err := w.repo.RetryJob(ctx, w.workerID, job.ID, execErr.Error(), retryAt); err != nil {
			return fmt.Errorf("failed to reschedule job %s: %w", job.ID, err)
		}
		out.Status = JobStatusPending
		out.RetryAt = &retryAt
		w.publish(out)
		return nil
	}

	w.logger.Error("job failed",
		logger.JobID(job.ID),
		logger.JobName(job.Name),
		logger.Attempt(job.Attempts),
		slog.Duration("duration", duration),
		logger.Error(execErr))

	if err := w.repo.FailJob(ctx, w.workerID, job.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to mark job %s as failed: %w", job.ID, err)
	}
	out.Status = JobStatusFailed
	w.publish(out)
	return nil
}

// handleJobSuccess processes successful job completion
func (w *Worker) handleJobSuccess(job *Job, result json.RawMessage, duration time.Duration) error {
	ctx, cancel := storeContext()
	defer cancel()

	if err := w.repo.CompleteJob(ctx, w.workerID, job.ID, result); err != nil {
		return fmt.Errorf("failed to mark job %s as completed: %w", job.ID, err)
	}

	w.logger.Info("job completed",
		logger.JobID(job.ID),
		logger.JobName(job.Name),
		logger.Attempt(job.Attempts),
		slog.Duration("duration", duration))

	w.publish(Outcome{
		JobID:    job.ID,
		Name:     job.Name,
		Queue:    job.Queue,
		Status:   JobStatusCompleted,
		Attempt:  job.Attempts,
		Result:   result,
		Duration: duration,
	})
	return nil
}

// storeContext bounds bookkeeping calls made after the handler returned.
// It outlives Stop so that finished jobs are always recorded.
func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// WorkerInfo returns information about the worker
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}
