package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for job creation
type EnqueuerRepository interface {
	CreateJob(ctx context.Context, job *Job) error
}

// Enqueuer handles job enqueueing
type Enqueuer struct {
	repo         EnqueuerRepository
	defaultQueue string
	maxAttempts  int
	backoff      Backoff
	now          func() time.Time
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue: DefaultQueueName,
		maxAttempts:  DefaultMaxAttempts,
		backoff:      DefaultBackoff(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:         repo,
		defaultQueue: options.defaultQueue,
		maxAttempts:  options.maxAttempts,
		backoff:      options.backoff,
		now:          options.now,
	}, nil
}

// Enqueue adds a new job to the queue and returns its id
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:       e.defaultQueue,
		maxAttempts: e.maxAttempts,
		backoff:     e.backoff,
	}
	for _, opt := range opts {
		opt(options)
	}

	job, err := e.buildJob(payload, options)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job %q in queue %q: %w", job.Name, job.Queue, err)
	}

	return job.ID, nil
}

// buildJob constructs a Job from payload and options
func (e *Enqueuer) buildJob(payload any, options *enqueueOptions) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(ErrPayloadMarshal, fmt.Errorf("payload of type %T: %w", payload, err))
	}

	name := options.name
	if name == "" {
		name = qualifiedStructName(payload)
	}

	now := e.now()
	scheduledAt := now
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = now.Add(options.delay)
	}

	return &Job{
		ID:          uuid.New(),
		Queue:       options.queue,
		Name:        name,
		Payload:     payloadBytes,
		Status:      JobStatusPending,
		MaxAttempts: options.maxAttempts,
		Backoff:     options.backoff,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}, nil
}
