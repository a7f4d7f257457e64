package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/statuscast/pkg/queue"
)

// Enqueuer submits jobs to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

// Retry policy of notification jobs.
const (
	DefaultMaxAttempts  = 3
	DefaultBackoffDelay = queue.DefaultBackoffDelay
)

// Service validates notification requests and turns them into jobs.
type Service struct {
	enqueuer Enqueuer
	history  queue.HistoryRepository
	opts     []queue.EnqueueOption
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHistory enables job lookups through repo.
func WithHistory(repo queue.HistoryRepository) ServiceOption {
	return func(s *Service) {
		s.history = repo
	}
}

// WithEnqueueOptions appends options applied to every enqueued job.
func WithEnqueueOptions(opts ...queue.EnqueueOption) ServiceOption {
	return func(s *Service) {
		s.opts = append(s.opts, opts...)
	}
}

func NewService(enqueuer Enqueuer, opts ...ServiceOption) (*Service, error) {
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	s := &Service{
		enqueuer: enqueuer,
		opts: []queue.EnqueueOption{
			queue.WithJobName(JobName),
			queue.WithMaxAttempts(DefaultMaxAttempts),
			queue.WithBackoff(queue.Backoff{Type: queue.BackoffExponential, Delay: DefaultBackoffDelay}),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enqueue validates req and submits it as a notification job.
func (s *Service) Enqueue(ctx context.Context, req Request) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}
	return s.enqueuer.Enqueue(ctx, req, s.opts...)
}

// Job returns a notification job by id.
func (s *Service) Job(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.GetJob(ctx, id)
}

// History returns the retained jobs with the given terminal status.
func (s *Service) History(ctx context.Context, status queue.JobStatus, limit int) ([]queue.Job, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.History(ctx, status, limit)
}
