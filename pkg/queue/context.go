package queue

import (
	"context"

	"github.com/google/uuid"
)

type jobInfoKey struct{}

// JobInfo describes the job a handler is executing.
type JobInfo struct {
	ID          uuid.UUID
	Name        string
	Queue       string
	Attempt     int
	MaxAttempts int
}

func withJobInfo(ctx context.Context, job *Job) context.Context {
	return context.WithValue(ctx, jobInfoKey{}, JobInfo{
		ID:          job.ID,
		Name:        job.Name,
		Queue:       job.Queue,
		Attempt:     job.Attempts,
		MaxAttempts: job.MaxAttempts,
	})
}

// JobInfoFromContext returns the job being executed, if any.
func JobInfoFromContext(ctx context.Context) (JobInfo, bool) {
	info, ok := ctx.Value(jobInfoKey{}).(JobInfo)
	return info, ok
}
