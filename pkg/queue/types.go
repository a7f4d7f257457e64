package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// Default retry and retention policy.
const (
	DefaultMaxAttempts   = 3
	DefaultBackoffDelay  = 2 * time.Second
	DefaultKeepCompleted = 100
	DefaultKeepFailed    = 50
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job will not run again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BackoffType selects how the retry delay grows.
type BackoffType string

const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

// Backoff is the delay policy between attempts.
type Backoff struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// DefaultBackoff doubles from 2s: 2s, 4s, 8s...
func DefaultBackoff() Backoff {
	return Backoff{Type: BackoffExponential, Delay: DefaultBackoffDelay}
}

// Next returns the delay before the retry that follows the given failed
// attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Type == BackoffFixed {
		return b.Delay
	}
	// cap the shift, delays past 2^20 * base are not meaningful
	return b.Delay << min(attempt-1, 20)
}

// Job is a unit of work owned by the queue until it reaches a terminal state.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	Backoff     Backoff         `json:"backoff"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ScheduledAt time.Time       `json:"scheduledAt"`
	LockedUntil *time.Time      `json:"lockedUntil,omitempty"`
	LockedBy    *uuid.UUID      `json:"lockedBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

// exhausted reports whether the job has used all of its attempts.
func (j *Job) exhausted() bool {
	return j.MaxAttempts > 0 && j.Attempts >= j.MaxAttempts
}

// Retention bounds the terminal job history.
type Retention struct {
	Completed int
	Failed    int
}

// DefaultRetention keeps the last 100 completed and 50 failed jobs.
func DefaultRetention() Retention {
	return Retention{Completed: DefaultKeepCompleted, Failed: DefaultKeepFailed}
}

func (r Retention) limit(s JobStatus) int {
	if s == JobStatusFailed {
		return r.Failed
	}
	return r.Completed
}
