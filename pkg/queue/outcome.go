package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/statuscast/pkg/broadcast"
)

// Outcome reports how one execution of a job ended. Status is
// JobStatusPending when the job was rescheduled for another attempt.
type Outcome struct {
	JobID    uuid.UUID
	Name     string
	Queue    string
	Status   JobStatus
	Attempt  int
	Result   json.RawMessage
	Err      error
	RetryAt  *time.Time
	Duration time.Duration
}

// Retrying reports whether the job will run again.
func (o Outcome) Retrying() bool {
	return o.Status == JobStatusPending
}

// Outcomes subscribes to job outcomes until ctx is done. A subscriber that
// falls behind is dropped.
func (w *Worker) Outcomes(ctx context.Context) broadcast.Subscriber[Outcome] {
	return w.outcomes.Subscribe(ctx)
}

func (w *Worker) publish(o Outcome) {
	_ = w.outcomes.Broadcast(context.Background(), broadcast.Message[Outcome]{Data: o})
}
