package queue

import (
	"context"

	"github.com/google/uuid"
)

// HistoryRepository reads jobs back for inspection.
type HistoryRepository interface {
	// GetJob returns a job in any state. Terminal jobs pruned from the
	// history are reported as ErrJobNotFound.
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// History returns up to limit terminal jobs of the given status, newest first.
	History(ctx context.Context, status JobStatus, limit int) ([]Job, error)
}

// StorageOption configures the bundled storages.
type StorageOption func(*storageOptions)

type storageOptions struct {
	retention Retention
	prefix    string
}

// WithRetention bounds the completed and failed history.
func WithRetention(r Retention) StorageOption {
	return func(o *storageOptions) {
		if r.Completed > 0 {
			o.retention.Completed = r.Completed
		}
		if r.Failed > 0 {
			o.retention.Failed = r.Failed
		}
	}
}

// WithKeyPrefix sets the Redis key prefix. Ignored by MemoryStorage.
func WithKeyPrefix(prefix string) StorageOption {
	return func(o *storageOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

func newStorageOptions(opts []StorageOption) storageOptions {
	o := storageOptions{retention: DefaultRetention(), prefix: "queue"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
