package queue

import "time"

// Config holds the configuration for the job queue
type Config struct {
	PullInterval    time.Duration `env:"QUEUE_PULL_INTERVAL" envDefault:"1s"`
	LockTimeout     time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Concurrency     int           `env:"QUEUE_CONCURRENCY" envDefault:"5"`
	KeepCompleted   int           `env:"QUEUE_KEEP_COMPLETED" envDefault:"100"`
	KeepFailed      int           `env:"QUEUE_KEEP_FAILED" envDefault:"50"`
	// Storage is "redis" or "memory".
	Storage     string `env:"QUEUE_STORAGE" envDefault:"redis"`
	RedisPrefix string `env:"QUEUE_REDIS_PREFIX" envDefault:"queue"`
}

// Retention returns the history bounds from the config.
func (c Config) Retention() Retention {
	r := DefaultRetention()
	if c.KeepCompleted > 0 {
		r.Completed = c.KeepCompleted
	}
	if c.KeepFailed > 0 {
		r.Failed = c.KeepFailed
	}
	return r
}
