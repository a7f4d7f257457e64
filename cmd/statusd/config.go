package main

import "time"

// Storage backends selectable per component.
const (
	storeMongo  = "mongo"
	storeRedis  = "redis"
	storeMemory = "memory"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"APP_NAME" envDefault:"statuscast"`

	// StatusStore is "mongo" or "memory".
	StatusStore      string `env:"STATUS_STORE" envDefault:"mongo"`
	StatusCollection string `env:"STATUS_COLLECTION" envDefault:"analysisevents"`

	// TaskLimit caps concurrently running background tasks.
	TaskLimit       int           `env:"APP_TASK_LIMIT" envDefault:"64"`
	TaskStopTimeout time.Duration `env:"APP_TASK_STOP_TIMEOUT" envDefault:"10s"`

	// QueuedNoticeTitle is pushed to the owner of a newly created analysis.
	QueuedNoticeTitle string `env:"APP_QUEUED_NOTICE_TITLE" envDefault:"Analysis queued"`
}
