package changefeed

import "time"

type Config struct {
	// RestartDelay is how long the listener waits before reopening a feed
	// that failed or closed.
	RestartDelay time.Duration `env:"CHANGEFEED_RESTART_DELAY" envDefault:"5s"`
}
