package hub

import "time"

type Config struct {
	// SendBuffer is the per-connection outbound queue length. A connection
	// whose queue is full misses the update and is dropped from the topic.
	SendBuffer      int           `env:"HUB_SEND_BUFFER" envDefault:"32"`
	WriteWait       time.Duration `env:"HUB_WRITE_WAIT" envDefault:"10s"`
	PongWait        time.Duration `env:"HUB_PONG_WAIT" envDefault:"60s"`
	PingPeriod      time.Duration `env:"HUB_PING_PERIOD" envDefault:"54s"`
	MaxMessageSize  int64         `env:"HUB_MAX_MESSAGE_SIZE" envDefault:"65536"`
	SnapshotTimeout time.Duration `env:"HUB_SNAPSHOT_TIMEOUT" envDefault:"5s"`
	// AllowedOrigins restricts the websocket upgrade. Empty allows any origin.
	AllowedOrigins []string `env:"HUB_ALLOWED_ORIGINS" envSeparator:","`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:      32,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageSize:  64 << 10,
		SnapshotTimeout: 5 * time.Second,
	}
}
