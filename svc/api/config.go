package api

// Config holds HTTP API settings.
type Config struct {
	AllowedOrigins []string `env:"API_CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	CORSMaxAge     int      `env:"API_CORS_MAX_AGE" envDefault:"300"`
	// HistoryLimit is used when a history request does not set one.
	HistoryLimit    int `env:"API_HISTORY_LIMIT" envDefault:"20"`
	MaxHistoryLimit int `env:"API_HISTORY_MAX_LIMIT" envDefault:"100"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins:  []string{"*"},
		CORSMaxAge:      300,
		HistoryLimit:    20,
		MaxHistoryLimit: 100,
	}
}
