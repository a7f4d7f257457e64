package ratelimit

// Config is the admission controller configuration.
type Config struct {
	PoliciesFile   string `env:"RATE_LIMIT_POLICIES_FILE"`
	RecordRejected bool   `env:"RATE_LIMIT_RECORD_REJECTED" envDefault:"true"`
	// Store selects the backend: "redis" or "memory".
	Store string `env:"RATE_LIMIT_STORE" envDefault:"redis"`
}
