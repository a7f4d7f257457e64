package sms

// Config configures the SMS channel.
type Config struct {
	// Provider is "mock" or "sns".
	Provider     string  `env:"SMS_PROVIDER" envDefault:"mock"`
	SenderID     string  `env:"SMS_SENDER_ID" envDefault:"Statuscast"`
	SMSType      string  `env:"SMS_TYPE" envDefault:"Transactional"`
	Region       string  `env:"SMS_AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID  string  `env:"SMS_AWS_ACCESS_KEY_ID"`
	SecretKey    string  `env:"SMS_AWS_SECRET_ACCESS_KEY"`
	Endpoint     string  `env:"SMS_AWS_ENDPOINT"`
	RatePerSec   float64 `env:"SMS_RATE_PER_SEC" envDefault:"10"`
	RateBurst    int     `env:"SMS_RATE_BURST" envDefault:"5"`
	MaxBodyChars int     `env:"SMS_MAX_BODY_CHARS" envDefault:"1600"`
}

// Provider names.
const (
	ProviderMock = "mock"
	ProviderSNS  = "sns"
)
