package whatsapp

import "time"

// Config configures the WhatsApp channel.
type Config struct {
	// Provider is "mock" or the name of an HTTP messaging provider.
	Provider   string        `env:"WHATSAPP_PROVIDER" envDefault:"mock"`
	APIKey     string        `env:"WHATSAPP_API_KEY"`
	APIURL     string        `env:"WHATSAPP_API_URL"`
	FromNumber string        `env:"WHATSAPP_FROM_NUMBER"`
	AppName    string        `env:"WHATSAPP_APP_NAME" envDefault:"Statuscast"`
	Timeout    time.Duration `env:"WHATSAPP_TIMEOUT" envDefault:"10s"`
	RetryMax   int           `env:"WHATSAPP_RETRY_MAX" envDefault:"3"`
	RatePerSec float64       `env:"WHATSAPP_RATE_PER_SEC" envDefault:"20"`
	RateBurst  int           `env:"WHATSAPP_RATE_BURST" envDefault:"5"`
}

// ProviderMock accepts messages without calling out.
const ProviderMock = "mock"
