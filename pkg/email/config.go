package email

import (
	"fmt"
	"strings"
)

// Config holds email service configuration.
// Postmark tokens are only required by the postmark provider. SenderEmail is
// the sender identity of every outbound email.
type Config struct {
	// Provider is "postmark", "dev" or "mock".
	Provider             string `env:"EMAIL_PROVIDER" envDefault:"mock"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@example.com"`
	SenderName           string `env:"SENDER_NAME" envDefault:"Statuscast"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
	// DefaultTag is used when a message has no tag of its own.
	DefaultTag string `env:"EMAIL_DEFAULT_TAG" envDefault:"notification"`
	DevDir     string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// Provider names.
const (
	ProviderPostmark = "postmark"
	ProviderDev      = "dev"
	ProviderMock     = "mock"
)

// Validate checks the settings the selected provider depends on.
func (c Config) Validate() error {
	switch {
	case c.SenderEmail == "":
		return fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	case !ValidAddress(c.SenderEmail):
		return fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	case c.SupportEmail != "" && !ValidAddress(c.SupportEmail):
		return fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	if strings.EqualFold(c.Provider, ProviderPostmark) {
		if c.PostmarkServerToken == "" {
			return fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
		}
		if c.PostmarkAccountToken == "" {
			return fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
		}
	}
	return nil
}

// From renders the From header: `Name <address>` or the bare address.
func (c Config) From() string {
	if c.SenderName == "" {
		return c.SenderEmail
	}
	return fmt.Sprintf("%s <%s>", c.SenderName, c.SenderEmail)
}
