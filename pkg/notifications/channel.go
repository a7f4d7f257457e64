package notifications

import (
	"context"
	"fmt"
	"time"
)

// Channel delivers a message through one medium.
type Channel interface {
	// Name is the registry name of the channel.
	Name() string
	// Send delivers msg and returns the provider receipt.
	Send(ctx context.Context, msg Message) (Receipt, error)
	// ValidateConfig reports a *ConfigError when the channel cannot send.
	ValidateConfig() error
}

// Message is what a channel receives for one delivery.
type Message struct {
	JobID     string
	Recipient string
	Subject   string
	Body      string
	Options   Options
}

// Receipt describes an accepted delivery.
type Receipt struct {
	Provider  string    `json:"provider"`
	MessageID string    `json:"messageId"`
	To        string    `json:"to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Resolver maps a recipient id to a channel address.
type Resolver func(ctx context.Context, recipient string) (string, error)

// PlaceholderEmail resolves recipient ids to example.com mailboxes.
func PlaceholderEmail(_ context.Context, recipient string) (string, error) {
	return fmt.Sprintf("user%s@example.com", recipient), nil
}

// PlaceholderPhone resolves recipient ids to +1555000 numbers ending with
// the last four characters of the id.
func PlaceholderPhone(_ context.Context, recipient string) (string, error) {
	tail := recipient
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return "+1555000" + tail, nil
}
