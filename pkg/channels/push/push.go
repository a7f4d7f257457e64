// Package push delivers notifications in-app to websocket subscribers.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/statuscast/pkg/hub"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
)

// Name is the registry name of the channel.
const Name = "push"

// Provider names.
const (
	ProviderMock  = "mock"
	ProviderInApp = "inapp"
)

// Config configures the push channel.
type Config struct {
	// Provider is "mock" or "inapp". Sender is the source shown on notices.
	Provider    string `env:"PUSH_PROVIDER" envDefault:"inapp"`
	TopicPrefix string `env:"PUSH_TOPIC_PREFIX" envDefault:"user:"`
	Sender      string `env:"PUSH_SENDER" envDefault:"Statuscast"`
}

// Notifier pushes a notice to the subscribers of a topic and reports how
// many received it.
type Notifier interface {
	Notify(topic string, n hub.Notice) int
}

// Channel pushes notifications to hub topics named TopicPrefix+recipient.
// Recipients without an open subscription miss the notice.
type Channel struct {
	cfg      Config
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger for the Channel.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// WithClock overrides the receipt clock.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) {
		c.now = now
	}
}

func New(cfg Config, notifier Notifier, opts ...Option) *Channel {
	cfg.Provider = strings.ToLower(cfg.Provider)
	if cfg.Provider == "" {
		cfg.Provider = ProviderInApp
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "user:"
	}

	c := &Channel{
		cfg:      cfg,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Name() string { return Name }

// Topic returns the hub topic of recipient.
func (c *Channel) Topic(recipient string) string {
	return c.cfg.TopicPrefix + recipient
}

// ValidateConfig requires a sender, and a notifier for the inapp provider.
func (c *Channel) ValidateConfig() error {
	if strings.TrimSpace(c.cfg.Sender) == "" {
		return notifications.NewConfigError(Name, "sender is required")
	}
	switch c.cfg.Provider {
	case ProviderMock:
		return nil
	case ProviderInApp:
		if c.notifier == nil {
			return notifications.NewConfigError(Name, "hub is required for provider %s", c.cfg.Provider)
		}
		return nil
	default:
		return notifications.NewConfigError(Name, "unsupported provider %s", c.cfg.Provider)
	}
}

func (c *Channel) Send(ctx context.Context, msg notifications.Message) (notifications.Receipt, error) {
	now := c.now()
	topic := c.Topic(msg.Recipient)

	if c.cfg.Provider == ProviderMock {
		return notifications.Receipt{
			Provider:  ProviderMock,
			MessageID: fmt.Sprintf("push_mock_%d", now.UnixMilli()),
			To:        topic,
			Timestamp: now,
		}, nil
	}
	if err := c.ValidateConfig(); err != nil {
		return notifications.Receipt{}, err
	}

	id := uuid.NewString()
	data := map[string]any{}
	maps.Copy(data, msg.Options.Data)
	if msg.JobID != "" {
		data["jobId"] = msg.JobID
	}
	if len(data) == 0 {
		data = nil
	}

	delivered := c.notifier.Notify(topic, hub.Notice{
		ID:      id,
		Source:  c.cfg.Sender,
		Title:   msg.Subject,
		Body:    msg.Body,
		Data:    data,
		Created: now.UTC().Format(hub.TimeFormat),
	})

	c.logger.LogAttrs(ctx, slog.LevelDebug, "push notice sent",
		logger.Channel(Name),
		logger.Topic(topic),
		slog.Int("delivered", delivered))

	return notifications.Receipt{
		Provider:  ProviderInApp,
		MessageID: id,
		To:        topic,
		Timestamp: now,
	}, nil
}
