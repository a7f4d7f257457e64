// Package email adapts transactional email senders to the notification
// channel interface.
package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	mailer "github.com/dmitrymomot/statuscast/pkg/email"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
)

// Name is the registry name of the channel.
const Name = "email"

// Channel sends notifications as emails.
type Channel struct {
	sender  mailer.EmailSender
	cfg     mailer.Config
	resolve notifications.Resolver
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithResolver sets how recipient ids map to email addresses.
func WithResolver(r notifications.Resolver) Option {
	return func(c *Channel) {
		c.resolve = r
	}
}

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

// New creates an email channel. A nil sender is built from cfg.
func New(sender mailer.EmailSender, cfg mailer.Config, opts ...Option) (*Channel, error) {
	if cfg.Provider == "" {
		cfg.Provider = mailer.ProviderMock
	}
	cfg.Provider = strings.ToLower(cfg.Provider)

	if sender == nil {
		s, err := mailer.NewSender(cfg)
		if err != nil {
			return nil, err
		}
		sender = s
	}

	c := &Channel{
		sender:  sender,
		cfg:     cfg,
		resolve: notifications.PlaceholderEmail,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Channel) Name() string { return Name }

// ValidateConfig requires a valid sender address, and a server token for
// the postmark provider.
func (c *Channel) ValidateConfig() error {
	if c.cfg.SenderEmail == "" {
		return notifications.NewConfigError(Name, "fromEmail is required")
	}
	if !mailer.ValidAddress(c.cfg.SenderEmail) {
		return notifications.NewConfigError(Name, "fromEmail must be a valid email address")
	}
	if c.cfg.Provider == mailer.ProviderPostmark && c.cfg.PostmarkServerToken == "" {
		return notifications.NewConfigError(Name, "apiKey is required for provider %s", c.cfg.Provider)
	}
	return nil
}

func (c *Channel) Send(ctx context.Context, msg notifications.Message) (notifications.Receipt, error) {
	to, err := c.resolve(ctx, msg.Recipient)
	if err != nil {
		return notifications.Receipt{}, fmt.Errorf("failed to resolve email address: %w", err)
	}

	subject := msg.Subject
	if subject == "" {
		subject = notifications.DefaultSubject
	}

	id, err := c.sender.SendEmail(ctx, mailer.SendEmailParams{
		SendTo:   to,
		Subject:  subject,
		BodyText: msg.Body,
		BodyHTML: renderHTML(msg.Body),
		Tag:      msg.Options.Template,
	})
	if err != nil {
		if errors.Is(err, mailer.ErrRecipientRejected) {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "email recipient rejected by provider",
				logger.Channel(Name),
				logger.Recipient(to),
				logger.Error(err))
		}
		return notifications.Receipt{}, err
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "email sent",
		logger.Channel(Name),
		logger.Recipient(to),
		slog.String("message_id", id))

	return notifications.Receipt{
		Provider:  c.cfg.Provider,
		MessageID: id,
		To:        to,
		Timestamp: c.now(),
	}, nil
}

// renderHTML wraps each line of body in an escaped paragraph.
func renderHTML(body string) string {
	var b strings.Builder
	for line := range strings.Lines(body) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>\n")
	}
	return b.String()
}
