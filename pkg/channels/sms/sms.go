// Package sms sends notifications as text messages through Amazon SNS.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
)

// Name is the registry name of the channel.
const Name = "sms"

var (
	ErrInvalidPhone  = errors.New("sms: invalid phone number")
	ErrPublishFailed = errors.New("sms: publish failed")
	ErrOptedOut      = errors.New("sms: recipient opted out")
	ErrThrottled     = errors.New("sms: provider throttled request")
)

var (
	phoneRegex    = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	senderIDRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,11}$`)
)

// Channel sends notifications as SMS.
type Channel struct {
	cfg       Config
	publisher Publisher
	limiter   *rate.Limiter
	resolve   notifications.Resolver
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithPublisher sets the SNS publisher used by the sns provider.
func WithPublisher(p Publisher) Option {
	return func(c *Channel) {
		c.publisher = p
	}
}

// WithResolver sets how recipient ids map to phone numbers.
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

func New(cfg Config, opts ...Option) *Channel {
	cfg.Provider = strings.ToLower(cfg.Provider)
	if cfg.Provider == "" {
		cfg.Provider = ProviderMock
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	c := &Channel{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		resolve: notifications.PlaceholderPhone,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Name() string { return Name }

// ValidateConfig requires an alphanumeric sender id of at most 11
// characters, and a publisher for the sns provider.
func (c *Channel) ValidateConfig() error {
	if c.cfg.SenderID == "" {
		return notifications.NewConfigError(Name, "senderId is required")
	}
	if !senderIDRegex.MatchString(c.cfg.SenderID) {
		return notifications.NewConfigError(Name, "senderId must be 1-11 alphanumeric characters")
	}
	switch c.cfg.Provider {
	case ProviderMock:
		return nil
	case ProviderSNS:
		if c.publisher == nil {
			return notifications.NewConfigError(Name, "client is required for provider %s", c.cfg.Provider)
		}
		return nil
	default:
		return notifications.NewConfigError(Name, "unsupported provider %s", c.cfg.Provider)
	}
}

func (c *Channel) Send(ctx context.Context, msg notifications.Message) (notifications.Receipt, error) {
	to, err := c.resolve(ctx, msg.Recipient)
	if err != nil {
		return notifications.Receipt{}, fmt.Errorf("failed to resolve phone number: %w", err)
	}
	if !phoneRegex.MatchString(to) {
		return notifications.Receipt{}, fmt.Errorf("%w: %q", ErrInvalidPhone, to)
	}

	body := msg.Body
	if c.cfg.MaxBodyChars > 0 {
		if r := []rune(body); len(r) > c.cfg.MaxBodyChars {
			body = string(r[:c.cfg.MaxBodyChars])
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return notifications.Receipt{}, err
	}

	var id string
	if c.cfg.Provider == ProviderMock {
		id = fmt.Sprintf("sms_mock_%d", c.now().UnixMilli())
	} else {
		if err := c.ValidateConfig(); err != nil {
			return notifications.Receipt{}, err
		}
		if id, err = c.publish(ctx, to, body); err != nil {
			return notifications.Receipt{}, err
		}
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "sms sent",
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

func (c *Channel) publish(ctx context.Context, to, body string) (string, error) {
	smsType := c.cfg.SMSType
	if smsType == "" {
		smsType = "Transactional"
	}

	out, err := c.publisher.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(c.cfg.SenderID),
			},
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(smsType),
			},
		},
	})
	if err != nil {
		return "", classifyPublishError(err)
	}
	return aws.ToString(out.MessageId), nil
}

// classifyPublishError maps SNS API errors to package errors.
func classifyPublishError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); code {
		case "OptedOut":
			return fmt.Errorf("%w: %s", ErrOptedOut, apiErr.ErrorMessage())
		case "Throttling", "ThrottledException", "ThrottlingException":
			return fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
		default:
			return fmt.Errorf("%w (code: %s): %w", ErrPublishFailed, code, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrPublishFailed, err)
}
