// Package whatsapp sends notifications as WhatsApp messages through an HTTP
// messaging API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
)

// Name is the registry name of the channel.
const Name = "whatsapp"

var (
	ErrInvalidPhone  = errors.New("whatsapp: invalid phone number")
	ErrProviderReply = errors.New("whatsapp: provider rejected message")
)

var phoneRegex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidPhone reports whether s is an E.164 phone number.
func ValidPhone(s string) bool {
	return phoneRegex.MatchString(s)
}

// Channel sends notifications through a WhatsApp messaging provider.
type Channel struct {
	cfg     Config
	client  *retryablehttp.Client
	limiter *rate.Limiter
	resolve notifications.Resolver
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithResolver sets how recipient ids map to phone numbers.
func WithResolver(r notifications.Resolver) Option {
	return func(c *Channel) {
		c.resolve = r
	}
}

// WithLogger sets the logger for the Channel and its HTTP client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Channel) {
		c.client.HTTPClient = hc
	}
}

// WithRetryWait sets the retry backoff bounds.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Channel) {
		c.client.RetryWaitMin = minWait
		c.client.RetryWaitMax = maxWait
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

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	c := &Channel{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		resolve: notifications.PlaceholderPhone,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client.Logger = c.logger
	return c
}

func (c *Channel) Name() string { return Name }

// ValidateConfig requires a sender number, and provider credentials unless
// the provider is mock.
func (c *Channel) ValidateConfig() error {
	if c.cfg.FromNumber == "" {
		return notifications.NewConfigError(Name, "fromNumber is required")
	}
	if !ValidPhone(c.cfg.FromNumber) {
		return notifications.NewConfigError(Name, "fromNumber must be a valid phone number with country code")
	}
	if c.cfg.Provider == ProviderMock {
		return nil
	}
	if c.cfg.APIKey == "" {
		return notifications.NewConfigError(Name, "apiKey is required for provider %s", c.cfg.Provider)
	}
	if c.cfg.APIURL == "" {
		return notifications.NewConfigError(Name, "apiUrl is required for provider %s", c.cfg.Provider)
	}
	return nil
}

// outbound is the provider request body.
type outbound struct {
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	App      string `json:"app,omitempty"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Template string `json:"template,omitempty"`
	Media    string `json:"media,omitempty"`
	Ref      string `json:"ref,omitempty"`
}

func (c *Channel) Send(ctx context.Context, msg notifications.Message) (notifications.Receipt, error) {
	to, err := c.resolve(ctx, msg.Recipient)
	if err != nil {
		return notifications.Receipt{}, fmt.Errorf("failed to resolve phone number: %w", err)
	}
	if !ValidPhone(to) {
		return notifications.Receipt{}, fmt.Errorf("%w: %q", ErrInvalidPhone, to)
	}

	body := outbound{
		To:       to,
		From:     c.cfg.FromNumber,
		App:      c.cfg.AppName,
		Type:     msg.Options.Type,
		Message:  msg.Body,
		Template: msg.Options.Template,
		Media:    msg.Options.Media,
		Ref:      msg.JobID,
	}
	if body.Type == "" {
		body.Type = "text"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return notifications.Receipt{}, err
	}

	var id string
	if c.cfg.Provider == ProviderMock {
		id = fmt.Sprintf("wa_mock_%d_%s", c.now().UnixMilli(), strconv.FormatUint(rand.Uint64(), 36))
	} else {
		if err := c.ValidateConfig(); err != nil {
			return notifications.Receipt{}, err
		}
		if id, err = c.post(ctx, body); err != nil {
			return notifications.Receipt{}, err
		}
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "whatsapp message sent",
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

func (c *Channel) post(ctx context.Context, body outbound) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read whatsapp response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrProviderReply, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var reply struct {
		MessageID string `json:"messageId"`
		ID        string `json:"id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &reply); err != nil {
			return "", fmt.Errorf("failed to decode whatsapp response: %w", err)
		}
	}
	if reply.MessageID != "" {
		return reply.MessageID, nil
	}
	return reply.ID, nil
}
