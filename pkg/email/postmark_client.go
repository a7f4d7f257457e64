package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Postmark API error codes that refer to the recipient.
// https://postmarkapp.com/developer/api/overview#error-codes
const (
	postmarkInvalidEmailRequest = 300
	postmarkInactiveRecipient   = 406
)

type postmarkClient struct {
	client *postmark.Client
	cfg    Config
}

// NewPostmarkClient creates a Postmark-backed email sender. Both tokens
// are required.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	cfg.Provider = ProviderPostmark
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &postmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		cfg:    cfg,
	}, nil
}

// SendEmail sends through Postmark's transactional API with open and HTML
// link tracking. Reply-To is the support address when one is configured.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if params.Tag == "" {
		params.Tag = c.cfg.DefaultTag
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.cfg.From(),
		ReplyTo:    c.cfg.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TextBody:   params.BodyText,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return "", errors.Join(ErrFailedToSendEmail, err)
	}
	if err := postmarkError(int64(resp.ErrorCode), resp.Message); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// postmarkError maps a non-zero API error code to a sentinel.
func postmarkError(code int64, msg string) error {
	if code == 0 {
		return nil
	}
	cause := fmt.Errorf("postmark error %d: %s", code, msg)
	switch code {
	case postmarkInvalidEmailRequest, postmarkInactiveRecipient:
		return errors.Join(ErrFailedToSendEmail, ErrRecipientRejected, cause)
	default:
		return errors.Join(ErrFailedToSendEmail, cause)
	}
}
