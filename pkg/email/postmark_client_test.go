package email_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/email"
)

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	cfg := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "noreply@example.com",
	}

	client, err := email.NewPostmarkClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)

	cfg.PostmarkAccountToken = ""
	client, err = email.NewPostmarkClient(cfg)
	require.ErrorIs(t, err, email.ErrInvalidConfig)
	assert.Nil(t, client)
}

func TestPostmarkClient_ValidatesBeforeSending(t *testing.T) {
	t.Parallel()

	client, err := email.NewPostmarkClient(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "noreply@example.com",
	})
	require.NoError(t, err)

	_, err = client.SendEmail(t.Context(), email.SendEmailParams{SendTo: "not-an-address", Subject: "s", BodyText: "b"})
	require.ErrorIs(t, err, email.ErrInvalidParams)
	assert.NotErrorIs(t, err, email.ErrFailedToSendEmail)
}
