package whatsapp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/channels/whatsapp"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
)

func httpConfig(url string) whatsapp.Config {
	return whatsapp.Config{
		Provider:   "gupshup",
		APIKey:     "secret",
		APIURL:     url,
		FromNumber: "+15550001111",
		AppName:    "Statuscast",
		RetryMax:   2,
	}
}

func newChannel(cfg whatsapp.Config) *whatsapp.Channel {
	return whatsapp.New(cfg,
		whatsapp.WithLogger(logger.Discard()),
		whatsapp.WithRetryWait(time.Millisecond, 5*time.Millisecond),
	)
}

func TestValidPhone(t *testing.T) {
	t.Parallel()

	assert.True(t, whatsapp.ValidPhone("+15550001234"))
	assert.True(t, whatsapp.ValidPhone("+44"))
	assert.False(t, whatsapp.ValidPhone("15550001234"))
	assert.False(t, whatsapp.ValidPhone("+05550001234"))
	assert.False(t, whatsapp.ValidPhone("+1555000123456789"))
}

func TestChannel_ValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     whatsapp.Config
		wantErr string
	}{
		{name: "mock needs only a sender", cfg: whatsapp.Config{FromNumber: "+15550001111"}},
		{
			name:    "mock without sender",
			cfg:     whatsapp.Config{},
			wantErr: "whatsapp channel: fromNumber is required",
		},
		{name: "valid provider", cfg: httpConfig("http://provider.test")},
		{
			name:    "missing api key",
			cfg:     whatsapp.Config{Provider: "twilio", FromNumber: "+15550001111"},
			wantErr: "whatsapp channel: apiKey is required for provider twilio",
		},
		{
			name:    "missing api url",
			cfg:     whatsapp.Config{Provider: "twilio", APIKey: "k", FromNumber: "+15550001111"},
			wantErr: "whatsapp channel: apiUrl is required for provider twilio",
		},
		{
			name:    "missing from number",
			cfg:     whatsapp.Config{Provider: "twilio", APIKey: "k", APIURL: "http://x"},
			wantErr: "whatsapp channel: fromNumber is required",
		},
		{
			name:    "invalid from number",
			cfg:     whatsapp.Config{Provider: "twilio", APIKey: "k", APIURL: "http://x", FromNumber: "5550001111"},
			wantErr: "whatsapp channel: fromNumber must be a valid phone number with country code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := newChannel(tt.cfg).ValidateConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, notifications.ErrInvalidConfig)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestChannel_SendMock(t *testing.T) {
	t.Parallel()

	ch := newChannel(whatsapp.Config{})
	assert.Equal(t, "whatsapp", ch.Name())

	receipt, err := ch.Send(context.Background(), notifications.Message{Recipient: "user-9876", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "mock", receipt.Provider)
	assert.Equal(t, "+15550009876", receipt.To)
	assert.True(t, strings.HasPrefix(receipt.MessageID, "wa_mock_"))
}

func TestChannel_SendRejectsInvalidRecipient(t *testing.T) {
	t.Parallel()

	ch := whatsapp.New(whatsapp.Config{},
		whatsapp.WithLogger(logger.Discard()),
		whatsapp.WithResolver(func(context.Context, string) (string, error) { return "0800", nil }),
	)

	_, err := ch.Send(context.Background(), notifications.Message{Recipient: "1", Body: "hi"})
	assert.ErrorIs(t, err, whatsapp.ErrInvalidPhone)
}

func TestChannel_SendThroughProvider(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+15550000042", body["to"])
		assert.Equal(t, "+15550001111", body["from"])
		assert.Equal(t, "text", body["type"])
		assert.Equal(t, "analysis done", body["message"])
		assert.Equal(t, "job-1", body["ref"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageId":"wamid.123"}`))
	}))
	t.Cleanup(srv.Close)

	ch := newChannel(httpConfig(srv.URL))
	receipt, err := ch.Send(context.Background(), notifications.Message{
		JobID:     "job-1",
		Recipient: "42",
		Body:      "analysis done",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.123", receipt.MessageID)
	assert.Equal(t, "gupshup", receipt.Provider)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChannel_SendProviderRejects(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"template not approved"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	_, err := newChannel(httpConfig(srv.URL)).Send(context.Background(), notifications.Message{Recipient: "42", Body: "x"})
	require.ErrorIs(t, err, whatsapp.ErrProviderReply)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "template not approved")
	assert.Equal(t, int32(1), calls.Load())
}

func TestChannel_SendGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := newChannel(httpConfig(srv.URL)).Send(context.Background(), notifications.Message{Recipient: "42", Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempt(s)")
	assert.Equal(t, int32(3), calls.Load())
}

func TestChannel_SendInvalidProviderConfig(t *testing.T) {
	t.Parallel()

	_, err := newChannel(whatsapp.Config{Provider: "twilio"}).Send(context.Background(), notifications.Message{Recipient: "42", Body: "x"})
	assert.ErrorIs(t, err, notifications.ErrInvalidConfig)
}
