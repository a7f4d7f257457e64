package notifications_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/notifications"
)

type fakeChannel struct {
	name    string
	err     error
	confErr error

	mu   sync.Mutex
	sent []notifications.Message
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, msg notifications.Message) (notifications.Receipt, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.err != nil {
		return notifications.Receipt{}, f.err
	}
	return notifications.Receipt{
		Provider:  "fake",
		MessageID: f.name + "-1",
		To:        msg.Recipient,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeChannel) ValidateConfig() error { return f.confErr }

func (f *fakeChannel) Sent() []notifications.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.Message(nil), f.sent...)
}

// factory counts how often the channel is built.
func factory(ch notifications.Channel, builds *atomic.Int32) notifications.Factory {
	return func() (notifications.Channel, error) {
		if builds != nil {
			builds.Add(1)
		}
		return ch, nil
	}
}

var errSendFailed = errors.New("provider unavailable")
