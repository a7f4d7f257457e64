package email

import (
	"context"
	"fmt"
	"sync"
)

// MockSender accepts every valid email and keeps it in memory.
type MockSender struct {
	mu   sync.Mutex
	sent []SendEmailParams
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

// SendEmail records params and returns a sequential id.
func (m *MockSender) SendEmail(_ context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, params)
	return fmt.Sprintf("mock-%d", len(m.sent)), nil
}

// Sent returns a copy of the accepted emails.
func (m *MockSender) Sent() []SendEmailParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SendEmailParams(nil), m.sent...)
}
