package notifications

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest  = errors.New("notifications: invalid request")
	ErrUnknownChannel  = errors.New("notifications: unknown channel type")
	ErrInvalidConfig   = errors.New("notifications: invalid channel configuration")
	ErrChannelNil      = errors.New("notifications: channel factory returned nil")
	ErrEnqueuerNil     = errors.New("notifications: enqueuer is nil")
	ErrRegistryNil     = errors.New("notifications: registry is nil")
	ErrHistoryDisabled = errors.New("notifications: job history is not available")
)

// ConfigError reports a channel whose configuration is invalid.
type ConfigError struct {
	Channel string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s channel: %s", e.Channel, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError builds a ConfigError with a formatted reason.
func NewConfigError(channel, format string, args ...any) error {
	return &ConfigError{Channel: channel, Reason: fmt.Sprintf(format, args...)}
}
