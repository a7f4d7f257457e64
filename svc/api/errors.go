package api

import "errors"

var (
	ErrNotificationsRequired = errors.New("api: notification service is required")
	ErrStatusStoreRequired   = errors.New("api: status store is required")
	ErrLimiterRequired       = errors.New("api: rate limiter is required")
)
