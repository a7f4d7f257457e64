package async

import "errors"

var (
	ErrTimeout     = errors.New("async: operation timed out waiting for future completion")
	ErrPanic       = errors.New("async: task panicked")
	ErrGroupFull   = errors.New("async: group task limit reached")
	ErrGroupClosed = errors.New("async: group is stopped")
)
