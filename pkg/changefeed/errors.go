package changefeed

import "errors"

var (
	ErrWatchFailed       = errors.New("failed to open change stream")
	ErrAlreadyStarted    = errors.New("listener already started")
	ErrNotStarted        = errors.New("listener not started")
	ErrUnsupportedTarget = errors.New("change event can only be decoded into *changefeed.Event")
)
