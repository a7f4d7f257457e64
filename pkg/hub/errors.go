package hub

import "errors"

var (
	ErrClosed        = errors.New("hub is shut down")
	ErrTopicRequired = errors.New("topic is required")
	ErrUnknownClient = errors.New("client is not connected")
)
