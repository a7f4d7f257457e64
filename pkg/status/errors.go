package status

import "errors"

var (
	ErrNotFound       = errors.New("analysis not found")
	ErrNotCancellable = errors.New("analysis cannot be cancelled")
	ErrTerminal       = errors.New("analysis already reached a terminal state")
	ErrInvalidPatch   = errors.New("invalid status patch")
	ErrAlreadyExists  = errors.New("analysis already exists")
)
