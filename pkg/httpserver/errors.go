package httpserver

import "errors"

var (
	// ErrStart wraps failures to listen or serve.
	ErrStart = errors.New("httpserver: failed to start")
	// ErrAlreadyRunning is returned by a second Run on the same server.
	ErrAlreadyRunning = errors.New("httpserver: already running")
	// ErrShutdown wraps graceful shutdown failures.
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
