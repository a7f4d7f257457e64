package mongo

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("mongo: empty connection url")
	ErrNotReady           = errors.New("mongo: server did not become ready")
	ErrHealthcheckFailed  = errors.New("mongo: healthcheck failed")
)
