package handler

import (
	"errors"
	"net/http"
)

// ErrNilResponse is reported when a HandlerFunc returns nil.
var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is an error with the status code and message the client sees.
// Err, when set, is logged but not exposed.
type HTTPError struct {
	Code    int
	Message string
	// Details are merged into the error body.
	Details map[string]any
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying extra body fields.
func (e *HTTPError) WithDetails(details map[string]any) *HTTPError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewHTTPError builds an HTTPError. A blank message falls back to the status text.
func NewHTTPError(code int, message string, err error) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{Code: code, Message: message, Err: err}
}

func BadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, nil)
}

func NotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, nil)
}

func Conflict(message string) *HTTPError {
	return NewHTTPError(http.StatusConflict, message, nil)
}

// Internal hides err behind message.
func Internal(message string, err error) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message, err)
}

func ServiceUnavailable(message string, err error) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message, err)
}
