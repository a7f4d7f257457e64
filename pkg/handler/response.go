package handler

import (
	"encoding/json"
	"net/http"
)

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithStatus sets the status code. Defaults to 200.
func WithStatus(code int) JSONOption {
	return func(r *jsonResponse) {
		r.status = code
	}
}

// WithHeader adds a response header.
func WithHeader(key, value string) JSONOption {
	return func(r *jsonResponse) {
		if r.headers == nil {
			r.headers = http.Header{}
		}
		r.headers.Add(key, value)
	}
}

type jsonResponse struct {
	status  int
	headers http.Header
	body    any
}

// JSON renders v as the response body.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range j.headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	return writeJSON(w, j.status, j.body)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty writes status with no body.
func Empty(status int) Response {
	return emptyResponse{status: status}
}

type errorResponse struct {
	err error
}

// Error returns a Response that hands err to the ErrorHandler.
func Error(err error) Response {
	return errorResponse{err: err}
}

func (e errorResponse) Render(http.ResponseWriter, *http.Request) error {
	return e.err
}
