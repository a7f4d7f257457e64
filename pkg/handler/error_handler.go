package handler

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/dmitrymomot/statuscast/pkg/binder"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/requestid"
)

// ClassifyError maps err to the HTTPError shown to the client. Binding
// failures become 400 (413 for oversized bodies, 415 for the wrong media
// type). Anything unrecognised becomes a 500 that hides the cause.
func ClassifyError(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, binder.ErrBodyTooLarge):
		return NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large", err)
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return NewHTTPError(http.StatusUnsupportedMediaType, "Content-Type must be application/json", err)
	case errors.Is(err, binder.ErrFailedToParseJSON):
		return NewHTTPError(http.StatusBadRequest, "Invalid JSON body", err)
	case errors.Is(err, binder.ErrFailedToParseQuery), errors.Is(err, binder.ErrFailedToParsePath):
		return NewHTTPError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, context.Canceled):
		// nginx's "client closed request"
		return NewHTTPError(499, "Request cancelled", err)
	}
	return Internal("Internal server error", err)
}

// NewErrorHandler writes {"success": false, "error": message} plus any
// HTTPError details, and logs client errors at warn and server errors at error.
func NewErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("http"))

	return func(ctx Context, err error) {
		httpErr := ClassifyError(err)
		r := ctx.Request()

		level := slog.LevelWarn
		if httpErr.Code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.LogAttrs(r.Context(), level, "request failed",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", httpErr.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		body := make(map[string]any, len(httpErr.Details)+2)
		maps.Copy(body, httpErr.Details)
		body["success"] = false
		body["error"] = httpErr.Message
		_ = writeJSON(ctx.ResponseWriter(), httpErr.Code, body)
	}
}
