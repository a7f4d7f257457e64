package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/fingerprint"
	"github.com/dmitrymomot/statuscast/pkg/logger"
)

// TimeFormat is the UTC millisecond ISO-8601 layout used in headers and bodies.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// KeyFunc extracts a value from an HTTP request.
type KeyFunc func(*http.Request) string

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	identity    KeyFunc
	subResource KeyFunc
	condition   func(*http.Request) bool
	logger      *slog.Logger
}

// WithIdentity overrides how the caller is identified.
// Defaults to fingerprint.DeviceID.
func WithIdentity(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.identity = fn
		}
	}
}

// WithSubResource scopes the limit to a value taken from the request,
// typically a URL parameter.
func WithSubResource(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.subResource = fn
	}
}

// WithCondition applies the limit only to requests for which fn is true.
func WithCondition(fn func(*http.Request) bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.condition = fn
	}
}

// WithMiddlewareLogger sets the logger for allowed and blocked attempts.
func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// QueryFlag returns a condition that matches when query parameter name equals "true".
func QueryFlag(name string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		return r.URL.Query().Get(name) == "true"
	}
}

// LimitExceededResponse is the 429 body.
type LimitExceededResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	LimitType  string `json:"limitType"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	ResetTime  string `json:"resetTime"`
	AnalysisID string `json:"analysisId,omitempty"`
}

// Middleware enforces policy per caller. Store failures and invalid keys
// let the request through.
func Middleware(checker Checker, policy Policy, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if checker == nil {
		panic("ratelimit.Middleware: checker is required")
	}
	if err := policy.Validate(); err != nil {
		panic("ratelimit.Middleware: " + err.Error())
	}

	cfg := &middlewareConfig{
		identity: fingerprint.DeviceID,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.logger.With(logger.Component("ratelimit"), logger.LimitType(policy.Name))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.condition != nil && !cfg.condition(r) {
				next.ServeHTTP(w, r)
				return
			}

			identity := cfg.identity(r)
			var sub string
			if cfg.subResource != nil {
				sub = cfg.subResource(r)
			}

			result, err := checker.Check(r.Context(), policy.Key(identity, sub), policy.Limit, policy.Window)
			if err != nil {
				log.LogAttrs(r.Context(), slog.LevelWarn, "rate limit check skipped", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			SetHeaders(w, result)

			attrs := []slog.Attr{
				slog.String("device_id", fingerprint.Truncate(identity)),
				slog.Bool("allowed", result.Allowed),
				slog.Int("remaining", result.Remaining),
				slog.String("endpoint", r.Method+" "+r.URL.RequestURI()),
			}
			if sub != "" {
				attrs = append(attrs, slog.String("sub_resource", sub))
			}

			if !result.Allowed {
				log.LogAttrs(r.Context(), slog.LevelWarn, "rate limit exceeded", attrs...)
				writeLimitExceeded(w, policy, result, sub)
				return
			}

			log.LogAttrs(r.Context(), slog.LevelDebug, "rate limit passed", attrs...)
			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes the X-RateLimit-* headers, plus Retry-After on rejection.
func SetHeaders(w http.ResponseWriter, result Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	h.Set("X-RateLimit-Reset", result.ResetAt.UTC().Format(TimeFormat))
	h.Set("X-RateLimit-Reset-Timestamp", strconv.FormatInt(ceilUnix(result.ResetAt), 10))
	if !result.Allowed && result.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(result.RetryAfter))
	}
}

func writeLimitExceeded(w http.ResponseWriter, policy Policy, result Result, sub string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(LimitExceededResponse{
		Success:    false,
		Error:      "Rate limit exceeded",
		Message:    policy.Message,
		RetryAfter: result.RetryAfter,
		LimitType:  policy.Name,
		Limit:      result.Limit,
		Remaining:  result.Remaining,
		ResetTime:  result.ResetAt.UTC().Format(TimeFormat),
		AnalysisID: sub,
	})
}

func ceilUnix(t time.Time) int64 {
	secs := t.Unix()
	if t.Nanosecond() > 0 {
		secs++
	}
	return secs
}
