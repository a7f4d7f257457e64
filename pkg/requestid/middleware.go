package requestid

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	// Header carries the request id in both directions.
	Header = "X-Request-ID"
	// CorrelationHeader is accepted from upstream proxies that use it instead.
	CorrelationHeader = "X-Correlation-ID"

	maxLength = 128
)

// Option configures the middleware.
type Option func(*options)

type options struct {
	generate func() string
	trust    bool
}

// WithGenerator replaces the uuid generator.
func WithGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.generate = fn
		}
	}
}

// WithUpstreamIDs controls whether well-formed incoming ids are kept.
// Enabled by default.
func WithUpstreamIDs(trust bool) Option {
	return func(o *options) { o.trust = trust }
}

// New returns middleware that assigns every request an id, echoes it in
// the response and stores it in the request context.
func New(opts ...Option) func(http.Handler) http.Handler {
	o := options{generate: uuid.NewString, trust: true}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if o.trust {
				id = incoming(r)
			}
			if id == "" {
				id = o.generate()
			}
			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
		})
	}
}

// Middleware is New with default options.
var Middleware = New()

func incoming(r *http.Request) string {
	for _, h := range []string{Header, CorrelationHeader} {
		if id := r.Header.Get(h); valid(id) {
			return id
		}
	}
	return ""
}

// valid accepts 1..128 characters of [A-Za-z0-9_-].
func valid(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
