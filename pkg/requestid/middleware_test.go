package requestid_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/requestid"
)

// serve runs one request through mw and returns the id seen by the handler
// and the id echoed in the response.
func serve(t *testing.T, mw func(http.Handler) http.Handler, headers map[string]string) (string, string) {
	t.Helper()

	var seen string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	return seen, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	fixed := requestid.New(requestid.WithGenerator(func() string { return "generated" }))

	tests := []struct {
		name    string
		mw      func(http.Handler) http.Handler
		headers map[string]string
		want    string
	}{
		{
			name: "generates an id",
			mw:   fixed,
			want: "generated",
		},
		{
			name:    "keeps a well formed upstream id",
			mw:      fixed,
			headers: map[string]string{requestid.Header: "edge-42_a"},
			want:    "edge-42_a",
		},
		{
			name:    "accepts the correlation header",
			mw:      fixed,
			headers: map[string]string{requestid.CorrelationHeader: "corr-1"},
			want:    "corr-1",
		},
		{
			name:    "request id wins over correlation id",
			mw:      fixed,
			headers: map[string]string{requestid.Header: "req-1", requestid.CorrelationHeader: "corr-1"},
			want:    "req-1",
		},
		{
			name:    "replaces ids with unsafe characters",
			mw:      fixed,
			headers: map[string]string{requestid.Header: "bad id\n"},
			want:    "generated",
		},
		{
			name:    "replaces oversized ids",
			mw:      fixed,
			headers: map[string]string{requestid.Header: strings.Repeat("a", 129)},
			want:    "generated",
		},
		{
			name: "ignores upstream ids when not trusted",
			mw: requestid.New(
				requestid.WithGenerator(func() string { return "generated" }),
				requestid.WithUpstreamIDs(false),
			),
			headers: map[string]string{requestid.Header: "edge-42"},
			want:    "generated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seen, echoed := serve(t, tt.mw, tt.headers)
			assert.Equal(t, tt.want, seen)
			assert.Equal(t, tt.want, echoed)
		})
	}
}

func TestMiddleware_DefaultGeneratesUUID(t *testing.T) {
	t.Parallel()

	seen, echoed := serve(t, requestid.Middleware, nil)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, echoed)
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Equal(t, "abc", requestid.FromContext(requestid.WithContext(context.Background(), "abc")))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithJSONFormatter(),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	log.InfoContext(requestid.WithContext(context.Background(), "req-7"), "tagged")
	log.InfoContext(context.Background(), "untagged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"request_id":"req-7"`)
	assert.NotContains(t, lines[1], "request_id")

	_, ok := requestid.LoggerExtractor()(context.Background())
	assert.False(t, ok)
	attr, ok := requestid.LoggerExtractor()(requestid.WithContext(context.Background(), "x"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "x", attr.Value.String())
}
