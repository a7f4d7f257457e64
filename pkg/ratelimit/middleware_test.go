package ratelimit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/ratelimit"
)

func newLimiter(t *testing.T, clock *fakeClock) *ratelimit.SlidingWindow {
	t.Helper()
	sw, err := ratelimit.NewSlidingWindow(newMemoryStore(t),
		ratelimit.WithClock(clock.Now),
		ratelimit.WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	return sw
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestMiddleware_UploadPolicy(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	policy := ratelimit.DefaultPolicies()[ratelimit.LimitUpload]
	h := ratelimit.Middleware(newLimiter(t, clock), policy,
		ratelimit.WithMiddlewareLogger(logger.Discard()),
	)(okHandler)

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		r.RemoteAddr = "203.0.113.9:5000"
		r.Header.Set("X-Device-Fingerprint", "device-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	for i := range 6 {
		w := send()
		require.Equal(t, http.StatusNoContent, w.Code, "request %d", i+1)
		assert.Equal(t, "6", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, itoa(5-i), w.Header().Get("X-RateLimit-Remaining"))
		assert.Empty(t, w.Header().Get("Retry-After"))
	}

	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "86400", w.Header().Get("Retry-After"))

	reset := clock.Now().Add(24 * time.Hour)
	assert.Equal(t, reset.Format(ratelimit.TimeFormat), w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, itoa(int(reset.Unix())), w.Header().Get("X-RateLimit-Reset-Timestamp"))

	var body ratelimit.LimitExceededResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Rate limit exceeded", body.Error)
	assert.Equal(t, policy.Message, body.Message)
	assert.Equal(t, "cv_upload", body.LimitType)
	assert.Equal(t, 6, body.Limit)
	assert.Equal(t, 0, body.Remaining)
	assert.Equal(t, 86400, body.RetryAfter)
	assert.Empty(t, body.AnalysisID)
}

func TestMiddleware_ConditionalScopedPolicy(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	policy := ratelimit.DefaultPolicies()[ratelimit.LimitRefresh]

	r := chi.NewRouter()
	r.With(ratelimit.Middleware(newLimiter(t, clock), policy,
		ratelimit.WithCondition(ratelimit.QueryFlag("refresh")),
		ratelimit.WithSubResource(func(r *http.Request) string { return chi.URLParam(r, "id") }),
		ratelimit.WithIdentity(func(*http.Request) string { return "same-device" }),
		ratelimit.WithMiddlewareLogger(logger.Discard()),
	)).Get("/analysis/{id}/questions", okHandler)

	send := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	for range 5 {
		w := send("/analysis/a1/questions")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"), "not limited without refresh=true")
	}

	assert.Equal(t, http.StatusNoContent, send("/analysis/a1/questions?refresh=true").Code)
	assert.Equal(t, http.StatusNoContent, send("/analysis/a1/questions?refresh=true").Code)

	w := send("/analysis/a1/questions?refresh=true")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var body ratelimit.LimitExceededResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "a1", body.AnalysisID)
	assert.Equal(t, "question_refresh", body.LimitType)

	assert.Equal(t, http.StatusNoContent, send("/analysis/a2/questions?refresh=true").Code, "scoped per analysis")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("Record", anyArgs(6)...).Return(ratelimit.WindowState{}, assert.AnError)
	sw, err := ratelimit.NewSlidingWindow(store, ratelimit.WithLogger(logger.Discard()))
	require.NoError(t, err)

	h := ratelimit.Middleware(sw, ratelimit.DefaultPolicies()[ratelimit.LimitUpload],
		ratelimit.WithMiddlewareLogger(logger.Discard()))(okHandler)

	for range 10 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestMiddleware_PanicsOnInvalidSetup(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { ratelimit.Middleware(nil, ratelimit.DefaultPolicies()[ratelimit.LimitUpload]) })
	assert.Panics(t, func() {
		ratelimit.Middleware(newLimiter(t, newFakeClock()), ratelimit.Policy{Name: "x"})
	})
}
