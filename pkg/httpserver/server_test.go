package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/httpserver"
	"github.com/dmitrymomot/statuscast/pkg/logger"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func start(t *testing.T, ctx context.Context, srv *httpserver.Server, h http.Handler) (string, <-chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, h) }()

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	addr, err := srv.Addr(waitCtx)
	require.NoError(t, err)
	return "http://" + addr.String(), done
}

func TestServer_RunAndShutdownOnCancel(t *testing.T) {
	t.Parallel()

	var hooked atomic.Bool
	srv := httpserver.New(
		httpserver.WithListener(listen(t)),
		httpserver.WithShutdownTimeout(time.Second),
		httpserver.WithLogger(logger.Discard()),
		httpserver.WithShutdownHook(func() { hooked.Store(true) }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base, done := start(t, ctx, srv, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))

	resp, err := http.Get(base)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
	assert.Eventually(t, hooked.Load, time.Second, 5*time.Millisecond)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_RunFunc(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithListener(listen(t)))
	ctx, cancel := context.WithCancel(context.Background())
	run := srv.RunFunc(ctx, nil)

	done := make(chan error, 1)
	go func() { done <- run() }()

	addr, err := srv.Addr(context.Background())
	require.NoError(t, err)
	resp, err := http.Get("http://" + addr.String())
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}

func TestServer_AlreadyRunning(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithListener(listen(t)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, done := start(t, ctx, srv, nil)
	err := srv.Run(ctx, nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
	assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

	cancel()
	assert.NoError(t, <-done)
}

func TestServer_ListenError(t *testing.T) {
	t.Parallel()

	ln := listen(t)
	defer ln.Close()

	srv := httpserver.New(httpserver.WithAddr(ln.Addr().String()))
	err := srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	t.Parallel()

	assert.NoError(t, httpserver.New().Shutdown(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := httpserver.New().Addr(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { httpserver.WithAddr("") })
	assert.Panics(t, func() { httpserver.WithListener(nil) })
	assert.Panics(t, func() { httpserver.WithReadTimeout(0) })
	assert.Panics(t, func() { httpserver.WithReadHeaderTimeout(-1) })
	assert.Panics(t, func() { httpserver.WithWriteTimeout(0) })
	assert.Panics(t, func() { httpserver.WithIdleTimeout(0) })
	assert.Panics(t, func() { httpserver.WithShutdownTimeout(0) })
	assert.Panics(t, func() { httpserver.WithShutdownHook(nil) })
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	srv := httpserver.NewFromConfig(httpserver.Config{
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}, httpserver.WithListener(listen(t)))

	ctx, cancel := context.WithCancel(context.Background())
	_, done := start(t, ctx, srv, nil)
	cancel()
	assert.NoError(t, <-done)
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	ok := httpserver.Check{Name: "redis", Fn: func(context.Context) error { return nil }}
	down := httpserver.Check{Name: "mongo", Fn: func(context.Context) error { return errors.New("no reachable servers") }}
	slow := httpserver.Check{Name: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	tests := []struct {
		name   string
		checks []httpserver.Check
		code   int
		status string
		detail map[string]string
	}{
		{name: "liveness", code: http.StatusOK, status: httpserver.StatusOK},
		{name: "all ok", checks: []httpserver.Check{ok}, code: http.StatusOK, status: httpserver.StatusOK, detail: map[string]string{"redis": "OK"}},
		{
			name:   "one down",
			checks: []httpserver.Check{ok, down},
			code:   http.StatusServiceUnavailable,
			status: httpserver.StatusUnavailable,
			detail: map[string]string{"redis": "OK", "mongo": "no reachable servers"},
		},
		{
			name:   "timeout",
			checks: []httpserver.Check{slow},
			code:   http.StatusServiceUnavailable,
			status: httpserver.StatusUnavailable,
			detail: map[string]string{"slow": context.DeadlineExceeded.Error()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := httpserver.HealthCheckHandler(logger.Discard(), 20*time.Millisecond, tt.checks...)
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var report httpserver.HealthReport
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tt.status, report.Status)
			assert.Equal(t, tt.detail, report.Checks)
		})
	}
}
