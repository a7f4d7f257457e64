package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/hub"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
	"github.com/dmitrymomot/statuscast/pkg/queue"
	"github.com/dmitrymomot/statuscast/pkg/ratelimit"
	"github.com/dmitrymomot/statuscast/pkg/status"
)

type recordingRepo struct {
	job *queue.Job
}

func (r *recordingRepo) CreateJob(_ context.Context, job *queue.Job) error {
	r.job = job
	return nil
}

func newRecordingService(t *testing.T) (*notifications.Service, *recordingRepo) {
	t.Helper()

	repo := &recordingRepo{}
	enqueuer, err := queue.NewEnqueuer(repo)
	require.NoError(t, err)
	svc, err := notifications.NewService(enqueuer)
	require.NoError(t, err)
	return svc, repo
}

func TestQueuedNotice(t *testing.T) {
	t.Parallel()

	t.Run("anonymous analysis is skipped", func(t *testing.T) {
		t.Parallel()

		svc, repo := newRecordingService(t)
		hook := queuedNotice(svc, "Analysis queued")

		require.NoError(t, hook(t.Context(), status.Record{AnalysisID: "a1"}))
		assert.Nil(t, repo.job)
	})

	t.Run("owner gets a push notice", func(t *testing.T) {
		t.Parallel()

		svc, repo := newRecordingService(t)
		hook := queuedNotice(svc, "Analysis queued")

		require.NoError(t, hook(t.Context(), status.Record{AnalysisID: "a1", UserID: "u1"}))
		require.NotNil(t, repo.job)
		assert.Equal(t, notifications.JobName, repo.job.Name)

		var req notifications.Request
		require.NoError(t, json.Unmarshal(repo.job.Payload, &req))
		assert.Equal(t, "u1", req.Recipient)
		assert.Equal(t, []string{"push"}, req.Channels)
		assert.Equal(t, "Analysis a1 is queued", req.Message)
		assert.Equal(t, "Analysis queued", req.Options.Subject)
		assert.Equal(t, "a1", req.Options.Data["analysisId"])
	})
}

func TestResources_MemoryBackends(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	res := &resources{log: logger.Discard()}
	t.Cleanup(func() { res.close(context.Background()) })

	statuses, err := res.statusStore(ctx, appConfig{StatusStore: storeMemory})
	require.NoError(t, err)

	rec, err := statuses.Create(ctx, status.Record{AnalysisID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, status.Queued, rec.Status)

	jobs, err := res.jobStorage(ctx, queue.Config{Storage: storeMemory})
	require.NoError(t, err)
	_, isMemory := jobs.(*queue.MemoryStorage)
	assert.True(t, isMemory)

	store, err := res.limiterStore(ctx, ratelimit.Config{Store: storeMemory})
	require.NoError(t, err)
	_, isMemory = store.(*ratelimit.MemoryStore)
	assert.True(t, isMemory)

	assert.Empty(t, res.checks, "memory backends register no health checks")
	assert.Len(t, res.closers, 3)
}

func TestResources_UnknownBackends(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	res := &resources{log: logger.Discard()}

	_, err := res.statusStore(ctx, appConfig{StatusStore: "sqlite"})
	assert.ErrorContains(t, err, `unknown status store "sqlite"`)

	_, err = res.jobStorage(ctx, queue.Config{Storage: "kafka"})
	assert.ErrorContains(t, err, `unknown queue storage "kafka"`)

	_, err = res.limiterStore(ctx, ratelimit.Config{Store: "etcd"})
	assert.ErrorContains(t, err, `unknown rate limit store "etcd"`)
}

func TestResources_CloseRunsInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []int
	res := &resources{log: logger.Discard()}
	for i := range 3 {
		res.onClose(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	res.close(t.Context())
	assert.Equal(t, []int{2, 1, 0}, order)
}

// gatedWriter holds every write until open is closed.
type gatedWriter struct {
	open   chan struct{}
	writes atomic.Int64

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	w.writes.Add(1)
	<-w.open
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *gatedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestWatchHub_ResubscribesAfterFallingBehind(t *testing.T) {
	t.Parallel()

	h := hub.New(hub.WithLogger(logger.Discard()))
	out := &gatedWriter{open: make(chan struct{})}
	log := logger.New(logger.WithOutput(out), logger.WithJSONFormatter(), logger.WithLevel(slog.LevelDebug))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchHub(ctx, h, log)
	}()

	// the first logged event blocks the watcher
	require.Eventually(t, func() bool {
		h.Broadcast("before", status.Snapshot{Status: status.Processing})
		return out.writes.Load() > 0
	}, time.Second, 5*time.Millisecond)
	for range 100 {
		h.Broadcast("before", status.Snapshot{Status: status.Processing})
	}
	close(out.open)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "hub event subscription dropped, resubscribing")
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		h.Broadcast("after", status.Snapshot{Status: status.Completed})
		return strings.Contains(out.String(), `"topic":"after"`)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchHub_StopsOnShutdown(t *testing.T) {
	t.Parallel()

	h := hub.New(hub.WithLogger(logger.Discard()))
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchHub(context.Background(), h, logger.Discard())
	}()

	require.NoError(t, h.Shutdown(t.Context()))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
