package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/async"
	"github.com/dmitrymomot/statuscast/pkg/logger"
)

func newGroup(t *testing.T, opts ...async.GroupOption) *async.Group {
	t.Helper()
	g := async.NewGroup(context.Background(), append([]async.GroupOption{async.WithGroupLogger(logger.Discard())}, opts...)...)
	t.Cleanup(func() { _ = g.Stop(context.Background()) })
	return g
}

func TestGroup_StopCancelsAndWaits(t *testing.T) {
	t.Parallel()

	g := newGroup(t)
	var stopped atomic.Int32
	for _, name := range []string{"listener", "worker"} {
		require.NoError(t, g.Go(name, func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return ctx.Err()
		}))
	}

	assert.Eventually(t, func() bool { return g.Stats().Active == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, map[string]int{"listener": 1, "worker": 1}, g.Stats().Tasks)

	require.NoError(t, g.Stop(context.Background()))
	assert.Equal(t, int32(2), stopped.Load())
	assert.Zero(t, g.Stats().Active)
	assert.ErrorIs(t, g.Go("late", func(context.Context) error { return nil }), async.ErrGroupClosed)
}

func TestGroup_RecordsErrorsAndPanics(t *testing.T) {
	t.Parallel()

	g := newGroup(t)
	boom := errors.New("boom")
	require.NoError(t, g.Go("fails", func(context.Context) error { return boom }))
	require.NoError(t, g.Go("panics", func(context.Context) error { panic("bad state") }))
	require.NoError(t, g.Go("clean", func(context.Context) error { return nil }))

	err := g.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, async.ErrPanic)
	assert.Contains(t, err.Error(), "fails: boom")
	assert.Contains(t, err.Error(), "bad state")

	stats := g.Stats()
	assert.Equal(t, uint64(3), stats.Started)
	assert.Equal(t, uint64(1), stats.Panics)
	assert.Equal(t, 2, stats.Failed)
	assert.Zero(t, g.Context().Err())
}

func TestGroup_CancelOnError(t *testing.T) {
	t.Parallel()

	g := newGroup(t, async.WithCancelOnError())
	require.NoError(t, g.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	require.NoError(t, g.Go("failer", func(context.Context) error { return errors.New("fatal") }))

	select {
	case <-g.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("group context not cancelled")
	}
	assert.ErrorContains(t, g.Wait(context.Background()), "failer: fatal")
}

func TestGroup_Limit(t *testing.T) {
	t.Parallel()

	g := newGroup(t, async.WithLimit(1))
	release := make(chan struct{})
	require.NoError(t, g.Go("first", func(context.Context) error {
		<-release
		return nil
	}))
	assert.ErrorIs(t, g.Go("second", func(context.Context) error { return nil }), async.ErrGroupFull)

	close(release)
	require.NoError(t, g.Wait(context.Background()))
	assert.NoError(t, g.Go("third", func(context.Context) error { return nil }))
}

func TestGroup_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	g := newGroup(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	require.NoError(t, g.Go("stuck", func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)
}
