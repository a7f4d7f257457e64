package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/async"
)

func TestAsync_Await(t *testing.T) {
	t.Parallel()

	f := async.Async(context.Background(), func(context.Context) (string, error) {
		return "done", nil
	})
	res, err := f.Await()
	require.NoError(t, err)
	assert.Equal(t, "done", res)
	assert.True(t, f.IsComplete())
}

func TestAsync_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := async.Async(context.Background(), func(context.Context) (int, error) {
		return 0, boom
	}).Await()
	assert.ErrorIs(t, err, boom)
}

func TestAsync_CancelledContextSkipsFunction(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := async.Async(ctx, func(context.Context) (int, error) {
		called = true
		return 1, nil
	}).Await()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAsync_PanicBecomesError(t *testing.T) {
	t.Parallel()

	res, err := async.Async(context.Background(), func(context.Context) (int, error) {
		panic("kaboom")
	}).Await()
	require.ErrorIs(t, err, async.ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Zero(t, res)
}

func TestFuture_AwaitWithTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := async.Async(context.Background(), func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	_, err := f.AwaitWithTimeout(10 * time.Millisecond)
	assert.ErrorIs(t, err, async.ErrTimeout)
	assert.False(t, f.IsComplete())

	close(release)
	res, err := f.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, res)
}

func TestWaitAll(t *testing.T) {
	t.Parallel()

	slow := async.Async(context.Background(), func(context.Context) (int, error) {
		time.Sleep(20 * time.Millisecond)
		return 1, nil
	})
	fast := async.Async(context.Background(), func(context.Context) (int, error) { return 2, nil })

	res, err := async.WaitAll(slow, fast)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res)

	first := errors.New("first")
	second := errors.New("second")
	res, err = async.WaitAll(
		async.Async(context.Background(), func(context.Context) (int, error) { return 1, nil }),
		async.Async(context.Background(), func(context.Context) (int, error) { return 0, first }),
		async.Async(context.Background(), func(context.Context) (int, error) { return 3, second }),
	)
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []int{1, 0, 3}, res)

	res, err = async.WaitAll[int]()
	assert.NoError(t, err)
	assert.Empty(t, res)
}
