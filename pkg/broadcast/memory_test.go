package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/broadcast"
)

func receive[T any](t *testing.T, sub broadcast.Subscriber[T]) (T, bool) {
	t.Helper()
	select {
	case msg, ok := <-sub.Receive(context.Background()):
		return msg.Data, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	var zero T
	return zero, false
}

func TestMemoryBroadcaster_FanOut(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[string](4)
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	s1 := b.Subscribe(ctx)
	s2 := b.Subscribe(ctx)
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.Broadcast(ctx, broadcast.Message[string]{Data: "hello"}))

	for _, s := range []broadcast.Subscriber[string]{s1, s2} {
		got, ok := receive(t, s)
		require.True(t, ok)
		assert.Equal(t, "hello", got)
	}
}

func TestMemoryBroadcaster_SlowSubscriberDropped(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	slow := b.Subscribe(ctx)
	require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 1}))
	require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 2}))

	assert.Equal(t, 0, b.Len())
	got, ok := receive(t, slow)
	require.True(t, ok)
	assert.Equal(t, 1, got)
	_, ok = receive(t, slow)
	assert.False(t, ok, "channel closed after drop")
}

func TestMemoryBroadcaster_ContextCancel(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := receive(t, sub)
	assert.False(t, ok)
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	sub := b.Subscribe(context.Background())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := receive(t, sub)
	assert.False(t, ok)

	late := b.Subscribe(context.Background())
	_, ok = receive(t, late)
	assert.False(t, ok, "subscribing after close yields a closed subscriber")
	assert.NoError(t, b.Broadcast(context.Background(), broadcast.Message[int]{Data: 1}))
	assert.NoError(t, sub.Close(), "double close is safe")
}
