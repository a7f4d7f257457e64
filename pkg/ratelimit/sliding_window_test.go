package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/ratelimit"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRedisStore(t *testing.T) *ratelimit.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := ratelimit.NewRedisStore(client)
	require.NoError(t, err)
	return store
}

func newMemoryStore(t *testing.T) *ratelimit.MemoryStore {
	t.Helper()
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type storeFactory struct {
	name string
	new  func(t *testing.T) ratelimit.Store
}

var stores = []storeFactory{
	{"memory", func(t *testing.T) ratelimit.Store { return newMemoryStore(t) }},
	{"redis", func(t *testing.T) ratelimit.Store { return newRedisStore(t) }},
}

func TestSlidingWindow_SequentialAdmission(t *testing.T) {
	t.Parallel()

	for _, sf := range stores {
		t.Run(sf.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			sw, err := ratelimit.NewSlidingWindow(sf.new(t),
				ratelimit.WithClock(clock.Now),
				ratelimit.WithLogger(logger.Discard()),
			)
			require.NoError(t, err)

			ctx := context.Background()
			window := 24 * time.Hour
			first := clock.Now()

			for i, want := range []int{5, 4, 3, 2, 1, 0} {
				res, err := sw.Check(ctx, "device-1", 6, window)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "call %d", i+1)
				assert.Equal(t, want, res.Remaining, "call %d", i+1)
				assert.Equal(t, 6, res.Limit)
				assert.Zero(t, res.RetryAfter)
				assert.False(t, res.Degraded)
				clock.Advance(time.Minute)
			}

			res, err := sw.Check(ctx, "device-1", 6, window)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, 0, res.Remaining)
			assert.Positive(t, res.RetryAfter)
			assert.True(t, res.ResetAt.Equal(first.Add(window)), "reset follows the oldest entry")

			other, err := sw.Check(ctx, "device-2", 6, window)
			require.NoError(t, err)
			assert.True(t, other.Allowed, "keys are independent")
		})
	}
}

func TestSlidingWindow_WindowElapses(t *testing.T) {
	t.Parallel()

	for _, sf := range stores {
		t.Run(sf.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			sw, err := ratelimit.NewSlidingWindow(sf.new(t),
				ratelimit.WithClock(clock.Now),
				ratelimit.WithRecordRejected(false),
				ratelimit.WithLogger(logger.Discard()),
			)
			require.NoError(t, err)

			ctx := context.Background()
			for range 2 {
				res, err := sw.Check(ctx, "k", 2, time.Hour)
				require.NoError(t, err)
				require.True(t, res.Allowed)
			}

			res, err := sw.Check(ctx, "k", 2, time.Hour)
			require.NoError(t, err)
			require.False(t, res.Allowed)
			assert.Equal(t, 3600, res.RetryAfter)

			clock.Advance(time.Hour + time.Millisecond)

			res, err = sw.Check(ctx, "k", 2, time.Hour)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 1, res.Remaining)
		})
	}
}

func TestSlidingWindow_RecordRejectedPolicy(t *testing.T) {
	t.Parallel()

	for _, sf := range stores {
		t.Run(sf.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			t.Run("rejected attempts occupy the window", func(t *testing.T) {
				clock := newFakeClock()
				sw, err := ratelimit.NewSlidingWindow(sf.new(t), ratelimit.WithClock(clock.Now))
				require.NoError(t, err)
				assert.True(t, sw.RecordsRejected())

				// t=0 allowed, t=30m rejected
				_, err = sw.Check(ctx, "k", 1, time.Hour)
				require.NoError(t, err)
				clock.Advance(30 * time.Minute)
				res, err := sw.Check(ctx, "k", 1, time.Hour)
				require.NoError(t, err)
				require.False(t, res.Allowed)

				// first entry expired, the rejected one still counts
				clock.Advance(31 * time.Minute)
				res, err = sw.Check(ctx, "k", 1, time.Hour)
				require.NoError(t, err)
				assert.False(t, res.Allowed)

				usage, err := sw.Status(ctx, "k", 1, time.Hour)
				require.NoError(t, err)
				assert.Equal(t, 2, usage.Used)
			})

			t.Run("rejected attempts are not recorded", func(t *testing.T) {
				clock := newFakeClock()
				sw, err := ratelimit.NewSlidingWindow(sf.new(t),
					ratelimit.WithClock(clock.Now),
					ratelimit.WithRecordRejected(false),
				)
				require.NoError(t, err)

				_, err = sw.Check(ctx, "k", 1, time.Hour)
				require.NoError(t, err)
				clock.Advance(30 * time.Minute)
				res, err := sw.Check(ctx, "k", 1, time.Hour)
				require.NoError(t, err)
				require.False(t, res.Allowed)

				clock.Advance(31 * time.Minute)
				res, err = sw.Check(ctx, "k", 1, time.Hour)
				require.NoError(t, err)
				assert.True(t, res.Allowed)
			})
		})
	}
}

func TestSlidingWindow_Status(t *testing.T) {
	t.Parallel()

	for _, sf := range stores {
		t.Run(sf.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			sw, err := ratelimit.NewSlidingWindow(sf.new(t), ratelimit.WithClock(clock.Now))
			require.NoError(t, err)
			ctx := context.Background()

			usage, err := sw.Status(ctx, "k", 6, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, 0, usage.Used)
			assert.Equal(t, 6, usage.Remaining)
			assert.True(t, usage.ResetAt.Equal(clock.Now().Add(time.Hour)))

			start := clock.Now()
			for range 3 {
				_, err := sw.Check(ctx, "k", 6, time.Hour)
				require.NoError(t, err)
				clock.Advance(time.Second)
			}

			usage, err = sw.Status(ctx, "k", 6, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, 3, usage.Used)
			assert.Equal(t, 3, usage.Remaining)
			assert.Equal(t, time.Hour, usage.Window)
			assert.True(t, usage.ResetAt.Equal(start.Add(time.Hour)))

			again, err := sw.Status(ctx, "k", 6, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, 3, again.Used, "status does not record")

			require.NoError(t, sw.Reset(ctx, "k"))
			usage, err = sw.Status(ctx, "k", 6, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, 0, usage.Used)
		})
	}
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int, onlyIfAllowed bool) (ratelimit.WindowState, error) {
	args := m.Called(ctx, key, now, window, limit, onlyIfAllowed)
	return args.Get(0).(ratelimit.WindowState), args.Error(1)
}

func (m *mockStore) Inspect(ctx context.Context, key string, now time.Time, window time.Duration) (ratelimit.WindowState, error) {
	args := m.Called(ctx, key, now, window)
	return args.Get(0).(ratelimit.WindowState), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestSlidingWindow_FailOpen(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	storeErr := errors.New("connection refused")
	store.On("Record", mock.Anything, "k", mock.Anything, time.Hour, 6, false).
		Return(ratelimit.WindowState{}, storeErr)
	store.On("Inspect", mock.Anything, "k", mock.Anything, time.Hour).
		Return(ratelimit.WindowState{}, storeErr)

	clock := newFakeClock()
	sw, err := ratelimit.NewSlidingWindow(store, ratelimit.WithClock(clock.Now), ratelimit.WithLogger(logger.Discard()))
	require.NoError(t, err)

	res, err := sw.Check(context.Background(), "k", 6, time.Hour)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.Degraded)
	assert.Equal(t, 5, res.Remaining)
	assert.True(t, res.ResetAt.Equal(clock.Now().Add(time.Hour)))

	usage, err := sw.Status(context.Background(), "k", 6, time.Hour)
	require.NoError(t, err)
	assert.True(t, usage.Degraded)
	assert.Equal(t, 6, usage.Remaining)

	store.AssertExpectations(t)
}

func TestSlidingWindow_FailOpenOnRedisOutage(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store, err := ratelimit.NewRedisStore(client)
	require.NoError(t, err)

	sw, err := ratelimit.NewSlidingWindow(store, ratelimit.WithLogger(logger.Discard()))
	require.NoError(t, err)

	mr.Close()

	res, err := sw.Check(context.Background(), "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.Remaining)
}

func TestSlidingWindow_InvalidArguments(t *testing.T) {
	t.Parallel()

	_, err := ratelimit.NewSlidingWindow(nil)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)

	sw, err := ratelimit.NewSlidingWindow(newMemoryStore(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = sw.Check(ctx, "", 1, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
	_, err = sw.Check(ctx, "k", 0, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)
	_, err = sw.Check(ctx, "k", 1, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidWindow)
	_, err = sw.Status(ctx, "", 1, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
	assert.ErrorIs(t, sw.Reset(ctx, ""), ratelimit.ErrKeyRequired)
}

func TestRedisStore_SetsExpiry(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := ratelimit.NewRedisStore(client)
	require.NoError(t, err)

	for _, onlyIfAllowed := range []bool{false, true} {
		key := "rate_limit:d:test"
		if onlyIfAllowed {
			key += ":lua"
		}
		_, err := store.Record(context.Background(), key, time.Now(), time.Hour, 5, onlyIfAllowed)
		require.NoError(t, err)
		assert.Equal(t, time.Hour+time.Minute, mr.TTL(key))
	}
}
