package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordIfAllowed inserts the attempt only when the pruned count is below
// the limit. Returns {count, oldest score or -1}.
var recordIfAllowed = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, ARGV[1], member)
end
if redis.call('EXISTS', key) == 1 then
	redis.call('PEXPIRE', key, ttl)
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #oldest == 0 then
	return {count, -1}
end
return {count, tonumber(oldest[2])}
`)

// RedisStore keeps each key's window in a sorted set scored by Unix
// milliseconds.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreRequired
	}
	return &RedisStore{client: client}, nil
}

// Record runs prune, count, insert and expire in one MULTI/EXEC exchange.
// The conditional variant runs as a Lua script.
func (s *RedisStore) Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int, onlyIfAllowed bool) (WindowState, error) {
	nowMs := now.UnixMilli()
	member := entryMember(nowMs)
	ttl := window + expiryGrace

	if onlyIfAllowed {
		res, err := recordIfAllowed.Run(ctx, s.client, []string{key},
			nowMs, window.Milliseconds(), limit, member, ttl.Milliseconds(),
		).Int64Slice()
		if err != nil {
			return WindowState{}, fmt.Errorf("ratelimit: record script: %w", err)
		}
		if len(res) != 2 {
			return WindowState{}, fmt.Errorf("ratelimit: unexpected script reply of %d values", len(res))
		}
		st := WindowState{Count: int(res[0])}
		if res[1] >= 0 {
			st.Oldest = time.UnixMilli(res[1])
		}
		return st, nil
	}

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(nowMs-window.Milliseconds(), 10))
		card = pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member})
		pipe.PExpire(ctx, key, ttl)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil {
		return WindowState{}, fmt.Errorf("ratelimit: record: %w", err)
	}

	return windowState(card.Val(), oldest.Val()), nil
}

// Inspect prunes and counts without inserting.
func (s *RedisStore) Inspect(ctx context.Context, key string, now time.Time, window time.Duration) (WindowState, error) {
	nowMs := now.UnixMilli()

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(nowMs-window.Milliseconds(), 10))
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return WindowState{}, fmt.Errorf("ratelimit: inspect: %w", err)
	}

	return windowState(card.Val(), oldest.Val()), nil
}

// Delete drops the key's sorted set.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("ratelimit: delete: %w", err)
	}
	return nil
}

func windowState(count int64, oldest []redis.Z) WindowState {
	st := WindowState{Count: int(count)}
	if len(oldest) > 0 {
		st.Oldest = time.UnixMilli(int64(oldest[0].Score))
	}
	return st
}

// entryMember keeps entries with the same millisecond distinct.
func entryMember(nowMs int64) string {
	return strconv.FormatInt(nowMs, 10) + "-" + strconv.FormatUint(rand.Uint64(), 36)
}
