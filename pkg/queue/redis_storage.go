package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript returns expired locks of the queue to pending, then moves the
// earliest ready job to processing and records its owner. Returns the job id
// or nil.
var claimScript = redis.NewScript(`
local pending = KEYS[1]
local processing = KEYS[2]
local owners = KEYS[3]
local now = ARGV[1]

local expired = redis.call('ZRANGEBYSCORE', processing, '-inf', now)
for _, id in ipairs(expired) do
	redis.call('ZREM', processing, id)
	redis.call('HDEL', owners, id)
	redis.call('ZADD', pending, now, id)
end

local ready = redis.call('ZRANGEBYSCORE', pending, '-inf', now, 'LIMIT', 0, 1)
if #ready == 0 then
	return false
end
local id = ready[1]
redis.call('ZREM', pending, id)
redis.call('ZADD', processing, ARGV[2], id)
redis.call('HSET', owners, id, ARGV[3])
return id
`)

// finishScript stores a terminal job, pushes it on its history list and
// deletes the jobs that fall off the list. Returns -1 when the caller no
// longer owns the lock.
var finishScript = redis.NewScript(`
local processing = KEYS[1]
local history = KEYS[2]
local jobKey = KEYS[3]
local owners = KEYS[4]
local id = ARGV[1]
local limit = tonumber(ARGV[3])

if redis.call('HGET', owners, id) ~= ARGV[5] then
	return -1
end
redis.call('HDEL', owners, id)
redis.call('ZREM', processing, id)
redis.call('SET', jobKey, ARGV[2])
redis.call('LPUSH', history, id)

local stale = redis.call('LRANGE', history, limit, -1)
for _, old in ipairs(stale) do
	redis.call('DEL', ARGV[4] .. old)
end
redis.call('LTRIM', history, 0, limit - 1)
return #stale
`)

// retryScript moves an owned job from processing back to pending at the
// given score. Returns 0 when the caller no longer owns the lock.
var retryScript = redis.NewScript(`
local processing = KEYS[1]
local pending = KEYS[2]
local jobKey = KEYS[3]
local owners = KEYS[4]
local id = ARGV[1]

if redis.call('HGET', owners, id) ~= ARGV[4] then
	return 0
end
redis.call('HDEL', owners, id)
redis.call('SET', jobKey, ARGV[2])
redis.call('ZREM', processing, id)
redis.call('ZADD', pending, ARGV[3], id)
return 1
`)

// RedisStorage implements all queue repository interfaces on Redis. Jobs
// are JSON strings; each queue has a pending and a processing sorted set
// scored by Unix milliseconds, and terminal jobs are kept on capped lists.
type RedisStorage struct {
	client    redis.UniversalClient
	prefix    string
	retention Retention
}

// NewRedisStorage creates a Redis-backed storage
func NewRedisStorage(client redis.UniversalClient, opts ...StorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}
	o := newStorageOptions(opts)
	return &RedisStorage{client: client, prefix: o.prefix, retention: o.retention}, nil
}

// CreateJob implements EnqueuerRepository
func (rs *RedisStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, err)
	}

	ok, err := rs.client.SetNX(ctx, rs.jobKey(job.ID.String()), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("queue: store job: %w", err)
	}
	if !ok {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	err = rs.client.ZAdd(ctx, rs.pendingKey(job.Queue), redis.Z{
		Score:  float64(job.ScheduledAt.UnixMilli()),
		Member: job.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: schedule job: %w", err)
	}
	return nil
}

// ClaimJob implements WorkerRepository. A job that comes back from an
// expired lock with no attempts left is failed instead of handed out.
func (rs *RedisStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Job, error) {
	for _, q := range queues {
		for {
			now := time.Now()
			lockUntil := now.Add(lockDuration)

			id, err := claimScript.Run(ctx, rs.client,
				[]string{rs.pendingKey(q), rs.processingKey(q), rs.ownerKey(q)},
				now.UnixMilli(), lockUntil.UnixMilli(), workerID.String(),
			).Text()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("queue: claim: %w", err)
			}

			job, err := rs.load(ctx, id)
			if errors.Is(err, ErrJobNotFound) {
				// dangling id, the job record is gone
				rs.client.ZRem(ctx, rs.processingKey(q), id)
				rs.client.HDel(ctx, rs.ownerKey(q), id)
				continue
			}
			if err != nil {
				return nil, err
			}

			if job.exhausted() {
				job.Error = ErrLockExpired.Error()
				if err := rs.finish(ctx, workerID, job, JobStatusFailed); err != nil {
					return nil, err
				}
				continue
			}

			job.Status = JobStatusProcessing
			job.Attempts++
			job.LockedUntil = &lockUntil
			job.LockedBy = &workerID
			job.ProcessedAt = &now
			if err := rs.save(ctx, job); err != nil {
				return nil, err
			}
			return job, nil
		}
	}

	return nil, ErrNoJobToClaim
}

// CompleteJob implements WorkerRepository
func (rs *RedisStorage) CompleteJob(ctx context.Context, workerID, jobID uuid.UUID, result json.RawMessage) error {
	job, err := rs.processing(ctx, workerID, jobID)
	if err != nil {
		return err
	}
	job.Result = result
	return rs.finish(ctx, workerID, job, JobStatusCompleted)
}

// RetryJob implements WorkerRepository
func (rs *RedisStorage) RetryJob(ctx context.Context, workerID, jobID uuid.UUID, errorMsg string, retryAt time.Time) error {
	job, err := rs.processing(ctx, workerID, jobID)
	if err != nil {
		return err
	}
	job.Status = JobStatusPending
	job.Error = errorMsg
	job.ScheduledAt = retryAt
	job.LockedUntil = nil
	job.LockedBy = nil

	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, err)
	}

	id := jobID.String()
	moved, err := retryScript.Run(ctx, rs.client,
		[]string{rs.processingKey(job.Queue), rs.pendingKey(job.Queue), rs.jobKey(id), rs.ownerKey(job.Queue)},
		id, raw, retryAt.UnixMilli(), workerID.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("queue: reschedule job: %w", err)
	}
	if moved == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotOwned, jobID)
	}
	return nil
}

// FailJob implements WorkerRepository
func (rs *RedisStorage) FailJob(ctx context.Context, workerID, jobID uuid.UUID, errorMsg string) error {
	job, err := rs.processing(ctx, workerID, jobID)
	if err != nil {
		return err
	}
	job.Error = errorMsg
	return rs.finish(ctx, workerID, job, JobStatusFailed)
}

// GetJob implements HistoryRepository
func (rs *RedisStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	return rs.load(ctx, jobID.String())
}

// History implements HistoryRepository
func (rs *RedisStorage) History(ctx context.Context, status JobStatus, limit int) ([]Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := rs.client.LRange(ctx, rs.historyKey(status), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: read history: %w", err)
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = rs.jobKey(id)
	}
	values, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: read history: %w", err)
	}

	jobs := make([]Job, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, fmt.Errorf("queue: decode job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// processing loads a job held by workerID. The scripts repeat the owner
// check atomically with the state change.
func (rs *RedisStorage) processing(ctx context.Context, workerID, jobID uuid.UUID) (*Job, error) {
	job, err := rs.load(ctx, jobID.String())
	if err != nil {
		return nil, err
	}
	if job.Status != JobStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrJobNotProcessing, jobID)
	}
	if job.LockedBy == nil || *job.LockedBy != workerID {
		return nil, fmt.Errorf("%w: %s", ErrJobNotOwned, jobID)
	}
	return job, nil
}

func (rs *RedisStorage) finish(ctx context.Context, workerID uuid.UUID, job *Job, status JobStatus) error {
	now := time.Now()
	job.Status = status
	job.FinishedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil

	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, err)
	}

	id := job.ID.String()
	pruned, err := finishScript.Run(ctx, rs.client,
		[]string{rs.processingKey(job.Queue), rs.historyKey(status), rs.jobKey(id), rs.ownerKey(job.Queue)},
		id, raw, rs.retention.limit(status), rs.jobKey(""), workerID.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("queue: finish job: %w", err)
	}
	if pruned < 0 {
		return fmt.Errorf("%w: %s", ErrJobNotOwned, id)
	}
	return nil
}

func (rs *RedisStorage) load(ctx context.Context, id string) (*Job, error) {
	raw, err := rs.client.Get(ctx, rs.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: load job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("queue: decode job: %w", err)
	}
	return &job, nil
}

func (rs *RedisStorage) save(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, err)
	}
	if err := rs.client.Set(ctx, rs.jobKey(job.ID.String()), raw, 0).Err(); err != nil {
		return fmt.Errorf("queue: store job: %w", err)
	}
	return nil
}

func (rs *RedisStorage) jobKey(id string) string {
	return rs.prefix + ":job:" + id
}

func (rs *RedisStorage) pendingKey(queue string) string {
	return rs.prefix + ":pending:" + queue
}

func (rs *RedisStorage) processingKey(queue string) string {
	return rs.prefix + ":processing:" + queue
}

func (rs *RedisStorage) ownerKey(queue string) string {
	return rs.prefix + ":owner:" + queue
}

func (rs *RedisStorage) historyKey(status JobStatus) string {
	return rs.prefix + ":" + string(status)
}
