package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/statuscast/pkg/changefeed"
	"github.com/dmitrymomot/statuscast/pkg/config"
	"github.com/dmitrymomot/statuscast/pkg/httpserver"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/mongo"
	"github.com/dmitrymomot/statuscast/pkg/queue"
	"github.com/dmitrymomot/statuscast/pkg/ratelimit"
	"github.com/dmitrymomot/statuscast/pkg/redis"
	"github.com/dmitrymomot/statuscast/pkg/status"
)

// jobStorage is what the process needs from a queue backend.
type jobStorage interface {
	queue.EnqueuerRepository
	queue.WorkerRepository
	queue.HistoryRepository
}

// statusStore is a status store that can also feed the change listener.
type statusStore interface {
	status.Store
	changefeed.Watcher
}

// resources owns the backing connections and closes them in reverse order.
type resources struct {
	log     *slog.Logger
	checks  []httpserver.Check
	closers []func(context.Context) error

	redisOnce sync.Once
	redis     *goredis.Client
	redisErr  error
}

func (r *resources) onClose(fn func(context.Context) error) {
	r.closers = append(r.closers, fn)
}

func (r *resources) close(ctx context.Context) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			r.log.WarnContext(ctx, "failed to release resource", logger.Error(err))
		}
	}
}

// redisClient connects on first use so deployments that keep everything in
// memory never need a redis server.
func (r *resources) redisClient(ctx context.Context) (*goredis.Client, error) {
	r.redisOnce.Do(func() {
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			r.redisErr = err
			return
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			r.redisErr = err
			return
		}
		r.redis = client
		r.checks = append(r.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		r.onClose(func(context.Context) error { return client.Close() })
	})
	return r.redis, r.redisErr
}

// statusStore opens the analysis status store and the watcher that turns
// its writes into change events.
func (r *resources) statusStore(ctx context.Context, cfg appConfig) (statusStore, error) {
	switch strings.ToLower(cfg.StatusStore) {
	case storeMongo, "":
		var mcfg mongo.Config
		if err := config.Load(&mcfg); err != nil {
			return nil, err
		}
		client, err := mongo.New(ctx, mcfg)
		if err != nil {
			return nil, err
		}
		r.checks = append(r.checks, httpserver.Check{Name: "mongodb", Fn: mongo.Healthcheck(client)})
		r.onClose(client.Disconnect)

		store := status.NewMongoStore(client.Database(mcfg.Database).Collection(cfg.StatusCollection))
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return mongoStatuses{
			MongoStore:   store,
			MongoWatcher: changefeed.NewMongoWatcher(store.Collection()),
		}, nil

	case storeMemory:
		store := status.NewMemoryStore()
		r.onClose(closeFunc(store))
		return memoryStatuses{
			MemoryStore:   store,
			SourceWatcher: changefeed.NewSourceWatcher(store),
		}, nil

	default:
		return nil, fmt.Errorf("unknown status store %q", cfg.StatusStore)
	}
}

// jobStorage opens the notification queue backend.
func (r *resources) jobStorage(ctx context.Context, cfg queue.Config) (jobStorage, error) {
	opts := []queue.StorageOption{
		queue.WithRetention(cfg.Retention()),
		queue.WithKeyPrefix(cfg.RedisPrefix),
	}

	switch strings.ToLower(cfg.Storage) {
	case storeRedis, "":
		client, err := r.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		storage, err := queue.NewRedisStorage(client, opts...)
		if err != nil {
			return nil, err
		}
		return storage, nil

	case storeMemory:
		storage := queue.NewMemoryStorage(opts...)
		r.onClose(closeFunc(storage))
		return storage, nil

	default:
		return nil, fmt.Errorf("unknown queue storage %q", cfg.Storage)
	}
}

// limiterStore opens the sliding window log backend.
func (r *resources) limiterStore(ctx context.Context, cfg ratelimit.Config) (ratelimit.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case storeRedis, "":
		client, err := r.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		store, err := ratelimit.NewRedisStore(client)
		if err != nil {
			return nil, err
		}
		return store, nil

	case storeMemory:
		store := ratelimit.NewMemoryStore()
		r.onClose(closeFunc(store))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
}

func closeFunc(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

type mongoStatuses struct {
	*status.MongoStore
	*changefeed.MongoWatcher
}

type memoryStatuses struct {
	*status.MemoryStore
	*changefeed.SourceWatcher
}
