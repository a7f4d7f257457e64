// Package queue provides a repository-agnostic durable job queue with
// bounded retries and a bounded terminal history.
//
// The package is organised around two components:
//
//   - Enqueuer: adds jobs to the queue and returns their ids
//   - Worker: claims ready jobs and dispatches them to a registered Handler
//
// Components interact only through small repository interfaces
// (EnqueuerRepository, WorkerRepository, HistoryRepository). MemoryStorage
// and RedisStorage implement all of them.
//
// # Retries
//
// A job runs at most MaxAttempts times (3 by default). When a handler
// returns an error or panics and attempts remain, the job is rescheduled
// after Backoff.Next(attempt), 2s then 4s by default. A job whose handler
// is not registered fails at once. Terminal jobs are kept on capped
// histories (100 completed, 50 failed by default) and older ones are
// deleted.
//
// # Locks
//
// A claimed job is locked by one worker until its lock expires. Only the
// lock holder may report its outcome; other callers get
// ErrJobNotOwned. An expired job goes back to pending while attempts
// remain and otherwise fails with ErrLockExpired.
//
// # Usage
//
//	storage := queue.NewMemoryStorage()
//	enqueuer, _ := queue.NewEnqueuer(storage)
//	id, err := enqueuer.Enqueue(ctx, payload, queue.WithJobName("sendNotification"))
//
//	worker, _ := queue.NewWorker(storage, queue.WithConcurrency(5))
//	_ = worker.RegisterHandler(queue.NewJobHandler("sendNotification", handle))
//	outcomes := worker.Outcomes(ctx)
//	g.Go(worker.Run(ctx))
//
// Outcomes delivers one Outcome per execution: completed, rescheduled or
// failed.
package queue
