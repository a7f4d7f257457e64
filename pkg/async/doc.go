// Package async runs work in the background.
//
// Future is the result of a single computation started with Async. The
// caller waits for it with Await or AwaitWithTimeout, or collects several
// with WaitAll. A panic inside the computation completes the future with
// ErrPanic instead of crashing the process.
//
//	redisCheck := async.Async(ctx, func(ctx context.Context) (string, error) {
//	    return "redis", redis.Healthcheck(client)(ctx)
//	})
//	_, err := async.WaitAll(redisCheck, mongoCheck)
//
// Group supervises long-lived named tasks such as the change feed listener
// and the queue worker. Tasks share the group context; their panics are
// recovered and recorded as errors; Stop cancels the context and waits for
// every task to return. WithLimit bounds the number of concurrent tasks.
//
//	g := async.NewGroup(ctx, async.WithGroupLogger(log))
//	_ = g.Go("listener", func(ctx context.Context) error { ... })
//	defer g.Stop(shutdownCtx)
package async
