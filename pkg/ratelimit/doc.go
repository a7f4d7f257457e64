// Package ratelimit is a sliding window admission controller.
//
// Each key owns an ordered collection of attempt timestamps. A check prunes
// entries older than the window, counts what is left, records the attempt
// and refreshes the key's expiry to the window plus one minute, all in one
// atomic exchange with the store. The request is allowed when the count
// measured before recording is below the limit.
//
// By default rejected attempts are recorded too, so a client that keeps
// hammering a limited endpoint stays limited. WithRecordRejected(false)
// switches to recording admitted attempts only.
//
// Store errors fail open: the request is allowed, the result is marked
// Degraded and a warning is logged.
//
//	store, _ := ratelimit.NewRedisStore(redisClient)
//	limiter, _ := ratelimit.NewSlidingWindow(store, ratelimit.WithLogger(log))
//
//	policies := ratelimit.DefaultPolicies()
//	upload, _ := policies.Get(ratelimit.LimitUpload)
//	r.With(ratelimit.Middleware(limiter, upload)).Post("/upload", h)
//
// Concurrent checks for the same key are not linearizable against each
// other: N callers racing at the boundary may admit up to N-1 extra requests.
package ratelimit
