// Package httpserver runs an http.Server with graceful shutdown and provides
// a JSON health check handler.
//
// Run serves until its context is cancelled, then shuts the server down
// within the configured timeout. Shutdown hooks registered with
// WithShutdownHook run when shutdown starts, which lets the websocket hub
// close hijacked connections.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(srv.RunFunc(ctx, router))
//
// HealthCheckHandler runs named checks concurrently and reports each result:
//
//	r.Get("/health", httpserver.HealthCheckHandler(log, time.Second,
//	    httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)},
//	))
package httpserver
