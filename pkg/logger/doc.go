// Package logger builds slog loggers for statuscast services and provides
// typed attribute helpers for the fields those services log repeatedly.
//
// A logger is created with New and a set of options:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "statusd"),
//	    logger.WithContextValue("request_id", requestIDKey),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "job completed",
//	    logger.JobID(job.ID),
//	    logger.Duration(time.Since(start)),
//	)
//
// Error and Errors produce attributes only when the supplied error is
// non-nil, so they can be passed without an extra nil check.
package logger
