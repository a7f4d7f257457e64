// Package requestid tags every HTTP request with a correlation id.
//
// The middleware keeps a well-formed X-Request-ID (or X-Correlation-ID) sent
// by the caller and generates a uuid otherwise. The id is echoed in the
// X-Request-ID response header, stored in the request context and, through
// LoggerExtractor, attached as request_id to every record logged with that
// context:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r.Use(requestid.Middleware)
package requestid
