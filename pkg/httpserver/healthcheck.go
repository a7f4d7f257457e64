package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/async"
	"github.com/dmitrymomot/statuscast/pkg/logger"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// HealthReport is the body written by HealthCheckHandler.
type HealthReport struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Health statuses.
const (
	StatusOK          = "OK"
	StatusUnavailable = "UNAVAILABLE"
)

// HealthCheckHandler runs every check concurrently, each bounded by timeout,
// and answers 200 when all pass, 503 otherwise. Without checks it is a
// liveness probe.
func HealthCheckHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		futures := make([]*async.Future[struct{}], len(checks))
		for i, c := range checks {
			futures[i] = async.Async(ctx, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, c.Fn(ctx)
			})
		}

		report := HealthReport{Status: StatusOK, Timestamp: time.Now().UTC()}
		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
		}
		for i, f := range futures {
			name := checks[i].Name
			if _, err := f.Await(); err != nil {
				log.ErrorContext(ctx, "readiness check failed", slog.String("check", name), logger.Error(err))
				report.Status = StatusUnavailable
				report.Checks[name] = err.Error()
				continue
			}
			report.Checks[name] = StatusOK
		}

		code := http.StatusOK
		if report.Status != StatusOK {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}
