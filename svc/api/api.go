package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/dmitrymomot/statuscast/pkg/binder"
	"github.com/dmitrymomot/statuscast/pkg/clientip"
	"github.com/dmitrymomot/statuscast/pkg/fingerprint"
	"github.com/dmitrymomot/statuscast/pkg/handler"
	"github.com/dmitrymomot/statuscast/pkg/httpserver"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
	"github.com/dmitrymomot/statuscast/pkg/queue"
	"github.com/dmitrymomot/statuscast/pkg/ratelimit"
	"github.com/dmitrymomot/statuscast/pkg/requestid"
	"github.com/dmitrymomot/statuscast/pkg/status"
)

// NotificationService enqueues notification jobs and reads their history.
type NotificationService interface {
	Enqueue(ctx context.Context, req notifications.Request) (uuid.UUID, error)
	Job(ctx context.Context, id uuid.UUID) (*queue.Job, error)
	History(ctx context.Context, status queue.JobStatus, limit int) ([]queue.Job, error)
}

// RateLimiter admits requests and reports window usage.
type RateLimiter interface {
	ratelimit.Checker
	Status(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Usage, error)
}

// TaskSpawner runs work that outlives a request. *async.Group satisfies it.
type TaskSpawner interface {
	Go(name string, fn func(ctx context.Context) error) error
}

// Server serves the public HTTP API.
type Server struct {
	cfg           Config
	log           *slog.Logger
	baseLog       *slog.Logger // without the component, for middleware that tags its own
	notifications NotificationService
	statuses      status.Store
	limiter       RateLimiter
	policies      ratelimit.Policies
	ws            http.Handler
	checks        []httpserver.Check
	healthTimeout time.Duration
	newID         func() string
	errs          handler.ErrorHandler
	tasks         TaskSpawner
	onCreate      func(ctx context.Context, rec status.Record) error
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPolicies replaces ratelimit.DefaultPolicies.
func WithPolicies(p ratelimit.Policies) Option {
	return func(s *Server) {
		if len(p) > 0 {
			s.policies = p
		}
	}
}

// WithWebSocket mounts h at /ws.
func WithWebSocket(h http.Handler) Option {
	return func(s *Server) {
		s.ws = h
	}
}

// WithHealthChecks sets the readiness probes behind /api/status.
func WithHealthChecks(timeout time.Duration, checks ...httpserver.Check) Option {
	return func(s *Server) {
		s.healthTimeout = timeout
		s.checks = append(s.checks, checks...)
	}
}

// WithIDGenerator overrides how new analysis ids are made.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithOnCreate runs fn as a background task in tasks after an analysis is
// created. The request does not wait for it.
func WithOnCreate(tasks TaskSpawner, fn func(ctx context.Context, rec status.Record) error) Option {
	return func(s *Server) {
		if tasks != nil && fn != nil {
			s.tasks = tasks
			s.onCreate = fn
		}
	}
}

// New builds the API server. The upload and refresh policies must be present.
func New(cfg Config, ns NotificationService, statuses status.Store, limiter RateLimiter, opts ...Option) (*Server, error) {
	switch {
	case ns == nil:
		return nil, ErrNotificationsRequired
	case statuses == nil:
		return nil, ErrStatusStoreRequired
	case limiter == nil:
		return nil, ErrLimiterRequired
	}

	s := &Server{
		cfg:           cfg,
		log:           slog.Default(),
		notifications: ns,
		statuses:      statuses,
		limiter:       limiter,
		policies:      ratelimit.DefaultPolicies(),
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseLog = s.log
	s.log = s.log.With(logger.Component("api"))
	s.errs = handler.NewErrorHandler(s.baseLog)

	if s.cfg.HistoryLimit <= 0 {
		s.cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if s.cfg.MaxHistoryLimit < s.cfg.HistoryLimit {
		s.cfg.MaxHistoryLimit = s.cfg.HistoryLimit
	}

	for _, name := range []string{ratelimit.LimitUpload, ratelimit.LimitRefresh} {
		p, err := s.policies.Get(name)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("api: %w", err)
		}
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		requestid.Middleware,
		clientip.Middleware,
		fingerprint.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{
				"Accept", "Authorization", "Content-Type",
				requestid.Header, fingerprint.HeaderDeviceFingerprint, fingerprint.HeaderDeviceFingerprintAlt,
			},
			ExposedHeaders: []string{
				requestid.Header, "Retry-After",
				"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-RateLimit-Reset-Timestamp",
			},
			MaxAge: s.cfg.CORSMaxAge,
		}),
	)

	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", httpserver.HealthCheckHandler(s.log, s.healthTimeout))
		r.Get("/status", httpserver.HealthCheckHandler(s.log, s.healthTimeout, s.checks...))

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", wrap(s, s.enqueueNotification, binder.JSON()))
			r.Get("/history", wrap(s, s.notificationHistory, binder.Query()))
			r.Get("/jobs/{id}", wrap(s, s.notificationJob, binder.Path(chi.URLParam)))
		})

		r.Route("/rate-limit", func(r chi.Router) {
			r.Get("/status", wrap(s, s.rateLimitStatus, binder.Query()))
			r.Get("/info", wrap(s, s.rateLimitInfo))
		})

		r.Route("/analysis", func(r chi.Router) {
			r.With(s.limit(ratelimit.LimitUpload)).
				Post("/", wrap(s, s.createAnalysis, binder.JSON(binder.Optional())))
			r.Get("/{id}/status", wrap(s, s.analysisStatus, binder.Path(chi.URLParam)))
			r.With(s.limit(ratelimit.LimitRefresh,
				ratelimit.WithSubResource(analysisIDParam),
				ratelimit.WithCondition(ratelimit.QueryFlag("refresh")),
			)).Get("/{id}/results", wrap(s, s.analysisResults, binder.Path(chi.URLParam)))
			r.Post("/{id}/cancel", wrap(s, s.cancelAnalysis, binder.Path(chi.URLParam)))
			r.Patch("/{id}", wrap(s, s.applyAnalysis, binder.Path(chi.URLParam), binder.JSON()))
		})
	})

	return r
}

func wrap[R any](s *Server, h handler.HandlerFunc[R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[R](binders...),
		handler.WithErrorHandler[R](s.errs),
	)
}

func (s *Server) limit(name string, opts ...ratelimit.MiddlewareOption) func(http.Handler) http.Handler {
	// New already checked the policy exists.
	p, _ := s.policies.Get(name)
	opts = append([]ratelimit.MiddlewareOption{
		ratelimit.WithIdentity(deviceID),
		ratelimit.WithMiddlewareLogger(s.baseLog),
	}, opts...)
	return ratelimit.Middleware(s.limiter, p, opts...)
}

func analysisIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// deviceID prefers the id stored by fingerprint.Middleware.
func deviceID(r *http.Request) string {
	if id := fingerprint.GetDeviceIDFromContext(r.Context()); id != "" {
		return id
	}
	return fingerprint.DeviceID(r)
}
