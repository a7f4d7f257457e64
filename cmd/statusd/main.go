// Command statusd serves the analysis status API, pushes live status
// updates to websocket subscribers and delivers queued notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/statuscast/pkg/async"
	"github.com/dmitrymomot/statuscast/pkg/changefeed"
	"github.com/dmitrymomot/statuscast/pkg/config"
	"github.com/dmitrymomot/statuscast/pkg/httpserver"
	"github.com/dmitrymomot/statuscast/pkg/hub"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
	"github.com/dmitrymomot/statuscast/pkg/queue"
	"github.com/dmitrymomot/statuscast/pkg/ratelimit"
	"github.com/dmitrymomot/statuscast/pkg/requestid"
	"github.com/dmitrymomot/statuscast/pkg/status"
	"github.com/dmitrymomot/statuscast/svc/api"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("statusd stopped", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	var (
		httpCfg  httpserver.Config
		hubCfg   hub.Config
		feedCfg  changefeed.Config
		queueCfg queue.Config
		limitCfg ratelimit.Config
		apiCfg   api.Config
	)
	if err := errors.Join(
		config.Load(&httpCfg),
		config.Load(&hubCfg),
		config.Load(&feedCfg),
		config.Load(&queueCfg),
		config.Load(&limitCfg),
		config.Load(&apiCfg),
	); err != nil {
		return err
	}
	chCfg, err := loadChannelConfig()
	if err != nil {
		return err
	}

	res := &resources{log: log}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.TaskStopTimeout)
		defer cancel()
		res.close(closeCtx)
	}()

	statuses, err := res.statusStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open status store: %w", err)
	}

	policies, err := ratelimit.LoadPolicies(limitCfg.PoliciesFile)
	if err != nil {
		return err
	}
	limiterStore, err := res.limiterStore(ctx, limitCfg)
	if err != nil {
		return fmt.Errorf("open rate limit store: %w", err)
	}
	limiter, err := ratelimit.NewSlidingWindow(limiterStore,
		ratelimit.WithLogger(log),
		ratelimit.WithRecordRejected(limitCfg.RecordRejected),
	)
	if err != nil {
		return err
	}

	h := hub.New(
		hub.WithConfig(hubCfg),
		hub.WithLogger(log),
		hub.WithSnapshotSource(statuses),
	)
	listener := changefeed.New(statuses, h,
		changefeed.WithConfig(feedCfg),
		changefeed.WithLogger(log),
	)

	jobs, err := res.jobStorage(ctx, queueCfg)
	if err != nil {
		return fmt.Errorf("open job storage: %w", err)
	}
	enqueuer, err := queue.NewEnqueuer(jobs)
	if err != nil {
		return err
	}
	notifier, err := notifications.NewService(enqueuer, notifications.WithHistory(jobs))
	if err != nil {
		return err
	}

	registry := newRegistry(ctx, chCfg, h, log.With(logger.Component("notifications")))
	logChannelValidation(ctx, registry, log)

	dispatcher, err := notifications.NewDispatcher(registry,
		notifications.WithDispatcherLogger(log.With(logger.Component("dispatcher"))),
	)
	if err != nil {
		return err
	}
	worker, err := queue.NewWorker(jobs,
		queue.WithWorkerConfig(queueCfg),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}
	if err := worker.RegisterHandler(dispatcher.Handler()); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	tasks := async.NewGroup(gctx,
		async.WithGroupLogger(log.With(logger.Component("tasks"))),
		async.WithLimit(cfg.TaskLimit),
	)

	server, err := api.New(apiCfg, notifier, statuses, limiter,
		api.WithLogger(log),
		api.WithPolicies(policies),
		api.WithWebSocket(h.Handler()),
		api.WithHealthChecks(httpCfg.HealthTimeout, res.checks...),
		api.WithOnCreate(tasks, queuedNotice(notifier, cfg.QueuedNoticeTitle)),
	)
	if err != nil {
		return err
	}

	httpServer := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log.With(logger.Component("http"))),
		httpserver.WithShutdownHook(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
			defer cancel()
			if err := h.Shutdown(shutdownCtx); err != nil {
				log.Warn("hub shutdown incomplete", logger.Error(err))
			}
		}),
	)

	if err := tasks.Go("hub-events", func(ctx context.Context) error {
		watchHub(ctx, h, log.With(logger.Component("hub")))
		return nil
	}); err != nil {
		return err
	}

	g.Go(httpServer.RunFunc(gctx, server.Handler()))
	g.Go(worker.Run(gctx))
	g.Go(listener.Run(gctx))

	log.InfoContext(ctx, "statusd started",
		slog.String("status_store", cfg.StatusStore),
		slog.String("queue_storage", queueCfg.Storage),
		slog.String("rate_limit_store", limitCfg.Store),
	)

	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.TaskStopTimeout)
	defer cancel()
	if err := tasks.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("background tasks did not stop cleanly", logger.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("statusd stopped")
	return nil
}

// queuedNotice pushes an in-app notice to the owner of a new analysis.
func queuedNotice(svc *notifications.Service, title string) func(context.Context, status.Record) error {
	return func(ctx context.Context, rec status.Record) error {
		if rec.UserID == "" {
			return nil
		}
		_, err := svc.Enqueue(ctx, notifications.Request{
			Recipient: rec.UserID,
			Channels:  []string{"push"},
			Message:   fmt.Sprintf("Analysis %s is queued", rec.AnalysisID),
			Options: notifications.Options{
				Subject: title,
				Type:    "analysis_queued",
				Data:    map[string]any{"analysisId": rec.AnalysisID},
			},
		})
		return err
	}
}

// watchHub logs hub events until ctx is done or the hub shuts down. The
// event bus drops subscribers that fall behind, so a dropped subscription
// is replaced.
func watchHub(ctx context.Context, h *hub.Hub, log *slog.Logger) {
	for {
		logHubEvents(ctx, h, log)
		if ctx.Err() != nil || h.Closed() {
			return
		}
		log.WarnContext(ctx, "hub event subscription dropped, resubscribing")
	}
}

func logHubEvents(ctx context.Context, h *hub.Hub, log *slog.Logger) {
	sub := h.Events(ctx)
	defer func() { _ = sub.Close() }()

	for msg := range sub.Receive(ctx) {
		e := msg.Data
		switch e.Type {
		case hub.EventDropped:
			log.WarnContext(ctx, "slow subscriber dropped",
				logger.ConnID(e.ClientID),
				logger.Topic(e.Topic),
			)
		case hub.EventBroadcast:
			log.DebugContext(ctx, "status broadcast",
				logger.Topic(e.Topic),
				slog.Int("recipients", e.Recipients),
			)
		default:
			log.DebugContext(ctx, "hub event",
				slog.String("type", string(e.Type)),
				logger.ConnID(e.ClientID),
				logger.Topic(e.Topic),
			)
		}
	}
}
