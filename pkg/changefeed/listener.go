package changefeed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/status"
)

// DefaultRestartDelay is the pause between a feed failure and the reopen.
const DefaultRestartDelay = 5 * time.Second

// Publisher receives every observed record state. *hub.Hub satisfies it.
type Publisher interface {
	Broadcast(topic string, s status.Snapshot) int
}

// Listener republishes status record writes through a Publisher. It keeps
// the feed open for as long as it runs: a failed or closed feed is closed
// and reopened after RestartDelay. Events missed while the feed is down are
// not replayed.
//
// Run exactly one listener per collection; events are not deduplicated.
type Listener struct {
	watcher   Watcher
	publisher Publisher
	logger    *slog.Logger
	delay     time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	opened atomic.Int64
}

// Option configures a Listener.
type Option func(*Listener)

func WithLogger(l *slog.Logger) Option {
	return func(ln *Listener) {
		if l != nil {
			ln.logger = l
		}
	}
}

func WithRestartDelay(d time.Duration) Option {
	return func(ln *Listener) {
		if d > 0 {
			ln.delay = d
		}
	}
}

func WithConfig(cfg Config) Option {
	return WithRestartDelay(cfg.RestartDelay)
}

// New creates a listener. Call Start to open the feed.
func New(w Watcher, p Publisher, opts ...Option) *Listener {
	l := &Listener{
		watcher:   w,
		publisher: p,
		logger:    slog.Default(),
		delay:     DefaultRestartDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(logger.Component("changefeed"))
	return l
}

// Start opens the feed and starts republishing in the background. An
// error opening the first feed is returned; later failures are retried.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrAlreadyStarted
	}

	stream, err := l.watcher.Watch(ctx)
	if err != nil {
		l.logger.ErrorContext(ctx, "change stream initialization failed", logger.Error(err))
		return err
	}
	l.opened.Add(1)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx, stream, l.done)

	l.logger.InfoContext(ctx, "change stream initialized")
	return nil
}

// Shutdown stops the listener and closes the current feed. No restart
// happens afterwards. Safe to call more than once.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	cancel()

	select {
	case <-done:
		l.logger.InfoContext(ctx, "change stream closed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the listener and returns a function suitable for errgroup.
// A feed that cannot be opened is retried every RestartDelay. The listener
// is shut down once ctx is done.
func (l *Listener) Run(ctx context.Context) func() error {
	return func() error {
		for {
			err := l.Start(ctx)
			if err == nil {
				break
			}
			if errors.Is(err, ErrAlreadyStarted) {
				return err
			}
			l.logger.WarnContext(ctx, "change stream unavailable, retrying", logger.Duration(l.delay))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.delay):
			}
		}
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return l.Shutdown(stopCtx)
	}
}

// Running reports whether the listener is started and not shut down.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Opened returns how many feeds have been opened, restarts included.
func (l *Listener) Opened() int64 {
	return l.opened.Load()
}

func (l *Listener) run(ctx context.Context, stream Stream, done chan struct{}) {
	defer close(done)

	for {
		l.consume(ctx, stream)

		err := stream.Err()
		if cerr := stream.Close(context.WithoutCancel(ctx)); cerr != nil {
			l.logger.Warn("failed to close change stream", logger.Error(cerr))
		}
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			l.logger.Error("change stream failed, restarting", logger.Error(err), logger.Duration(l.delay))
		} else {
			l.logger.Warn("change stream closed, restarting", logger.Duration(l.delay))
		}

		stream = l.reopen(ctx)
		if stream == nil {
			return
		}
	}
}

// reopen waits RestartDelay and opens a new feed, until it succeeds or the
// listener stops. Returns nil once stopped.
func (l *Listener) reopen(ctx context.Context) Stream {
	timer := time.NewTimer(l.delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if !l.Running() {
			return nil
		}

		stream, err := l.watcher.Watch(ctx)
		if err == nil {
			l.opened.Add(1)
			l.logger.Info("change stream reopened")
			return stream
		}
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Error("change stream restart failed", logger.Error(err))
		timer.Reset(l.delay)
	}
}

func (l *Listener) consume(ctx context.Context, stream Stream) {
	for stream.Next(ctx) {
		var ev Event
		if err := stream.Decode(&ev); err != nil {
			l.logger.Warn("failed to decode change event", logger.Error(err))
			continue
		}
		l.handle(ev)
	}
}

func (l *Listener) handle(ev Event) {
	rec := ev.FullDocument
	if rec == nil || rec.AnalysisID == "" {
		l.logger.Debug("change event without document skipped", slog.String("operation", ev.OperationType))
		return
	}

	n := l.publisher.Broadcast(rec.AnalysisID, rec.Snapshot())
	l.logger.Debug("status change broadcast",
		slog.String("operation", ev.OperationType),
		logger.Topic(rec.AnalysisID),
		logger.Status(string(rec.Status)),
		slog.Int("recipients", n))

	switch rec.Status {
	case status.Completed:
		l.logger.Info("analysis completed", logger.Topic(rec.AnalysisID))
	case status.Error:
		l.logger.Info("analysis failed", logger.Topic(rec.AnalysisID), slog.String("reason", rec.Error))
	case status.Cancelled:
		l.logger.Info("analysis cancelled", logger.Topic(rec.AnalysisID))
	}
}
