package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/statuscast/pkg/logger"
)

// Group runs named long-lived tasks under a shared context. Panics are
// recovered and reported as task errors. Stop cancels the context and waits
// for every task to return.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger      *slog.Logger
	limit       int
	cancelOnErr bool

	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
	running  map[string]int
	errs     []error
	started  atomic.Uint64
	panicked atomic.Uint64
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupLogger sets the logger for the Group.
func WithGroupLogger(l *slog.Logger) GroupOption {
	return func(g *Group) {
		g.logger = l
	}
}

// WithLimit caps the number of tasks running at once. Go fails with
// ErrGroupFull beyond it. Zero means no cap.
func WithLimit(n int) GroupOption {
	return func(g *Group) {
		g.limit = n
	}
}

// WithCancelOnError cancels the group context when any task fails.
func WithCancelOnError() GroupOption {
	return func(g *Group) {
		g.cancelOnErr = true
	}
}

func NewGroup(parent context.Context, opts ...GroupOption) *Group {
	ctx, cancel := context.WithCancel(parent)
	g := &Group{
		ctx:     ctx,
		cancel:  cancel,
		logger:  slog.Default(),
		running: make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Context is cancelled by Stop, by the parent, or by the first failure when
// WithCancelOnError is set.
func (g *Group) Context() context.Context { return g.ctx }

// Go starts fn as task name.
func (g *Group) Go(name string, fn func(ctx context.Context) error) error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return ErrGroupClosed
	}
	if g.limit > 0 && g.activeLocked() >= g.limit {
		g.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrGroupFull, g.limit)
	}
	g.running[name]++
	g.wg.Add(1)
	g.mu.Unlock()

	g.started.Add(1)
	go g.run(name, fn)
	return nil
}

func (g *Group) run(name string, fn func(ctx context.Context) error) {
	defer g.wg.Done()
	defer g.finish(name)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				g.panicked.Add(1)
				err = fmt.Errorf("%w: %s: %v", ErrPanic, name, r)
				g.logger.Error("task panicked",
					slog.String("task", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()
		g.logger.Debug("task started", slog.String("task", name))
		return fn(g.ctx)
	}()

	if err == nil || errors.Is(err, context.Canceled) {
		g.logger.Debug("task stopped", slog.String("task", name))
		return
	}

	g.logger.Error("task failed", slog.String("task", name), logger.Error(err))
	g.mu.Lock()
	g.errs = append(g.errs, fmt.Errorf("%s: %w", name, err))
	g.mu.Unlock()
	if g.cancelOnErr {
		g.cancel()
	}
}

func (g *Group) finish(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[name]--; g.running[name] <= 0 {
		delete(g.running, name)
	}
}

func (g *Group) activeLocked() int {
	n := 0
	for _, c := range g.running {
		n += c
	}
	return n
}

// Err joins the errors of every failed task.
func (g *Group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}

// GroupStats is a point-in-time view of a Group.
type GroupStats struct {
	Active  int            `json:"active"`
	Started uint64         `json:"started"`
	Panics  uint64         `json:"panics"`
	Failed  int            `json:"failed"`
	Tasks   map[string]int `json:"tasks"`
}

func (g *Group) Stats() GroupStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	tasks := make(map[string]int, len(g.running))
	for name, n := range g.running {
		tasks[name] = n
	}
	return GroupStats{
		Active:  g.activeLocked(),
		Started: g.started.Load(),
		Panics:  g.panicked.Load(),
		Failed:  len(g.errs),
		Tasks:   tasks,
	}
}

// Wait blocks until every task has returned or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return g.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new tasks, cancels the group context and waits for the
// running tasks.
func (g *Group) Stop(ctx context.Context) error {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()

	g.cancel()
	return g.Wait(ctx)
}
