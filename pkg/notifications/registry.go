package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/dmitrymomot/statuscast/pkg/logger"
)

// Factory builds a channel. It runs once per registry name, on first use.
type Factory func() (Channel, error)

// Registry resolves channel names case-insensitively to lazily built,
// cached channel instances.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Channel
	logger    *slog.Logger
	now       func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger for the Registry.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithRegistryClock overrides the clock used to stamp send results.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithChannel registers a factory under name.
func WithChannel(name string, f Factory) RegistryOption {
	return func(r *Registry) {
		r.factories[foldName(name)] = f
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Channel),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Register adds or replaces the factory for name and drops any cached
// instance built by the previous factory.
func (r *Registry) Register(name string, f Factory) {
	key := foldName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[key] = f
	delete(r.instances, key)
}

// Get returns the channel registered under name, building it on first use.
// A failed build is not cached.
func (r *Registry) Get(name string) (Channel, error) {
	key := foldName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.instances[key]; ok {
		return ch, nil
	}

	factory, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}

	ch, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s channel: %w", key, err)
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: %s", ErrChannelNil, key)
	}

	r.instances[key] = ch
	r.logger.Debug("channel created", logger.Channel(key))
	return ch, nil
}

// Resolve returns the channels for names in order. It fails on the first
// name that cannot be resolved.
func (r *Registry) Resolve(names []string) ([]Channel, error) {
	channels := make([]Channel, 0, len(names))
	for _, name := range names {
		ch, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// Available lists the registered channel names, sorted.
func (r *Registry) Available() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidationResult is the configuration state of one channel.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateConfigurations builds and validates every registered channel.
// One invalid channel does not affect the others.
func (r *Registry) ValidateConfigurations() map[string]ValidationResult {
	results := make(map[string]ValidationResult)
	for _, name := range r.Available() {
		ch, err := r.Get(name)
		if err == nil {
			err = ch.ValidateConfig()
		}
		if err != nil {
			results[name] = ValidationResult{Error: err.Error()}
			continue
		}
		results[name] = ValidationResult{Valid: true}
	}
	return results
}

// Reset drops every cached channel instance.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.instances)
}

// Result is the outcome of sending through one channel.
type Result struct {
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Receipt   *Receipt  `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SendMultiple sends msg through every named channel. Failures, unknown
// names included, are captured per channel and never stop the fan-out.
func (r *Registry) SendMultiple(ctx context.Context, names []string, msg Message) []Result {
	results := make([]Result, 0, len(names))
	for _, name := range names {
		ch, err := r.Get(name)
		if err != nil {
			results = append(results, Result{Channel: name, Error: err.Error(), Timestamp: r.now()})
			continue
		}
		res := send(ctx, ch, name, msg)
		res.Timestamp = r.now()
		results = append(results, res)
	}
	return results
}

func send(ctx context.Context, ch Channel, name string, msg Message) Result {
	receipt, err := ch.Send(ctx, msg)
	if err != nil {
		return Result{Channel: name, Error: err.Error()}
	}
	return Result{Channel: name, Success: true, Receipt: &receipt}
}

// IsConfigError reports whether err is a channel configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
