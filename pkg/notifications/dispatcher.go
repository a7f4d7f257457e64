package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/queue"
)

// ReportStatusSuccess is the status of every report. Per-channel failures
// are in the results, not in the status.
const ReportStatusSuccess = "success"

// Report is the result of a notification job.
type Report struct {
	Status             string    `json:"status"`
	ProcessedAt        time.Time `json:"processedAt"`
	Results            []Result  `json:"results"`
	SuccessfulChannels int       `json:"successfulChannels"`
	FailedChannels     int       `json:"failedChannels"`
}

// Dispatcher fans a notification request out to its channels.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger for the Dispatcher.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithDispatcherClock overrides the report clock.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrRegistryNil
	}
	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Handler returns the queue handler for JobName jobs.
func (d *Dispatcher) Handler() queue.Handler {
	return queue.NewJobHandler(JobName, d.Dispatch)
}

// Dispatch resolves every channel, then sends through each of them in order.
// An invalid request or an unknown channel fails before anything is sent.
// Channel send errors are recorded in the report and do not fail the call.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Report, error) {
	if err := req.Validate(); err != nil {
		return Report{}, err
	}

	channels, err := d.registry.Resolve(req.Channels)
	if err != nil {
		return Report{}, err
	}

	msg := Message{
		Recipient: req.Recipient,
		Subject:   req.Options.Subject,
		Body:      req.Message,
		Options:   req.Options,
	}
	if msg.Subject == "" {
		msg.Subject = DefaultSubject
	}

	attrs := []slog.Attr{logger.Recipient(req.Recipient)}
	if info, ok := queue.JobInfoFromContext(ctx); ok {
		msg.JobID = info.ID.String()
		attrs = append(attrs, logger.JobID(info.ID), logger.Attempt(info.Attempt))
	}

	report := Report{
		Status:  ReportStatusSuccess,
		Results: make([]Result, 0, len(channels)),
	}
	for i, ch := range channels {
		res := send(ctx, ch, req.Channels[i], msg)
		if res.Success {
			report.SuccessfulChannels++
		} else {
			report.FailedChannels++
			d.logger.LogAttrs(ctx, slog.LevelWarn, "channel delivery failed",
				append(attrs, logger.Channel(res.Channel), slog.String("error", res.Error))...)
		}
		report.Results = append(report.Results, res)
	}
	report.ProcessedAt = d.now()

	d.logger.LogAttrs(ctx, slog.LevelInfo, "notification dispatched",
		append(attrs,
			slog.Int("successful_channels", report.SuccessfulChannels),
			slog.Int("failed_channels", report.FailedChannels))...)

	return report, nil
}
