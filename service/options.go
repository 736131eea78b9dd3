package service

import (
	"log/slog"

	"github.com/vecdb/vecdb/walpkg"
)

type options struct {
	logger            *Logger
	metricsCollector  MetricsCollector
	walFsyncMode      walpkg.FsyncMode
	walGroupCommitGap int // milliseconds, only meaningful with FsyncInterval
}

// Option configures a Service at construction time.
type Option func(*options)

// WithLogger sets the structured logger used for every operation. The
// default is NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLogLevel is a convenience wrapper that builds a text logger at the
// given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.logger = NewTextLogger(level) }
}

// WithMetricsCollector sets the MetricsCollector. The default is
// NoopMetricsCollector.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) { o.metricsCollector = m }
}

// WithWALFsyncPerOp fsyncs the WAL after every mutation (the default).
func WithWALFsyncPerOp() Option {
	return func(o *options) { o.walFsyncMode = walpkg.FsyncPerOp }
}

// WithWALFsyncInterval batches fsyncs on the given millisecond interval.
func WithWALFsyncInterval(intervalMillis int) Option {
	return func(o *options) {
		o.walFsyncMode = walpkg.FsyncInterval
		o.walGroupCommitGap = intervalMillis
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		walFsyncMode:     walpkg.FsyncPerOp,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
