package dlmanager

import (
	"errors"
	"log/slog"

	"github.com/adamwoolhether/webshell/metrics"
)

// Option configures a [Manager].
type Option func(*options) error

type options struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	maxConcurrent int
	buffer        int
	logProgress   bool
}

// WithLogger sets the logger for job lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithMetrics records transfer counts and bytes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithMaxConcurrent limits simultaneous transfers. Zero means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max concurrent must not be negative")
		}
		o.maxConcurrent = n
		return nil
	}
}

// WithCompletionBuffer sizes the completion channel. Completions block the
// finishing transfer once the buffer is full and nobody is receiving.
func WithCompletionBuffer(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("completion buffer must not be negative")
		}
		o.buffer = n
		return nil
	}
}

// WithProgressLogging logs transfer progress about once a second per job.
func WithProgressLogging() Option {
	return func(o *options) error {
		o.logProgress = true
		return nil
	}
}
