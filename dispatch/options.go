package dispatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/adamwoolhether/webshell/launch"
	"github.com/adamwoolhether/webshell/metrics"
)

// Option configures a [Dispatcher].
type Option func(*options) error

type options struct {
	downloadsDir string
	logger       *slog.Logger
	metrics      *metrics.Metrics
	provider     ContentProvider
	viewers      ViewerResolver
	launcher     launch.Launcher
	grantTTL     time.Duration
}

// WithDownloadsDir sets the directory files are saved to.
func WithDownloadsDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return errors.New("downloads dir must not be empty")
		}
		o.downloadsDir = dir
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithMetrics records submissions, completions and the pending size.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithOpener enables the open-file offer after successful downloads.
// Without it, OpenFile does nothing.
func WithOpener(p ContentProvider, v ViewerResolver, l launch.Launcher) Option {
	return func(o *options) error {
		if p == nil || v == nil || l == nil {
			return errors.New("provider, viewers and launcher are all required")
		}
		o.provider, o.viewers, o.launcher = p, v, l
		return nil
	}
}

// WithGrantTTL sets how long an opened file stays readable. Default 10m.
func WithGrantTTL(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("grant ttl must be positive")
		}
		o.grantTTL = d
		return nil
	}
}
