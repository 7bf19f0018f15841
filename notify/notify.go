// Package notify delivers short user-facing messages, the shell's
// equivalent of toasts.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Kind classifies a notification for consumers that style or filter them.
type Kind string

const (
	KindDownloadStarted  Kind = "download.started"
	KindDownloadComplete Kind = "download.complete"
	KindDownloadFailed   Kind = "download.failed"
	KindNavigationFailed Kind = "navigation.failed"
)

// Duration mirrors the platform's short and long toast lengths.
type Duration string

const (
	Short Duration = "short"
	Long  Duration = "long"
)

// Notification is a single message.
type Notification struct {
	Seq      int64     `json:"seq"`
	Kind     Kind      `json:"kind"`
	Text     string    `json:"text"`
	Duration Duration  `json:"duration"`
	Time     time.Time `json:"time"`
}

// Notifier delivers notifications. Delivery never fails from the caller's
// point of view.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Log writes notifications to a slog.Logger.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log notifier. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Kind == KindDownloadFailed || n.Kind == KindNavigationFailed {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notification", "kind", n.Kind, "text", n.Text)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, nt := range m {
		nt.Notify(ctx, n)
	}
}

// Feed keeps the most recent notifications in memory so the page can poll
// them. Sequence numbers start at 1 and never repeat.
type Feed struct {
	mu    sync.Mutex
	size  int
	last  int64
	items []Notification
	now   func() time.Time
}

// NewFeed returns a Feed holding at most size entries.
func NewFeed(size int) (*Feed, error) {
	if size <= 0 {
		return nil, errors.New("feed size must be positive")
	}

	return &Feed{
		size:  size,
		items: make([]Notification, 0, size),
		now:   time.Now,
	}, nil
}

func (f *Feed) Notify(_ context.Context, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last++
	n.Seq = f.last
	if n.Time.IsZero() {
		n.Time = f.now().UTC()
	}
	if n.Duration == "" {
		n.Duration = Short
	}

	if len(f.items) == f.size {
		copy(f.items, f.items[1:])
		f.items = f.items[:f.size-1]
	}
	f.items = append(f.items, n)
}

// Since returns the retained notifications with Seq greater than seq, oldest
// first.
func (f *Feed) Since(seq int64) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if n.Seq > seq {
			out = append(out, n)
		}
	}

	return out
}
