package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/adamwoolhether/webshell/dlmanager"
	"github.com/adamwoolhether/webshell/filename"
	"github.com/adamwoolhether/webshell/launch"
	"github.com/adamwoolhether/webshell/metrics"
	"github.com/adamwoolhether/webshell/notify"
	"github.com/adamwoolhether/webshell/provider"
)

const defaultGrantTTL = 10 * time.Minute

// Dispatcher submits downloads and reacts to their completion.
type Dispatcher struct {
	facility Facility
	cookies  CookieStore
	notifier notify.Notifier

	dir      string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	provider ContentProvider
	viewers  ViewerResolver
	launcher launch.Launcher
	grantTTL time.Duration

	mu      sync.Mutex
	pending map[dlmanager.ID]struct{}
}

// New constructs a Dispatcher. WithDownloadsDir is required.
func New(f Facility, c CookieStore, n notify.Notifier, optFns ...Option) (*Dispatcher, error) {
	if f == nil || c == nil || n == nil {
		return nil, errors.New("facility, cookie store and notifier are all required")
	}

	opts := options{grantTTL: defaultGrantTTL}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying dispatch option: %w", err)
		}
	}
	if opts.downloadsDir == "" {
		return nil, errors.New("downloads dir is required")
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	return &Dispatcher{
		facility: f,
		cookies:  c,
		notifier: n,
		dir:      opts.downloadsDir,
		logger:   opts.logger,
		metrics:  opts.metrics,
		provider: opts.provider,
		viewers:  opts.viewers,
		launcher: opts.launcher,
		grantTTL: opts.grantTTL,
		pending:  make(map[dlmanager.ID]struct{}),
	}, nil
}

// Submit resolves a file name for desc and enqueues the download. A failed
// enqueue is notified and returned; it is not retried.
func (d *Dispatcher) Submit(ctx context.Context, desc Descriptor) (dlmanager.ID, error) {
	name := filename.Resolve(desc.URL, desc.ContentDisposition, desc.MimeType)

	headers := map[string]string{"User-Agent": desc.UserAgent}
	if cookie := d.cookies.Header(desc.URL); cookie != "" {
		headers["Cookie"] = cookie
	}

	req := dlmanager.Request{
		URL:                desc.URL,
		Title:              name,
		Description:        Description,
		MimeType:           desc.MimeType,
		Headers:            headers,
		SHA256:             desc.SHA256,
		Destination:        filepath.Join(d.dir, name),
		NotifyOnCompletion: true,
	}

	// Holding mu across Enqueue keeps Complete from seeing an ID before it
	// joins the pending set.
	d.mu.Lock()
	id, err := d.facility.Enqueue(req)
	if err == nil {
		d.pending[id] = struct{}{}
	}
	size := len(d.pending)
	d.mu.Unlock()

	d.metrics.SubmitResult(err)

	if err != nil {
		d.logger.Error("download submit", "url", desc.URL, "error", err)
		d.notify(ctx, notify.KindDownloadFailed, notify.Long, "Download failed: "+err.Error())
		return 0, fmt.Errorf("enqueueing download: %w", err)
	}

	d.metrics.SetPending(size)
	d.logger.Info("download submitted", "id", id, "file", name)
	d.notify(ctx, notify.KindDownloadStarted, notify.Short, "⬇ Downloading: "+name)

	return id, nil
}

// Complete handles a completion broadcast for id. IDs that are not pending
// are ignored, and an ID whose record has not reached a terminal status
// stays pending for a later broadcast.
func (d *Dispatcher) Complete(ctx context.Context, id dlmanager.ID) {
	if !d.awaiting(id) {
		return
	}

	rec, err := d.facility.Query(id)
	if err != nil {
		d.logger.Warn("querying completed download", "id", id, "error", err)
		d.claim(id)
		return
	}

	if !rec.Status.Terminal() {
		d.logger.Warn("completion for unfinished download", "id", id, "status", rec.Status)
		return
	}

	if !d.claim(id) {
		return
	}

	d.metrics.Complete(rec.Status.String())

	if rec.Status == dlmanager.StatusFailed {
		d.notify(ctx, notify.KindDownloadFailed, notify.Long,
			fmt.Sprintf("✗ Download failed: %s (Error: %d)", rec.Title, int(rec.Reason)))
		return
	}

	d.notify(ctx, notify.KindDownloadComplete, notify.Long, "✓ Download complete: "+rec.Title)
	if rec.LocalURI != "" {
		d.OpenFile(ctx, rec.LocalURI, rec.Title)
	}
}

// OpenFile offers the downloaded file at localURI to a viewer. It does
// nothing when no opener is configured, the file is gone, or no viewer
// accepts its type.
func (d *Dispatcher) OpenFile(ctx context.Context, localURI, title string) {
	if d.provider == nil {
		return
	}

	u, err := url.Parse(localURI)
	if err != nil || u.Path == "" || (u.Scheme != "" && u.Scheme != "file") {
		d.logger.Debug("open file: unusable local uri", "uri", localURI)
		return
	}

	path := filepath.FromSlash(u.Path)
	if _, err := os.Stat(path); err != nil {
		d.logger.Debug("open file: file missing", "path", path, "error", err)
		return
	}

	uri, err := d.provider.URIForFile(path)
	if err != nil {
		d.logger.Warn("open file: no content uri", "path", path, "error", err)
		return
	}

	mimeType := d.provider.Type(uri)
	if mimeType == "" {
		mimeType = provider.AnyType
	}

	viewer, ok := d.viewers.Resolve(mimeType)
	if !ok {
		d.logger.Debug("open file: no viewer", "type", mimeType)
		return
	}

	grant, err := d.provider.Grant(uri, d.grantTTL)
	if err != nil {
		d.logger.Warn("open file: grant", "uri", uri, "error", err)
		return
	}

	in := launch.Intent{
		Action:       launch.ActionView,
		Data:         uri,
		Type:         mimeType,
		ChooserTitle: "Open " + title,
		GrantRead:    true,
		GrantToken:   grant.Token,
	}
	if err := d.launcher.Launch(ctx, in); err != nil {
		d.logger.Warn("open file: launch", "viewer", viewer.Name, "error", err)
	}
}

// Run feeds the facility's completions to Complete until ctx ends or the
// facility closes its channel.
func (d *Dispatcher) Run(ctx context.Context) error {
	completions := d.facility.Completions()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-completions:
			if !ok {
				return nil
			}
			d.Complete(ctx, id)
		}
	}
}

// Pending returns the IDs still awaited, in ascending order.
func (d *Dispatcher) Pending() []dlmanager.ID {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]dlmanager.ID, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (d *Dispatcher) awaiting(id dlmanager.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.pending[id]
	return ok
}

// claim removes id from the pending set, reporting whether it was there.
func (d *Dispatcher) claim(id dlmanager.ID) bool {
	d.mu.Lock()
	_, ok := d.pending[id]
	delete(d.pending, id)
	size := len(d.pending)
	d.mu.Unlock()

	if ok {
		d.metrics.SetPending(size)
	}

	return ok
}

func (d *Dispatcher) notify(ctx context.Context, kind notify.Kind, dur notify.Duration, text string) {
	d.notifier.Notify(ctx, notify.Notification{Kind: kind, Text: text, Duration: dur})
}
