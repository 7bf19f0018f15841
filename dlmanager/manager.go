package dlmanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adamwoolhether/webshell/client"
	"github.com/adamwoolhether/webshell/client/download"
	"github.com/adamwoolhether/webshell/metrics"
)

const defaultBuffer = 64

// Manager runs download jobs on a bounded queue.
type Manager struct {
	client      *client.Client
	queue       *download.Queue
	logger      *slog.Logger
	metrics     *metrics.Metrics
	logProgress bool

	// jobCtx outlives individual requests; it is cancelled only when
	// Shutdown gives up waiting.
	jobCtx    context.Context
	cancelJob context.CancelFunc

	completions chan ID
	settling    sync.WaitGroup

	mu       sync.Mutex
	lastID   ID
	records  map[ID]*Record
	jobs     map[ID]*download.Job
	reserved map[string]struct{}
}

// New constructs a Manager that transfers with c.
func New(c *client.Client, optFns ...Option) (*Manager, error) {
	if c == nil {
		return nil, errors.New("client must not be nil")
	}

	opts := options{buffer: defaultBuffer}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying manager option: %w", err)
		}
	}

	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		client:      c,
		queue:       download.NewQueue(opts.maxConcurrent),
		logger:      logger,
		metrics:     opts.metrics,
		logProgress: opts.logProgress,
		jobCtx:      ctx,
		cancelJob:   cancel,
		completions: make(chan ID, opts.buffer),
		records:     make(map[ID]*Record),
		jobs:        make(map[ID]*download.Job),
		reserved:    make(map[string]struct{}),
	}, nil
}

// Enqueue validates req and schedules it. The returned ID is valid for Query
// immediately.
func (m *Manager) Enqueue(req Request) (ID, error) {
	u, err := validate(req)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.IsShutdown() {
		return 0, ErrShutdown
	}

	dest, err := m.freePath(req.Destination)
	if err != nil {
		return 0, err
	}
	m.reserved[dest] = struct{}{}

	m.lastID++
	id := m.lastID
	m.records[id] = &Record{
		ID:                 id,
		URL:                req.URL,
		Title:              req.Title,
		Description:        req.Description,
		MimeType:           req.MimeType,
		Status:             StatusPending,
		NotifyOnCompletion: req.NotifyOnCompletion,
	}

	job := m.queue.Start(m.jobCtx, func(ctx context.Context) error {
		return m.transfer(ctx, id, u, dest, req)
	})
	m.jobs[id] = job
	m.settling.Go(func() { m.settle(id, dest, job) })

	m.logger.Info("download enqueued", "id", id, "url", req.URL, "dest", dest)

	return id, nil
}

// Query returns a copy of the job's record.
func (m *Manager) Query(id ID) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return *rec, nil
}

// Completions announces each job once it reaches a terminal status. The
// channel is closed by a successful Shutdown.
func (m *Manager) Completions() <-chan ID {
	return m.completions
}

// Shutdown stops accepting jobs and waits for running transfers. Jobs still
// waiting for a queue slot are cancelled and fail with ReasonUnknown; they
// are announced on Completions like any other failure. If ctx ends first,
// running transfers are cancelled and ctx's error is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.queue.IsShutdown() {
		m.mu.Unlock()
		return nil
	}
	m.queue.Shutdown()
	for id, job := range m.jobs {
		if m.records[id].Status == StatusPending {
			job.Cancel()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		// Transfer errors already live on the records.
		_ = m.queue.Wait()
		m.settling.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.cancelJob()
		<-done
		return fmt.Errorf("waiting for transfers: %w", ctx.Err())
	}

	m.cancelJob()
	close(m.completions)

	return nil
}

func (m *Manager) transfer(ctx context.Context, id ID, u *url.URL, dest string, req Request) error {
	m.update(id, func(r *Record) { r.Status = StatusRunning })
	m.metrics.TransferStarted()

	var written int64
	err := m.fetch(ctx, u, dest, req, func(n, _ int64) {
		written = n
		m.update(id, func(r *Record) { r.Bytes = n })
	})

	m.metrics.TransferDone(written)
	return err
}

// settle waits for job and records its outcome. A job that never left
// the queue fails the same way a broken transfer does.
func (m *Manager) settle(id ID, dest string, job *download.Job) {
	err := job.Err()

	m.mu.Lock()
	delete(m.jobs, id)
	if m.records[id].Status == StatusPending {
		m.logger.Warn("download never started", "id", id, "error", err)
	}
	m.mu.Unlock()

	m.finish(id, dest, err)
}

func (m *Manager) fetch(ctx context.Context, u *url.URL, dest string, job Request, progress download.ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	hdrs := make(map[string][]string, len(job.Headers))
	for k, v := range job.Headers {
		hdrs[k] = []string{v}
	}

	req, err := client.Request(ctx, u, http.MethodGet, client.WithHeaders(hdrs))
	if err != nil {
		return err
	}

	opts := []download.Option{download.WithProgressFunc(progress)}
	if m.logProgress {
		opts = append(opts, download.WithProgress())
	}
	if job.SHA256 != "" {
		opts = append(opts, download.WithChecksum(sha256.New(), job.SHA256))
	}

	return m.client.Download(req, http.StatusOK, dest, opts...)
}

func (m *Manager) finish(id ID, dest string, err error) {
	m.mu.Lock()
	delete(m.reserved, dest)
	rec := m.records[id]
	if err == nil {
		rec.Status = StatusSuccessful
		rec.LocalURI = (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String()
	} else {
		rec.Status = StatusFailed
		rec.Reason = ReasonFor(err)
	}
	status, reason := rec.Status, rec.Reason
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("download failed", "id", id, "reason", int(reason), "error", err)
	} else {
		m.logger.Info("download complete", "id", id, "dest", dest)
	}

	select {
	case m.completions <- id:
	case <-m.jobCtx.Done():
		m.logger.Warn("completion dropped", "id", id, "status", status)
	}
}

func (m *Manager) update(id ID, fn func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[id]; ok {
		fn(rec)
	}
}

// freePath returns dest, or the first "stem-N.ext" sibling that neither
// exists on disk nor belongs to another running job. Callers hold m.mu.
func (m *Manager) freePath(dest string) (string, error) {
	dir, base := filepath.Split(dest)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := dest
	for n := 1; ; n++ {
		taken, err := m.taken(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
}

func (m *Manager) taken(path string) (bool, error) {
	if _, ok := m.reserved[path]; ok {
		return true, nil
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking destination: %w", err)
	}
}

func validate(req Request) (*url.URL, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing url: %w", ErrInvalidRequest, err)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q must be absolute http(s)", ErrInvalidRequest, req.URL)
	}

	if req.SHA256 != "" {
		if b, err := hex.DecodeString(req.SHA256); err != nil || len(b) != sha256.Size {
			return nil, fmt.Errorf("%w: sha256 must be %d hex-encoded bytes", ErrInvalidRequest, sha256.Size)
		}
	}

	if req.Destination == "" || strings.HasSuffix(req.Destination, string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: destination must name a file", ErrInvalidRequest)
	}

	return u, nil
}
