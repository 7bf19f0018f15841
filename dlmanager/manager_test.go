package dlmanager_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/webshell/client"
	"github.com/adamwoolhether/webshell/dlmanager"
)

const pdfBody = "%PDF-1.7 test document"

func pdfSHA256() string {
	sum := sha256.Sum256([]byte(pdfBody))
	return hex.EncodeToString(sum[:])
}

func newManager(t *testing.T, opts ...dlmanager.Option) *dlmanager.Manager {
	t.Helper()

	c, err := client.Build(client.WithMaxRedirects(3))
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	opts = append([]dlmanager.Option{dlmanager.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	m, err := dlmanager.New(c, opts...)
	if err != nil {
		t.Fatalf("building manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	return m
}

func fileServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, pdfBody)
		case "/private":
			if r.Header.Get("Cookie") != "session=abc" || r.Header.Get("User-Agent") != "shell-ua" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			fmt.Fprint(w, "secret")
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

func awaitCompletion(t *testing.T, m *dlmanager.Manager) dlmanager.ID {
	t.Helper()

	select {
	case id, ok := <-m.Completions():
		if !ok {
			t.Fatal("completions closed")
		}
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
	return 0
}

func TestManager_Outcomes(t *testing.T) {
	ts := fileServer(t)

	testCases := []struct {
		name       string
		path       string
		headers    map[string]string
		sha256     string
		wantStatus dlmanager.Status
		wantReason dlmanager.Reason
		wantBody   string
	}{
		{name: "success", path: "/doc.pdf", wantStatus: dlmanager.StatusSuccessful, wantBody: pdfBody},
		{
			name:       "headers forwarded",
			path:       "/private",
			headers:    map[string]string{"User-Agent": "shell-ua", "Cookie": "session=abc"},
			wantStatus: dlmanager.StatusSuccessful,
			wantBody:   "secret",
		},
		{name: "checksum match", path: "/doc.pdf", sha256: pdfSHA256(), wantStatus: dlmanager.StatusSuccessful, wantBody: pdfBody},
		{name: "checksum mismatch", path: "/doc.pdf", sha256: strings.Repeat("ab", 32), wantStatus: dlmanager.StatusFailed, wantReason: dlmanager.ReasonHTTPDataError},
		{name: "missing headers", path: "/private", wantStatus: dlmanager.StatusFailed, wantReason: 403},
		{name: "not found", path: "/nope", wantStatus: dlmanager.StatusFailed, wantReason: 404},
		{name: "redirect loop", path: "/loop", wantStatus: dlmanager.StatusFailed, wantReason: dlmanager.ReasonTooManyRedirects},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(t)
			dest := filepath.Join(t.TempDir(), "sub", "file.bin")

			id, err := m.Enqueue(dlmanager.Request{
				URL:         ts.URL + tc.path,
				Title:       "file.bin",
				Headers:     tc.headers,
				SHA256:      tc.sha256,
				Destination: dest,
			})
			if err != nil {
				t.Fatalf("exp nil err, got: %v", err)
			}

			if got := awaitCompletion(t, m); got != id {
				t.Fatalf("completion id = %d, want %d", got, id)
			}

			rec, err := m.Query(id)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Status != tc.wantStatus || rec.Reason != tc.wantReason {
				t.Fatalf("record = %s/%d, want %s/%d", rec.Status, rec.Reason, tc.wantStatus, tc.wantReason)
			}

			if tc.wantStatus != dlmanager.StatusSuccessful {
				if rec.LocalURI != "" {
					t.Errorf("failed record has local uri %q", rec.LocalURI)
				}
				return
			}

			u, err := url.Parse(rec.LocalURI)
			if err != nil || u.Scheme != "file" {
				t.Fatalf("local uri %q is not a file uri", rec.LocalURI)
			}
			got, err := os.ReadFile(filepath.FromSlash(u.Path))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.wantBody, string(got)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if rec.Bytes != int64(len(tc.wantBody)) {
				t.Errorf("bytes = %d, want %d", rec.Bytes, len(tc.wantBody))
			}
		})
	}
}

func TestManager_DeduplicatesExistingDestination(t *testing.T) {
	ts := fileServer(t)
	m := newManager(t)

	dir := t.TempDir()
	dest := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(dest, []byte("older"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "doc-1.pdf"), []byte("older"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := m.Enqueue(dlmanager.Request{URL: ts.URL + "/doc.pdf", Destination: dest})
	if err != nil {
		t.Fatal(err)
	}
	awaitCompletion(t, m)

	rec, err := m.Query(id)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(rec.LocalURI)
	if want := filepath.Join(dir, "doc-2.pdf"); filepath.FromSlash(u.Path) != want {
		t.Errorf("written to %q, want %q", u.Path, want)
	}

	if got, _ := os.ReadFile(dest); string(got) != "older" {
		t.Errorf("existing file overwritten: %q", got)
	}
}

func TestManager_DeduplicatesConcurrentJobs(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, r.URL.Path)
	}))
	t.Cleanup(ts.Close)

	m := newManager(t)
	dir := t.TempDir()
	dest := filepath.Join(dir, "menu.txt")

	for _, p := range []string{"/a", "/b"} {
		if _, err := m.Enqueue(dlmanager.Request{URL: ts.URL + p, Destination: dest}); err != nil {
			t.Fatal(err)
		}
	}
	close(release)

	awaitCompletion(t, m)
	awaitCompletion(t, m)

	for _, name := range []string{"menu.txt", "menu-1.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestManager_EnqueueValidation(t *testing.T) {
	m := newManager(t)
	dest := filepath.Join(t.TempDir(), "f")

	testCases := []struct {
		name string
		req  dlmanager.Request
	}{
		{name: "relative url", req: dlmanager.Request{URL: "/doc.pdf", Destination: dest}},
		{name: "ftp scheme", req: dlmanager.Request{URL: "ftp://host/doc.pdf", Destination: dest}},
		{name: "data url", req: dlmanager.Request{URL: "data:text/plain,hi", Destination: dest}},
		{name: "no host", req: dlmanager.Request{URL: "http:///doc.pdf", Destination: dest}},
		{name: "no destination", req: dlmanager.Request{URL: "http://host/doc.pdf"}},
		{name: "unparsable", req: dlmanager.Request{URL: "http://host/%zz", Destination: dest}},
		{name: "short sha256", req: dlmanager.Request{URL: "http://host/doc.pdf", Destination: dest, SHA256: "abcd"}},
		{name: "non-hex sha256", req: dlmanager.Request{URL: "http://host/doc.pdf", Destination: dest, SHA256: strings.Repeat("zz", 32)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Enqueue(tc.req); !errors.Is(err, dlmanager.ErrInvalidRequest) {
				t.Errorf("exp err %v; got: %v", dlmanager.ErrInvalidRequest, err)
			}
		})
	}
}

func TestManager_QueryUnknown(t *testing.T) {
	m := newManager(t)

	if _, err := m.Query(42); !errors.Is(err, dlmanager.ErrNotFound) {
		t.Errorf("exp err %v; got: %v", dlmanager.ErrNotFound, err)
	}
}

func TestManager_OneCompletionPerJob(t *testing.T) {
	ts := fileServer(t)
	m := newManager(t, dlmanager.WithMaxConcurrent(2))
	dir := t.TempDir()

	const jobs = 6
	want := make(map[dlmanager.ID]bool, jobs)
	var last dlmanager.ID
	for i := range jobs {
		path := "/doc.pdf"
		if i%2 == 1 {
			path = "/missing"
		}
		id, err := m.Enqueue(dlmanager.Request{URL: ts.URL + path, Destination: filepath.Join(dir, "doc.pdf")})
		if err != nil {
			t.Fatal(err)
		}
		if id <= last {
			t.Errorf("id %d not greater than previous %d", id, last)
		}
		last = id
		want[id] = true
	}

	got := make(map[dlmanager.ID]bool, jobs)
	for range jobs {
		id := awaitCompletion(t, m)
		if got[id] {
			t.Fatalf("duplicate completion for %d", id)
		}
		got[id] = true
	}

	if err := m.Shutdown(t.Context()); err != nil {
		t.Fatal(err)
	}
	if id, ok := <-m.Completions(); ok {
		t.Errorf("unexpected extra completion %d", id)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("completions mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Shutdown(t *testing.T) {
	m := newManager(t)

	if err := m.Shutdown(t.Context()); err != nil {
		t.Fatal(err)
	}
	if err := m.Shutdown(t.Context()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	_, err := m.Enqueue(dlmanager.Request{URL: "http://host/doc.pdf", Destination: filepath.Join(t.TempDir(), "doc.pdf")})
	if !errors.Is(err, dlmanager.ErrShutdown) {
		t.Errorf("exp err %v; got: %v", dlmanager.ErrShutdown, err)
	}
}

func TestManager_ShutdownFailsQueuedJobs(t *testing.T) {
	release := make(chan struct{})
	unblock := sync.OnceFunc(func() { close(release) })

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, pdfBody)
	}))
	defer ts.Close()
	defer unblock()

	m := newManager(t, dlmanager.WithMaxConcurrent(1))
	dir := t.TempDir()

	running, err := m.Enqueue(dlmanager.Request{URL: ts.URL + "/a.pdf", Destination: filepath.Join(dir, "a.pdf")})
	if err != nil {
		t.Fatal(err)
	}
	queued, err := m.Enqueue(dlmanager.Request{URL: ts.URL + "/b.pdf", Destination: filepath.Join(dir, "b.pdf")})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := m.Query(running)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status == dlmanager.StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %d still %s", running, rec.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	shutdown := make(chan error, 1)
	go func() { shutdown <- m.Shutdown(context.Background()) }()

	if id := awaitCompletion(t, m); id != queued {
		t.Fatalf("first completion = %d, want queued job %d", id, queued)
	}
	rec, err := m.Query(queued)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != dlmanager.StatusFailed || rec.Reason != dlmanager.ReasonUnknown {
		t.Errorf("queued record = %s/%d, want failed/%d", rec.Status, rec.Reason, dlmanager.ReasonUnknown)
	}

	unblock()
	if id := awaitCompletion(t, m); id != running {
		t.Fatalf("second completion = %d, want running job %d", id, running)
	}
	if err := <-shutdown; err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if rec, _ := m.Query(running); rec.Status != dlmanager.StatusSuccessful {
		t.Errorf("running record = %s, want successful", rec.Status)
	}
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []dlmanager.Status{dlmanager.StatusPending, dlmanager.StatusRunning, dlmanager.StatusSuccessful, dlmanager.StatusFailed} {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}

		var got dlmanager.Status
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Errorf("round trip of %s gave %s, %v", s, got, err)
		}
	}
}
