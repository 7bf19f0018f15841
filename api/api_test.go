package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/webshell/api"
	"github.com/adamwoolhether/webshell/client"
	"github.com/adamwoolhether/webshell/cookies"
	"github.com/adamwoolhether/webshell/deeplink"
	"github.com/adamwoolhether/webshell/dispatch"
	"github.com/adamwoolhether/webshell/dlmanager"
	"github.com/adamwoolhether/webshell/launch"
	"github.com/adamwoolhether/webshell/metrics"
	"github.com/adamwoolhether/webshell/notify"
	"github.com/adamwoolhether/webshell/provider"
)

const pdfBody = "%PDF-1.7 weekly menu"

type fakeLauncher struct {
	mu      sync.Mutex
	intents []launch.Intent
	fail    map[launch.Action]bool
}

func (l *fakeLauncher) Launch(_ context.Context, in launch.Intent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.intents = append(l.intents, in)
	if l.fail[in.Action] {
		return launch.ErrNoHandler
	}
	return nil
}

func (l *fakeLauncher) last() (launch.Intent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.intents) == 0 {
		return launch.Intent{}, false
	}
	return l.intents[len(l.intents)-1], true
}

// spanRecorder notes the name of every span started through it.
type spanRecorder struct {
	noop.Tracer

	mu    sync.Mutex
	names []string
}

func (r *spanRecorder) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()

	return r.Tracer.Start(ctx, name, opts...)
}

func (r *spanRecorder) spans() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.names)
}

type shell struct {
	api      *httptest.Server
	origin   *httptest.Server
	launcher *fakeLauncher
	tracer   *spanRecorder
}

func newShell(t *testing.T) *shell {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/menu":
			if r.Header.Get("Cookie") != "session=abc" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, pdfBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(origin.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	c, err := client.Build(client.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}

	mgr, err := dlmanager.New(c, dlmanager.WithLogger(log), dlmanager.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}

	jar, err := cookies.New()
	if err != nil {
		t.Fatal(err)
	}

	feed, err := notify.NewFeed(32)
	if err != nil {
		t.Fatal(err)
	}

	prov, err := provider.New("com.mealhub.app.fileprovider", map[string]string{"downloads": dir}, provider.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}

	launcher := &fakeLauncher{fail: map[launch.Action]bool{launch.ActionView: false, launch.ActionSendTo: true}}

	d, err := dispatch.New(mgr, jar, feed,
		dispatch.WithDownloadsDir(dir),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(m),
		dispatch.WithOpener(prov, provider.ParseViewers([]string{"pdf=application/pdf"}), launcher),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	tracer := &spanRecorder{}

	app, err := api.New(api.Config{
		Logger:      log,
		Metrics:     m,
		Gatherer:    reg,
		Dispatcher:  d,
		Downloads:   mgr,
		Navigator:   deeplink.NewRouter(launcher, feed, m, log),
		Cookies:     jar,
		Feed:        feed,
		Content:     prov,
		CORSOrigins: []string{"*"},
		Tracer:      tracer,
	})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(app)
	t.Cleanup(func() {
		srv.Close()
		mgr.Shutdown(context.Background())
		cancel()
		<-done
	})

	return &shell{api: srv, origin: origin, launcher: launcher, tracer: tracer}
}

func (s *shell) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, s.api.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}

	return resp.StatusCode
}

type feedResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Last          int64                 `json:"last"`
}

func (s *shell) waitForText(t *testing.T, text string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var feed feedResponse
		s.do(t, http.MethodGet, "/v1/notifications", nil, &feed)
		for _, n := range feed.Notifications {
			if n.Text == text {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("notification %q never arrived", text)
}

func (s *shell) waitForLaunch(t *testing.T) launch.Intent {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if in, ok := s.launcher.last(); ok {
			return in
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("no intent launched")
	return launch.Intent{}
}

func TestDownloadFlow(t *testing.T) {
	s := newShell(t)

	status := s.do(t, http.MethodPost, "/v1/cookies", map[string]any{
		"url":     s.origin.URL + "/",
		"cookies": []string{"session=abc; Path=/"},
	}, nil)
	if status != http.StatusNoContent {
		t.Fatalf("set cookies status = %d", status)
	}

	var submitted struct {
		ID       dlmanager.ID `json:"id"`
		FileName string       `json:"fileName"`
	}
	status = s.do(t, http.MethodPost, "/v1/downloads", dispatch.Descriptor{
		URL:                s.origin.URL + "/files/menu",
		UserAgent:          "MealHub/3.2 (Android)",
		ContentDisposition: `attachment; filename="weekly menu.pdf"`,
		MimeType:           "application/pdf",
	}, &submitted)
	if status != http.StatusAccepted {
		t.Fatalf("submit status = %d", status)
	}
	if submitted.FileName != "weekly menu.pdf" {
		t.Errorf("fileName = %q", submitted.FileName)
	}

	s.waitForText(t, "✓ Download complete: weekly menu.pdf")

	var rec dlmanager.Record
	if status := s.do(t, http.MethodGet, fmt.Sprintf("/v1/downloads/%d", submitted.ID), nil, &rec); status != http.StatusOK {
		t.Fatalf("query status = %d", status)
	}
	if rec.Status != dlmanager.StatusSuccessful || rec.Bytes != int64(len(pdfBody)) {
		t.Errorf("record = %+v", rec)
	}

	var pending struct {
		Pending []dlmanager.ID `json:"pending"`
	}
	s.do(t, http.MethodGet, "/v1/downloads", nil, &pending)
	if len(pending.Pending) != 0 {
		t.Errorf("pending = %v, want empty", pending.Pending)
	}

	in := s.waitForLaunch(t)
	if in.Action != launch.ActionView || in.Type != "application/pdf" || in.GrantToken == "" {
		t.Fatalf("viewer launch = %+v", in)
	}

	resp, err := http.Get(s.api.URL + "/content/" + in.GrantToken)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || string(body) != pdfBody {
		t.Fatalf("content = %d %q", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(got, "inline") {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestDownloadFailure(t *testing.T) {
	s := newShell(t)

	var submitted struct {
		ID dlmanager.ID `json:"id"`
	}
	status := s.do(t, http.MethodPost, "/v1/downloads", dispatch.Descriptor{
		URL: s.origin.URL + "/files/menu",
	}, &submitted)
	if status != http.StatusAccepted {
		t.Fatalf("submit status = %d", status)
	}

	s.waitForText(t, "✗ Download failed: menu (Error: 403)")

	var rec dlmanager.Record
	s.do(t, http.MethodGet, fmt.Sprintf("/v1/downloads/%d", submitted.ID), nil, &rec)
	if rec.Status != dlmanager.StatusFailed || rec.Reason != 403 {
		t.Errorf("record = %+v", rec)
	}
}

func TestSubmitDownload_Rejected(t *testing.T) {
	s := newShell(t)

	testCases := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{name: "missing url", body: map[string]string{"mimeType": "text/plain"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown field", body: map[string]string{"url": "https://mealhub.example/a", "size": "1"}, wantStatus: http.StatusBadRequest},
		{name: "not http", body: map[string]string{"url": "ftp://mealhub.example/a.txt"}, wantStatus: http.StatusBadRequest},
		{name: "bad digest", body: map[string]string{"url": "https://mealhub.example/a", "sha256": "xyz"}, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.do(t, http.MethodPost, "/v1/downloads", tc.body, nil); got != tc.wantStatus {
				t.Errorf("status = %d, want %d", got, tc.wantStatus)
			}
		})
	}

	s.waitForText(t, `Download failed: invalid download request: url "ftp://mealhub.example/a.txt" must be absolute http(s)`)
}

func TestQueryDownload_Errors(t *testing.T) {
	s := newShell(t)

	if got := s.do(t, http.MethodGet, "/v1/downloads/999", nil, nil); got != http.StatusNotFound {
		t.Errorf("unknown id status = %d", got)
	}
	if got := s.do(t, http.MethodGet, "/v1/downloads/abc", nil, nil); got != http.StatusBadRequest {
		t.Errorf("bad id status = %d", got)
	}
}

func TestNavigate(t *testing.T) {
	s := newShell(t)

	testCases := []struct {
		name string
		url  string
		want deeplink.Decision
	}{
		{name: "web page", url: "https://mealhub.example/menu", want: deeplink.Decision{}},
		{name: "payment", url: "upi://pay?pa=shop@bank", want: deeplink.Decision{Handled: true, Action: launch.ActionView}},
		{name: "call", url: "tel:+911234567890", want: deeplink.Decision{Handled: true, Action: launch.ActionDial}},
		{name: "email without app", url: "mailto:orders@mealhub.example", want: deeplink.Decision{Handled: true, Action: launch.ActionSendTo}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got deeplink.Decision
			if status := s.do(t, http.MethodPost, "/v1/navigations", map[string]string{"url": tc.url}, &got); status != http.StatusOK {
				t.Fatalf("status = %d", status)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
		})
	}

	s.waitForText(t, "No email app found")
}

func TestCookies_Rejected(t *testing.T) {
	s := newShell(t)

	testCases := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{name: "no cookies", body: map[string]any{"url": "https://mealhub.example"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "not http", body: map[string]any{"url": "ftp://mealhub.example", "cookies": []string{"a=b"}}, wantStatus: http.StatusBadRequest},
		{name: "malformed cookie", body: map[string]any{"url": "https://mealhub.example", "cookies": []string{"=nope"}}, wantStatus: http.StatusUnprocessableEntity},
		{name: "malformed cookie skipped", body: map[string]any{"url": "https://mealhub.example", "cookies": []string{"=nope", "ok=1"}}, wantStatus: http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.do(t, http.MethodPost, "/v1/cookies", tc.body, nil); got != tc.wantStatus {
				t.Errorf("status = %d, want %d", got, tc.wantStatus)
			}
		})
	}
}

func TestNotifications_Since(t *testing.T) {
	s := newShell(t)

	s.do(t, http.MethodPost, "/v1/navigations", map[string]string{"url": "mailto:a@mealhub.example"}, nil)
	s.do(t, http.MethodPost, "/v1/navigations", map[string]string{"url": "mailto:b@mealhub.example"}, nil)

	var all feedResponse
	s.do(t, http.MethodGet, "/v1/notifications", nil, &all)
	if len(all.Notifications) != 2 || all.Last != 2 {
		t.Fatalf("feed = %+v", all)
	}

	var rest feedResponse
	s.do(t, http.MethodGet, "/v1/notifications?since=1", nil, &rest)
	if len(rest.Notifications) != 1 || rest.Notifications[0].Seq != 2 {
		t.Errorf("since=1 feed = %+v", rest)
	}

	if got := s.do(t, http.MethodGet, "/v1/notifications?since=x", nil, nil); got != http.StatusBadRequest {
		t.Errorf("bad since status = %d", got)
	}
}

func TestContent_UnknownToken(t *testing.T) {
	s := newShell(t)

	if got := s.do(t, http.MethodGet, "/content/not-a-token", nil, nil); got != http.StatusNotFound {
		t.Errorf("status = %d, want 404", got)
	}
}

func TestTracing(t *testing.T) {
	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		want   []string
	}{
		{
			name:   "submit",
			method: http.MethodPost,
			path:   "/v1/downloads",
			body:   dispatch.Descriptor{URL: "https://mealhub.example/files/menu.pdf", MimeType: "application/pdf"},
			want:   []string{"POST /v1/downloads", "dispatch.submit", "downloads.query"},
		},
		{
			name:   "content",
			method: http.MethodGet,
			path:   "/content/nope",
			want:   []string{"GET /content/{token}", "content.open"},
		},
		{
			name:   "health",
			method: http.MethodGet,
			path:   "/health",
			want:   []string{"GET /health"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newShell(t)

			s.do(t, tc.method, tc.path, tc.body, nil)

			if diff := cmp.Diff(tc.want, s.tracer.spans()); diff != "" {
				t.Errorf("spans mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newShell(t)

	var health map[string]string
	if got := s.do(t, http.MethodGet, "/health", nil, &health); got != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("health = %d %v", got, health)
	}

	resp, err := http.Get(s.api.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), `webshell_http_requests_total{code="200",method="GET",route="GET /health"} 1`) {
		t.Errorf("metrics output missing health request:\n%s", body)
	}
}

func TestNew_MissingDependency(t *testing.T) {
	if _, err := api.New(api.Config{}); err == nil {
		t.Fatal("expected an error")
	}
}
