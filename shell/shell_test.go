package shell

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adamwoolhether/webshell/config"
	"github.com/adamwoolhether/webshell/dlmanager"
)

func TestBridgeURL(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:8080": "http://127.0.0.1:8080",
		":8080":          "http://127.0.0.1:8080",
		"0.0.0.0:9000":   "http://127.0.0.1:9000",
		"[::1]:8080":     "http://[::1]:8080",
	}

	for addr, want := range tests {
		if got := bridgeURL(addr); got != want {
			t.Errorf("bridgeURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func testConfig(t *testing.T, addr string) config.Config {
	t.Helper()

	return config.Config{
		Server: config.ServerConfig{
			Addr:            addr,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			CORSOrigins:     []string{"*"},
		},
		Downloads: config.DownloadsConfig{Dir: t.TempDir(), MaxConcurrent: 1, MaxRedirects: 5},
		Provider:  config.ProviderConfig{Authority: "com.mealhub.app.fileprovider", GrantTTL: time.Minute, Viewers: []string{"*/*"}, OpenViaBridge: true},
		Notify:    config.NotifyConfig{FeedSize: 4},
	}
}

func TestShell_RunAndShutdown(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:0")

	s, err := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not stop")
	}
}

func TestShell_RunListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := testConfig(t, ln.Addr().String())

	s, err := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(t.Context()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run = nil, want listen error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a failed listen")
	}

	_, err = s.downloads.Enqueue(dlmanager.Request{URL: "https://mealhub.example/menu.pdf", Destination: filepath.Join(t.TempDir(), "menu.pdf")})
	if !errors.Is(err, dlmanager.ErrShutdown) {
		t.Errorf("Enqueue after failed Run: exp err %v; got: %v", dlmanager.ErrShutdown, err)
	}
}
