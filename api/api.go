// Package api exposes the shell's bridge to the WebView over HTTP: download
// submission and status, navigation routing, cookie hand-off, the
// notification feed and granted content.
package api

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/webshell/deeplink"
	"github.com/adamwoolhether/webshell/dispatch"
	"github.com/adamwoolhether/webshell/dlmanager"
	"github.com/adamwoolhether/webshell/metrics"
	"github.com/adamwoolhether/webshell/notify"
	"github.com/adamwoolhether/webshell/provider"
	"github.com/adamwoolhether/webshell/web"
	"github.com/adamwoolhether/webshell/web/middleware"
	"github.com/adamwoolhether/webshell/web/mux"
)

// Submitter accepts download descriptors.
type Submitter interface {
	Submit(ctx context.Context, desc dispatch.Descriptor) (dlmanager.ID, error)
	Pending() []dlmanager.ID
}

// Querier looks up download records.
type Querier interface {
	Query(id dlmanager.ID) (dlmanager.Record, error)
}

// Navigator routes navigations.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) deeplink.Decision
}

// CookieSetter stores cookies handed over by the web view.
type CookieSetter interface {
	Set(rawURL string, setCookies ...string) error
}

// FeedReader reads the notification feed.
type FeedReader interface {
	Since(seq int64) []notify.Notification
}

// ContentOpener resolves grant tokens to files.
type ContentOpener interface {
	Open(token string) (provider.Grant, error)
	Type(uri string) string
}

// Config holds the dependencies of the bridge handlers.
type Config struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Dispatcher Submitter
	Downloads  Querier
	Navigator  Navigator
	Cookies    CookieSetter
	Feed       FeedReader
	Content    ContentOpener

	// Tracer defaults to the global provider's "webshell/bridge" tracer.
	Tracer trace.Tracer

	CORSOrigins    []string
	TrustedOrigins []string
	StaticFS       fs.FS
}

var errMissingDependency = errors.New("api: missing dependency")

// New builds the bridge handler.
func New(cfg Config) (*mux.App, error) {
	if cfg.Dispatcher == nil || cfg.Downloads == nil || cfg.Navigator == nil ||
		cfg.Cookies == nil || cfg.Feed == nil || cfg.Content == nil {
		return nil, errMissingDependency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("webshell/bridge")
	}

	mw := []mux.Middleware{
		middleware.Logger(cfg.Logger),
		middleware.Errors(cfg.Logger),
		middleware.Panics(),
		middleware.CORS(cfg.CORSOrigins),
		middleware.CSRF(cfg.Logger, cfg.TrustedOrigins...),
	}
	if cfg.Metrics != nil {
		mw = append(mw, middleware.Metrics(cfg.Metrics))
	}

	opts := []mux.Option{
		mux.WithLogger(cfg.Logger),
		mux.WithTracer(cfg.Tracer),
		mux.WithMiddleware(mw...),
	}
	if cfg.StaticFS != nil {
		opts = append(opts, mux.WithStaticFS(cfg.StaticFS, "/"))
	}

	app := mux.New(opts...)

	h := handlers{cfg: cfg}

	v1 := app.Mount("v1")
	v1.Post("/downloads", h.submitDownload)
	v1.Get("/downloads", h.pendingDownloads)
	v1.Get("/downloads/{id}", h.queryDownload)
	v1.Post("/navigations", h.navigate)
	v1.Post("/cookies", h.setCookies)
	v1.Get("/notifications", h.notifications)

	app.Get("/content/{token}", h.content)
	app.Get("/health", h.health)

	if cfg.Gatherer != nil {
		app.HandleRaw(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return app, nil
}

type handlers struct {
	cfg Config
}

func (h handlers) health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.RespondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
