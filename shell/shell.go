// Package shell assembles the download facility, the dispatcher, the
// navigation router and the bridge server from a [config.Config].
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/adamwoolhether/webshell/api"
	"github.com/adamwoolhether/webshell/client"
	"github.com/adamwoolhether/webshell/config"
	"github.com/adamwoolhether/webshell/cookies"
	"github.com/adamwoolhether/webshell/deeplink"
	"github.com/adamwoolhether/webshell/dispatch"
	"github.com/adamwoolhether/webshell/dlmanager"
	"github.com/adamwoolhether/webshell/launch"
	"github.com/adamwoolhether/webshell/metrics"
	"github.com/adamwoolhether/webshell/notify"
	"github.com/adamwoolhether/webshell/provider"
	"github.com/adamwoolhether/webshell/web/server"
)

// Shell is a fully wired process.
type Shell struct {
	log             *slog.Logger
	server          *server.Server
	dispatcher      *dispatch.Dispatcher
	downloads       *dlmanager.Manager
	shutdownTimeout time.Duration
}

// Option configures a Shell.
type Option func(*options)

type options struct {
	launcher launch.Launcher
	registry *prometheus.Registry
}

// WithLauncher replaces the host launcher.
func WithLauncher(l launch.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithRegistry registers metrics with reg instead of a fresh registry with
// the Go and process collectors.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New wires every component from cfg.
func New(cfg *config.Config, log *slog.Logger, optFns ...Option) (*Shell, error) {
	var o options
	for _, opt := range optFns {
		opt(&o)
	}

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(reg)

	// =========================================================================
	// Download facility

	clientOpts := []client.Option{
		client.WithLogger(log),
		client.WithUserAgent(cfg.Downloads.UserAgent),
		client.WithTimeout(cfg.Downloads.Timeout),
		client.WithMaxRedirects(cfg.Downloads.MaxRedirects),
	}
	if cfg.Downloads.ThrottleRPS > 0 && cfg.Downloads.ThrottleBurst > 0 {
		clientOpts = append(clientOpts, client.WithThrottle(cfg.Downloads.ThrottleRPS, cfg.Downloads.ThrottleBurst))
	}

	c, err := client.Build(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	mgrOpts := []dlmanager.Option{dlmanager.WithLogger(log), dlmanager.WithMetrics(m)}
	if cfg.Downloads.MaxConcurrent > 0 {
		mgrOpts = append(mgrOpts, dlmanager.WithMaxConcurrent(cfg.Downloads.MaxConcurrent))
	}
	if cfg.Downloads.LogProgress {
		mgrOpts = append(mgrOpts, dlmanager.WithProgressLogging())
	}

	mgr, err := dlmanager.New(c, mgrOpts...)
	if err != nil {
		return nil, fmt.Errorf("building download manager: %w", err)
	}

	// =========================================================================
	// Shell services

	jar, err := cookies.New()
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}

	feed, err := notify.NewFeed(cfg.Notify.FeedSize)
	if err != nil {
		return nil, fmt.Errorf("building notification feed: %w", err)
	}
	notifier := notify.Multi{notify.NewLog(log), feed}

	prov, err := provider.New(cfg.Provider.Authority, map[string]string{"downloads": cfg.Downloads.Dir}, provider.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("building content provider: %w", err)
	}

	launcher := o.launcher
	if launcher == nil {
		launchOpts := []launch.Option{launch.WithLogger(log), launch.WithContentResolver(prov.FileForURI)}
		if cfg.Provider.OpenViaBridge {
			launchOpts = append(launchOpts, launch.WithContentBaseURL(bridgeURL(cfg.Server.Addr)))
		}
		launcher = launch.NewExec(launchOpts...)
	}

	d, err := dispatch.New(mgr, jar, notifier,
		dispatch.WithDownloadsDir(cfg.Downloads.Dir),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(m),
		dispatch.WithOpener(prov, provider.ParseViewers(cfg.Provider.Viewers), launcher),
		dispatch.WithGrantTTL(cfg.Provider.GrantTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("building dispatcher: %w", err)
	}

	// =========================================================================
	// Bridge

	apiCfg := api.Config{
		Logger:         log,
		Metrics:        m,
		Gatherer:       reg,
		Dispatcher:     d,
		Downloads:      mgr,
		Navigator:      deeplink.NewRouter(launcher, notifier, m, log),
		Cookies:        jar,
		Feed:           feed,
		Content:        prov,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedOrigins: cfg.Server.TrustedOrigins,
	}
	if cfg.Server.StaticDir != "" {
		apiCfg.StaticFS = os.DirFS(cfg.Server.StaticDir)
	}

	app, err := api.New(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("building api: %w", err)
	}

	srv := server.New(app,
		server.WithAddr(cfg.Server.Addr),
		server.WithReadTimeout(cfg.Server.ReadTimeout),
		server.WithWriteTimeout(cfg.Server.WriteTimeout),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithLogger(log),
		server.WithShutdownStep("downloads", mgr.Shutdown),
	)

	return &Shell{
		log:             log,
		server:          srv,
		dispatcher:      d,
		downloads:       mgr,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}

// Run serves until ctx is done, then shuts down the bridge and the download
// manager in that order. The manager is also shut down when the bridge
// fails to start or stops serving on its own.
func (s *Shell) Run(ctx context.Context) error {
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()

	dispatchErrs := make(chan error, 1)
	go func() {
		dispatchErrs <- s.dispatcher.Run(dispatchCtx)
	}()

	err := s.server.Run(ctx)
	if err != nil {
		s.log.Error("bridge stopped with error", "error", err)
	}

	// No-op when the server's shutdown step already ran.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if serr := s.downloads.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, fmt.Errorf("shutdown downloads: %w", serr))
	}

	// A clean manager shutdown closes its completions, which ends the
	// dispatcher. Otherwise nothing will, so stop it here.
	if err != nil {
		stopDispatch()
	}
	if derr := <-dispatchErrs; derr != nil && !errors.Is(derr, context.Canceled) {
		err = errors.Join(err, fmt.Errorf("dispatcher: %w", derr))
	}

	return err
}

// Ready is closed once the bridge is listening.
func (s *Shell) Ready() <-chan struct{} {
	return s.server.Ready()
}

// Addr is the bridge's bound address, or nil before Ready.
func (s *Shell) Addr() net.Addr {
	return s.server.Addr()
}

func bridgeURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, port)
}
