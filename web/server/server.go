package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server runs the bridge's http.Server until its context ends, then
// drains requests and runs the shutdown steps.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	steps           []step

	ready chan struct{}
	addr  net.Addr
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// New creates a Server for handler. The write timeout is long enough to
// stream finished downloads back to the WebView.
func New(handler http.Handler, opts ...Option) *Server {
	s := &Server{
		srv: &http.Server{
			Addr:              "127.0.0.1:8080",
			Handler:           handler,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		shutdownTimeout: 20 * time.Second,
		logger:          slog.Default(),
		ready:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.srv.ErrorLog = slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn)

	return s
}

// Run starts the server and blocks until ctx is done or the server fails.
// A done ctx triggers a graceful shutdown bounded by the shutdown timeout;
// callers usually derive ctx from [os/signal.NotifyContext].
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.addr = ln.Addr()
	close(s.ready)

	serverErrs := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", "addr", s.addr.String())
		serverErrs <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serverErrs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve bridge: %w", err)
		}

		return nil

	case <-ctx.Done():
		s.logger.Info("bridge shutting down", "timeout", s.shutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}

		s.logger.Info("bridge stopped")

		return nil
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr reports the bound address. It is nil until Ready is closed, and is
// the place to learn the port when listening on ":0".
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.addr
	default:
		return nil
	}
}

// Shutdown drains in-flight requests, then runs every shutdown step in
// order. Steps run even when the drain fails, since they release what
// the handlers were using.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.srv.Shutdown(ctx); err != nil {
		s.srv.Close()
		errs = append(errs, fmt.Errorf("drain bridge requests: %w", err))
	}

	for _, st := range s.steps {
		if err := st.fn(ctx); err != nil {
			s.logger.Error("shutdown step failed", "step", st.name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown %s: %w", st.name, err))
			continue
		}
		s.logger.Debug("shutdown step done", "step", st.name)
	}

	return errors.Join(errs...)
}
