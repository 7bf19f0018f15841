package server

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. The default keeps the bridge on
// loopback at 127.0.0.1:8080; ":0" picks a free port, reported by Addr.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.srv.Addr = addr
		}
	}
}

// WithReadTimeout bounds reading a whole request. Zero keeps the 5s
// default.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.srv.ReadTimeout = d
		}
	}
}

// WithWriteTimeout bounds writing a response, which for /content
// includes streaming a finished download. Zero keeps the 60s default.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.srv.WriteTimeout = d
		}
	}
}

// WithShutdownTimeout bounds the drain Run performs once its context is
// done. Zero keeps the 20s default.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets the lifecycle logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithShutdownStep registers cleanup to run after the HTTP drain, such
// as closing the download queue. Steps run in registration order and
// name labels the step in logs and errors.
func WithShutdownStep(name string, fn func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.steps = append(s.steps, step{name: name, fn: fn})
	}
}
