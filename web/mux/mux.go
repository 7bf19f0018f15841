// Package mux routes bridge requests to error-returning handlers and
// threads per-request Values (trace ID, route, status) through the
// middleware stack.
package mux

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler is a http.Handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware defines a signature to chain Handler together.
type Middleware func(handler Handler) Handler

// App is a ServeMux with two middleware stacks: global middleware runs
// for every request before routing, route middleware runs only for
// matched routes.
type App struct {
	mux      *http.ServeMux
	globalMW []Middleware
	mw       []Middleware
	prefix   string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates an App. Without options it logs to slog.Default and
// traces with a no-op tracer.
func New(optFns ...Option) *App {
	opts := options{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("webshell/bridge"),
	}
	for _, opt := range optFns {
		opt(&opts)
	}

	app := &App{
		mux:      http.NewServeMux(),
		globalMW: opts.globalMW,
		mw:       opts.mw,
		logger:   opts.logger,
		tracer:   opts.tracer,
	}

	if opts.static != nil {
		app.mux.Handle("GET "+opts.staticPath, opts.static)
	}

	return app
}

// ServeHTTP runs the global middleware and then dispatches to the
// matching route. Global middleware sees unmatched requests too.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := wrap(a.globalMW, func(_ context.Context, w http.ResponseWriter, r *http.Request) error {
		a.mux.ServeHTTP(w, r)
		return nil
	})

	if err := route(r.Context(), w, r); err != nil {
		a.logger.Error("bridge request", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

// Mount returns an App whose routes live under prefix. It shares the
// ServeMux and both middleware stacks with a.
func (a *App) Mount(prefix string) *App {
	sub := *a
	sub.mw = slices.Clone(a.mw)
	sub.prefix = a.prefix + "/" + strings.Trim(prefix, "/")

	return &sub
}

// Get registers fn for GET requests at path.
func (a *App) Get(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodGet, path, fn, mw...)
}

// Post registers fn for POST requests at path.
func (a *App) Post(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodPost, path, fn, mw...)
}

// HandleRaw registers a plain http.Handler behind the route middleware.
func (a *App) HandleRaw(method, path string, h http.Handler, mw ...Middleware) {
	a.Handle(method, path, Adapt(h), mw...)
}

// Handle registers fn for method and path. The handler runs inside its
// own span with a fresh Values; the trace ID falls back to a random
// uuid when no valid span context is present.
func (a *App) Handle(method, path string, fn Handler, mw ...Middleware) {
	pattern := method + " " + a.prefix + path
	fn = wrap(a.mw, wrap(mw, fn))

	a.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.startSpan(w, r, pattern)
		defer span.End()

		traceID := uuid.NewString()
		if sc := span.SpanContext(); sc.TraceID().IsValid() {
			traceID = sc.TraceID().String()
		}

		ctx = withValues(ctx, &Values{
			TraceID: traceID,
			Route:   pattern,
			Start:   time.Now().UTC(),
			Tracer:  a.tracer,
		})

		if err := fn(ctx, w, r.WithContext(ctx)); err != nil {
			a.logger.Error("bridge handler", "route", pattern, "trace_id", traceID, "error", err)
		}
	})
}

// startSpan opens the request span and propagates its context back to
// the page through the response headers.
func (a *App) startSpan(w http.ResponseWriter, r *http.Request, route string) (context.Context, trace.Span) {
	ctx, span := a.tracer.Start(r.Context(), route, trace.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("url.path", r.URL.Path),
	))

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

	return ctx, span
}

// wrap applies mw so that mw[0] is the outermost layer.
func wrap(mw []Middleware, h Handler) Handler {
	for _, m := range slices.Backward(mw) {
		if m != nil {
			h = m(h)
		}
	}

	return h
}
