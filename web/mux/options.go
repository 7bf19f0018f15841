package mux

import (
	"cmp"
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Option configures an App.
type Option func(*options)

type options struct {
	static     http.Handler
	staticPath string
	tracer     trace.Tracer
	logger     *slog.Logger
	globalMW   []Middleware
	mw         []Middleware
}

// stage places a known middleware in the chain. Global stages wrap the
// ServeMux, the rest wrap each route. Unknown middleware lands at
// stageCustom.
type stage struct {
	order  int
	global bool
}

const stageCustom = 50

var stages = map[string]stage{
	"CORS":    {order: 10, global: true},
	"CSRF":    {order: 20, global: true},
	"Logger":  {order: 30},
	"Metrics": {order: 35},
	"Errors":  {order: 40},
	"Panics":  {order: 100},
}

// WithMiddleware sorts mw into the global and route stacks by the name
// of the constructor that built each one. Callers may list middleware
// in any order: CORS runs before CSRF, and on each route Logger and
// Metrics observe the status Errors writes, while Panics sits closest
// to the handler.
func WithMiddleware(mw ...Middleware) Option {
	type placed struct {
		stage
		fn Middleware
	}

	all := make([]placed, 0, len(mw))
	for _, m := range mw {
		st, ok := stages[constructor(m)]
		if !ok {
			st = stage{order: stageCustom}
		}
		all = append(all, placed{stage: st, fn: m})
	}
	slices.SortStableFunc(all, func(a, b placed) int { return cmp.Compare(a.order, b.order) })

	return func(opts *options) {
		opts.globalMW, opts.mw = nil, nil
		for _, p := range all {
			if p.global {
				opts.globalMW = append(opts.globalMW, p.fn)
			} else {
				opts.mw = append(opts.mw, p.fn)
			}
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) {
		opts.tracer = tracer
	}
}

// WithLogger sets the logger for handler errors that escape the
// middleware stack.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = log
	}
}

// WithStaticFS serves the page assets in fsys for GET requests under
// prefix. Static files bypass the route middleware.
func WithStaticFS(fsys fs.FS, prefix string) Option {
	return func(opts *options) {
		opts.static = http.StripPrefix(strings.TrimSuffix(prefix, "/"), http.FileServerFS(fsys))
		opts.staticPath = prefix
	}
}

// Adapt lets a plain http.Handler sit behind the route middleware.
func Adapt(h http.Handler) Handler {
	return func(_ context.Context, w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	}
}

// constructor reports the function that produced mw, so
// ".../web/middleware.CORS.func1" yields "CORS".
func constructor(mw Middleware) string {
	fn := runtime.FuncForPC(reflect.ValueOf(mw).Pointer()).Name()
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}

	parts := strings.Split(fn, ".")
	if len(parts) < 2 {
		return fn
	}

	return parts[1]
}
