package mux

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type valuesKey struct{}

// Values is the per-request state shared by the bridge middleware. The
// mux creates one for every routed request; handlers and middleware
// mutate it through the helpers below.
type Values struct {
	TraceID    string
	Route      string
	Start      time.Time
	Tracer     trace.Tracer
	StatusCode int
}

// GetValues returns the request's Values. Outside a routed request it
// returns a detached value with a nil trace ID and a no-op tracer, so
// callers never need to nil-check.
func GetValues(ctx context.Context) *Values {
	if v, ok := lookup(ctx); ok {
		return v
	}

	return &Values{
		TraceID: uuid.Nil.String(),
		Tracer:  noop.NewTracerProvider().Tracer(""),
		Start:   time.Now(),
	}
}

// GetTraceID is shorthand for GetValues(ctx).TraceID.
func GetTraceID(ctx context.Context) string {
	return GetValues(ctx).TraceID
}

// SetStatusCode records the status written for the request. It is a
// no-op outside a routed request.
func SetStatusCode(ctx context.Context, statusCode int) {
	if v, ok := lookup(ctx); ok {
		v.StatusCode = statusCode
	}
}

// AddSpan starts a child span on the request tracer.
func AddSpan(ctx context.Context, spanName string, keyValues ...attribute.KeyValue) (context.Context, trace.Span) {
	v, ok := lookup(ctx)
	if !ok || v.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := v.Tracer.Start(ctx, spanName, trace.WithAttributes(keyValues...))

	return ctx, span
}

func lookup(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(valuesKey{}).(*Values)
	return v, ok
}

func withValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, valuesKey{}, v)
}
