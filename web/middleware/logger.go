package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/webshell/web/mux"
)

// Logger logs each bridge request when it arrives and again when it
// finishes, tagged with the request's trace ID. Polling endpoints are
// chatty, so arrival is logged at debug.
func Logger(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := mux.GetValues(ctx)

			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			reqLog := log.With("trace_id", v.TraceID, "method", r.Method, "path", target)

			reqLog.Debug("request started", "remoteaddr", r.RemoteAddr, "origin", r.Header.Get("Origin"))

			err := handler(ctx, w, r)

			status := v.StatusCode
			if status == 0 {
				status = http.StatusOK
			}
			reqLog.Info("request completed", "status", status, "elapsed", time.Since(v.Start).Round(time.Microsecond).String())

			return err
		}
		return h
	}
	return m
}
