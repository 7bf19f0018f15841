package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

// RequestRecorder receives one observation per handled request.
type RequestRecorder interface {
	ObserveRequest(method, route string, code int, elapsed time.Duration)
}

// Metrics reports every request to rec, labelled with the matched route
// pattern rather than the raw path.
func Metrics(rec RequestRecorder) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			err := handler(ctx, w, r)

			code := mux.GetValues(ctx).StatusCode
			if err != nil {
				code = statusOf(err)
			}
			if code == 0 {
				code = http.StatusOK
			}

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			rec.ObserveRequest(r.Method, route, code, time.Since(start))

			return err
		}

		return h
	}

	return m
}

// statusOf predicts the code Errors will write for err.
func statusOf(err error) int {
	if _, ok := errors.AsType[errs.FieldErrors](err); ok {
		return http.StatusUnprocessableEntity
	}
	if appErr, ok := errors.AsType[*errs.Error](err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
