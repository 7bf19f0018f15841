package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

// Panics turns a panicking handler into an internal error carrying the
// stack, so the page sees a 500 and the log sees the trace.
func Panics() mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err = errs.NewInternal(fmt.Errorf("PANIC [%v] in %s TRACE[%s]", rec, mux.GetValues(ctx).Route, debug.Stack()))
			}()

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
