package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/webshell/web"
	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

// Errors writes the JSON response for any error a handler returns.
// FieldErrors become 422 with the field list; anything that is not an
// *errs.Error is logged and answered as an opaque 500. A page that went
// away mid-request gets no response at all.
func Errors(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			v := mux.GetValues(ctx)

			if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
				log.Debug("bridge client gone", "trace_id", v.TraceID, "route", v.Route)
				return nil
			}

			if fields, ok := errors.AsType[errs.FieldErrors](err); ok {
				log.Info("bridge request rejected", "trace_id", v.TraceID, "route", v.Route, "fields", fields.Error())
				return web.RespondJSON(ctx, w, http.StatusUnprocessableEntity, fields)
			}

			appErr, ok := errors.AsType[*errs.Error](err)
			if !ok {
				appErr = errs.NewInternal(err)
			}

			file, fn := appErr.Source()
			level := slog.LevelWarn
			if appErr.Code >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(ctx, level, "bridge request failed",
				"trace_id", v.TraceID, "route", v.Route, "status", appErr.Code,
				"error", appErr.Message, "source", file, "func", fn)

			return web.RespondError(ctx, w, appErr.Public())
		}
		return h
	}
	return m
}
