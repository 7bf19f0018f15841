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

var errCrossOrigin = errors.New("cross-origin bridge call rejected")

// CSRF rejects state-changing bridge calls (POST /v1/downloads and
// friends) from pages other than the shell's own, using
// http.CrossOriginProtection. trustedOrigins are the extra page origins
// allowed to call in, such as the hosted web app. An origin that does
// not parse panics at construction.
func CSRF(log *slog.Logger, trustedOrigins ...string) mux.Middleware {
	cop := http.NewCrossOriginProtection()
	for _, origin := range trustedOrigins {
		if err := cop.AddTrustedOrigin(origin); err != nil {
			panic(err)
		}
	}

	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if err := cop.Check(r); err != nil {
				log.Warn("csrf rejected",
					"method", r.Method, "path", r.URL.Path,
					"origin", r.Header.Get("Origin"), "sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
					"error", err)
				return web.RespondError(ctx, w, errs.New(http.StatusForbidden, errCrossOrigin))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
