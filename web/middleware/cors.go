package middleware

import (
	"context"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/adamwoolhether/webshell/web"
	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

// DefaultAllowHeaders are the request headers a page may send to the
// bridge when CORS is given none. Range lets a viewer page seek inside
// /content responses.
var DefaultAllowHeaders = []string{
	"Content-Type",
	"Accept",
	"Range",
	"X-Requested-With",
	"Cache-Control",
}

// AllowMethods lists the methods the bridge API answers to.
const AllowMethods = "GET, POST, OPTIONS"

// CORS lets pages served from allowedOrigins call the bridge. Entries
// may be exact origins, path.Match patterns such as
// "https://*.mealhub.example", or "*" for any origin. Requests without
// an Origin header pass through untouched; a disallowed origin gets 403
// and preflights are answered here with 204.
func CORS(allowedOrigins []string, allowedHeaders ...string) mux.Middleware {
	if len(allowedHeaders) == 0 {
		allowedHeaders = DefaultAllowHeaders
	}
	allowed := CheckOriginFunc(allowedOrigins)
	headers := strings.Join(allowedHeaders, ", ")

	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return handler(ctx, w, r)
			}

			if !allowed(origin) {
				return web.RespondError(ctx, w, errs.Newf(http.StatusForbidden, "origin %s may not call the bridge", origin))
			}

			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Add("Vary", "Origin")
			hdr.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				hdr.Set("Access-Control-Allow-Methods", AllowMethods)
				hdr.Set("Access-Control-Allow-Headers", headers)
				hdr.Set("Access-Control-Max-Age", "86400")
				return web.RespondJSON(ctx, w, http.StatusNoContent, nil)
			}

			hdr.Set("Access-Control-Expose-Headers", "Content-Disposition, Content-Range")

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// CheckOriginFunc compiles allowedOrigins into a matcher. Entries may
// also be comma-separated lists, as they arrive from a single
// environment variable.
func CheckOriginFunc(allowedOrigins []string) func(origin string) bool {
	exact := make(map[string]struct{})
	var patterns []string

	for _, entry := range allowedOrigins {
		for o := range strings.SplitSeq(entry, ",") {
			o = strings.TrimSpace(o)
			switch {
			case o == "":
			case o == "*":
				return func(string) bool { return true }
			case strings.ContainsAny(o, "*?["):
				patterns = append(patterns, o)
			default:
				exact[o] = struct{}{}
			}
		}
	}

	return func(origin string) bool {
		if _, ok := exact[origin]; ok {
			return true
		}
		return slices.ContainsFunc(patterns, func(p string) bool {
			ok, err := path.Match(p, origin)
			return ok && err == nil
		})
	}
}
