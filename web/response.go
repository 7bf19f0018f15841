package web

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

// RespondJSON to an HTTP request, setting the status code and body if any.
func RespondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	mux.SetStatusCode(ctx, statusCode)

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}

// RespondError writes a structured JSON error response using the
// status code and message from the given *errs.Error.
func RespondError(ctx context.Context, w http.ResponseWriter, err *errs.Error) error {
	return RespondJSON(ctx, w, err.Code, err)
}

// RespondContent streams content as an inline file named name. Range and
// conditional requests are handled by http.ServeContent.
func RespondContent(ctx context.Context, w http.ResponseWriter, r *http.Request, name, contentType string, modTime time.Time, content io.ReadSeeker) error {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Content-Disposition", mimeInline(name))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	sw := statusWriter{ResponseWriter: w, status: http.StatusOK}
	http.ServeContent(&sw, r, name, modTime, content)
	mux.SetStatusCode(ctx, sw.status)

	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// mimeInline formats an inline Content-Disposition. Non-ASCII names use
// RFC 2231 encoding.
func mimeInline(name string) string {
	if name == "" {
		return "inline"
	}
	return mime.FormatMediaType("inline", map[string]string{"filename": name})
}
