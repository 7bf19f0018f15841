package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/adamwoolhether/webshell/provider"
	"github.com/adamwoolhether/webshell/web"
	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

// content serves the file behind a read grant. Viewers on platforms without
// a content resolver fetch granted files through here.
func (h handlers) content(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	token, err := web.Param(r, "token")
	if err != nil {
		return errs.New(http.StatusBadRequest, err)
	}

	_, span := mux.AddSpan(ctx, "content.open")
	grant, err := h.cfg.Content.Open(token)
	if err != nil {
		span.RecordError(err)
	}
	span.End()

	switch {
	case errors.Is(err, provider.ErrGrantNotFound):
		return errs.New(http.StatusNotFound, err)
	case errors.Is(err, provider.ErrGrantExpired):
		return errs.New(http.StatusGone, err)
	case err != nil:
		return errs.NewInternal(err)
	}

	f, err := os.Open(grant.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errs.Newf(http.StatusNotFound, "content %s no longer exists", grant.URI)
		}
		return errs.NewInternal(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errs.NewInternal(err)
	}

	contentType := h.cfg.Content.Type(grant.URI)
	if contentType == provider.AnyType {
		contentType = ""
	}

	ctx, span = mux.AddSpan(ctx, "content.serve",
		attribute.String("content.uri", grant.URI),
		attribute.Int64("content.size", info.Size()))
	defer span.End()

	return web.RespondContent(ctx, w, r, filepath.Base(grant.Path), contentType, info.ModTime(), f)
}
