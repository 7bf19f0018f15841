package api

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/adamwoolhether/webshell/dispatch"
	"github.com/adamwoolhether/webshell/dlmanager"
	"github.com/adamwoolhether/webshell/web"
	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

type submitResponse struct {
	ID       dlmanager.ID `json:"id"`
	FileName string       `json:"fileName"`
}

type pendingResponse struct {
	Pending []dlmanager.ID `json:"pending"`
}

func (h handlers) submitDownload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var desc dispatch.Descriptor
	if err := decode(r, &desc); err != nil {
		return err
	}

	sctx, span := mux.AddSpan(ctx, "dispatch.submit", attribute.String("download.mime_type", desc.MimeType))
	id, err := h.cfg.Dispatcher.Submit(sctx, desc)
	if err != nil {
		span.RecordError(err)
	}
	span.End()

	switch {
	case errors.Is(err, dlmanager.ErrInvalidRequest):
		return errs.New(http.StatusBadRequest, err)
	case errors.Is(err, dlmanager.ErrShutdown):
		return errs.New(http.StatusServiceUnavailable, err)
	case err != nil:
		return errs.NewInternal(err)
	}

	resp := submitResponse{ID: id}

	_, span = mux.AddSpan(ctx, "downloads.query", attribute.Int64("download.id", int64(id)))
	if rec, err := h.cfg.Downloads.Query(id); err == nil {
		resp.FileName = rec.Title
	}
	span.End()

	return web.RespondJSON(ctx, w, http.StatusAccepted, resp)
}

func (h handlers) pendingDownloads(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pending := h.cfg.Dispatcher.Pending()
	if pending == nil {
		pending = []dlmanager.ID{}
	}

	return web.RespondJSON(ctx, w, http.StatusOK, pendingResponse{Pending: pending})
}

func (h handlers) queryDownload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := web.ParamInt64(r, "id")
	if err != nil {
		return errs.New(http.StatusBadRequest, err)
	}

	rec, err := h.cfg.Downloads.Query(dlmanager.ID(id))
	if err != nil {
		if errors.Is(err, dlmanager.ErrNotFound) {
			return errs.Newf(http.StatusNotFound, "download %d not found", id)
		}
		return errs.NewInternal(err)
	}

	return web.RespondJSON(ctx, w, http.StatusOK, rec)
}
