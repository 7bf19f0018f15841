package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/adamwoolhether/webshell/cookies"
	"github.com/adamwoolhether/webshell/notify"
	"github.com/adamwoolhether/webshell/web"
	"github.com/adamwoolhether/webshell/web/errs"
	"github.com/adamwoolhether/webshell/web/mux"
)

type navigateRequest struct {
	URL string `json:"url" validate:"required"`
}

type cookiesRequest struct {
	URL     string   `json:"url" validate:"required,url"`
	Cookies []string `json:"cookies" validate:"required,min=1,dive,required"`
}

type notificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Last          int64                 `json:"last"`
}

// navigate reports whether the shell consumed the URL. The web view loads
// it itself when handled is false.
func (h handlers) navigate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req navigateRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, h.cfg.Navigator.Navigate(ctx, req.URL))
}

func (h handlers) setCookies(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req cookiesRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	err := h.cfg.Cookies.Set(req.URL, req.Cookies...)
	switch {
	case errors.Is(err, cookies.ErrInvalidURL):
		return errs.New(http.StatusBadRequest, err)
	case errors.Is(err, cookies.ErrNoValidCookies):
		return errs.New(http.StatusUnprocessableEntity, err)
	case err != nil:
		h.cfg.Logger.Warn("cookie lines skipped", "trace_id", mux.GetTraceID(ctx), "url", req.URL, "error", err)
	}

	return web.RespondJSON(ctx, w, http.StatusNoContent, nil)
}

func (h handlers) notifications(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	since, err := web.QueryInt64(r, "since", 0)
	if err != nil {
		return errs.New(http.StatusBadRequest, err)
	}

	items := h.cfg.Feed.Since(since)

	last := since
	if n := len(items); n > 0 {
		last = items[n-1].Seq
	}

	return web.RespondJSON(ctx, w, http.StatusOK, notificationsResponse{Notifications: items, Last: last})
}

// decode maps body errors to 400 and leaves validation failures for the
// Errors middleware.
func decode[T any](r *http.Request, val *T) error {
	if err := web.Decode(r, val); err != nil {
		if errs.IsFieldErrors(err) {
			return err
		}
		return errs.New(http.StatusBadRequest, err)
	}
	return nil
}
