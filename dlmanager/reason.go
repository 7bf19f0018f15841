package dlmanager

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"syscall"

	"github.com/adamwoolhether/webshell/client"
	"github.com/adamwoolhether/webshell/client/download"
)

// Reason explains a failed job. Values 400-599 are HTTP status codes.
type Reason int

const (
	ReasonNone              Reason = 0
	ReasonUnknown           Reason = 1000
	ReasonFileError         Reason = 1001
	ReasonUnhandledHTTPCode Reason = 1002
	ReasonHTTPDataError     Reason = 1004
	ReasonTooManyRedirects  Reason = 1005
	ReasonInsufficientSpace Reason = 1006
	ReasonFileAlreadyExists Reason = 1009
)

// IsHTTPStatus reports whether r is a verbatim HTTP status code.
func (r Reason) IsHTTPStatus() bool {
	return r >= 400 && r <= 599
}

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnknown:
		return "unknown"
	case ReasonFileError:
		return "file error"
	case ReasonUnhandledHTTPCode:
		return "unhandled http code"
	case ReasonHTTPDataError:
		return "http data error"
	case ReasonTooManyRedirects:
		return "too many redirects"
	case ReasonInsufficientSpace:
		return "insufficient space"
	case ReasonFileAlreadyExists:
		return "file already exists"
	}
	if r.IsHTTPStatus() {
		return "http " + strconv.Itoa(int(r))
	}
	return "reason " + strconv.Itoa(int(r))
}

// ReasonFor classifies a transfer error. A nil error has no reason.
func ReasonFor(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	if errors.Is(err, client.ErrTooManyRedirects) {
		return ReasonTooManyRedirects
	}

	if statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err); ok {
		if r := Reason(statusErr.StatusCode); r.IsHTTPStatus() {
			return r
		}
		return ReasonUnhandledHTTPCode
	}

	switch {
	case errors.Is(err, syscall.ENOSPC):
		return ReasonInsufficientSpace
	case errors.Is(err, fs.ErrExist):
		return ReasonFileAlreadyExists
	case errors.Is(err, download.ErrDownloadCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ReasonUnknown
	case errors.Is(err, download.ErrContentLengthMismatch),
		errors.Is(err, download.ErrChecksumMismatch):
		return ReasonHTTPDataError
	}

	if _, ok := errors.AsType[*fs.PathError](err); ok {
		return ReasonFileError
	}
	if _, ok := errors.AsType[*url.Error](err); ok {
		return ReasonHTTPDataError
	}
	if _, ok := errors.AsType[net.Error](err); ok {
		return ReasonHTTPDataError
	}

	return ReasonUnknown
}
