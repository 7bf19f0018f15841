// Package errs defines the errors bridge handlers return. The Errors
// middleware turns them into JSON responses for the page.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"runtime"
	"strings"
)

// Error carries the status code and message the page will see. Internal
// errors keep their message for the log but are answered with the
// generic status text.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`

	err      error
	internal bool
	file     string
	fn       string
}

// New wraps err as a response with the given status code.
func New(code int, err error) *Error {
	return build(code, err, false)
}

// Newf is New with a formatted message.
func Newf(code int, format string, args ...any) *Error {
	return build(code, fmt.Errorf(format, args...), false)
}

// NewInternal wraps err as a 500 whose message is hidden from the page.
func NewInternal(err error) *Error {
	return build(http.StatusInternalServerError, err, true)
}

func build(code int, err error, internal bool) *Error {
	e := &Error{Code: code, Message: err.Error(), err: err, internal: internal}

	// Skip build and its exported caller.
	if pc, file, line, ok := runtime.Caller(2); ok {
		e.file = fmt.Sprintf("%s:%d", path.Base(file), line)
		if f := runtime.FuncForPC(pc); f != nil {
			e.fn = f.Name()
		}
	}

	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.err
}

// Internal reports whether the message must stay out of the response.
func (e *Error) Internal() bool {
	return e.internal
}

// Source reports the file:line and function that created e.
func (e *Error) Source() (file, fn string) {
	return e.file, e.fn
}

// Public returns the body to send to the page.
func (e *Error) Public() *Error {
	if !e.internal {
		return e
	}

	return &Error{Code: e.Code, Message: http.StatusText(e.Code)}
}

// FieldError is a validation failure on one request field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors is answered with 422 and the list as the body.
type FieldErrors []FieldError

// NewFieldsError reports a single failing field.
func NewFieldsError(field string, err error) error {
	return FieldErrors{{Field: field, Err: err.Error()}}
}

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}

	return strings.Join(parts, "; ")
}

// Fields maps each failing field to its message.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, f := range fe {
		m[f.Field] = f.Err
	}

	return m
}

// IsFieldErrors reports whether err's chain holds FieldErrors.
func IsFieldErrors(err error) bool {
	_, ok := errors.AsType[FieldErrors](err)
	return ok
}

// GetFieldErrors returns the FieldErrors in err's chain, or nil.
func GetFieldErrors(err error) FieldErrors {
	fe, _ := errors.AsType[FieldErrors](err)
	return fe
}
