package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// MaxBodyBytes caps a bridge request body. Descriptors and cookie
// batches are small; anything larger is a misbehaving page.
const MaxBodyBytes = 64 << 10

// Param returns the named path value, or an error when it is empty.
func Param(r *http.Request, key string) (string, error) {
	if v := r.PathValue(key); v != "" {
		return v, nil
	}

	return "", fmt.Errorf("missing path value %q", key)
}

// ParamInt64 is Param parsed as a base-10 int64.
func ParamInt64(r *http.Request, key string) (int64, error) {
	v, err := Param(r, key)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("path value %q=%q is not an integer", key, v)
	}

	return n, nil
}

// QueryInt64 parses the query value key as an int64. An absent value
// yields def.
func QueryInt64(r *http.Request, key string, def int64) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("query value %q=%q is not an integer", key, v)
	}

	return n, nil
}

// Decode reads exactly one JSON object from the request body into val
// and validates it. Unknown fields, trailing data and bodies over
// MaxBodyBytes are rejected. Validation failures come back as
// errs.FieldErrors; everything else is a malformed request.
func Decode[T any](r *http.Request, val *T) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("decode: read body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return fmt.Errorf("decode: body exceeds %d bytes", MaxBodyBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	if err := dec.Decode(val); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return errors.New("decode: body must hold a single JSON object")
	}

	return Validate(val)
}
