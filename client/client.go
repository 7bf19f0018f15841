package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adamwoolhether/webshell/client/download"
	"github.com/adamwoolhether/webshell/client/throttle"
)

// Client wraps the std-lib *http.Client.
// It starts from a fresh *http.Client on the default transport, which
// can be customized via optional funcs.
type Client struct {
	c      *http.Client
	logger *slog.Logger
}

// Build constructs a Client from the given options.
func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		client.c = opts.client
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.maxRedirects != nil {
		limit := *opts.maxRedirects
		client.c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return ErrTooManyRedirects
			}
			return nil
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		cfg := *opts.throttle
		cfg.OnWait = func(host string, waited time.Duration) {
			client.logger.Info("download throttled", "host", host, "waited", waited.String())
		}
		rt, err := throttle.NewRoundTripper(cfg, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Do will fire the request, and write response to the given dest object if any.
func (c *Client) Do(req *http.Request, expCode int, opts ...DoOption) error {
	var settings doOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return err
		}
	}

	doFunc := func(resp *http.Response) error {
		if settings.responseBody != nil {
			if err := json.NewDecoder(resp.Body).Decode(settings.responseBody); err != nil {
				return fmt.Errorf("decoding body: %w", err)
			}
		}

		return nil
	}

	return c.exec(req, expCode, doFunc)
}

// Download executes a request that's intended to stream the response body to destPath.
// Data streams to a temp file in the same directory, then the temp file is renamed to
// destPath on success or cleared on failure.
func (c *Client) Download(req *http.Request, expCode int, destPath string, opts ...download.Option) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	return c.exec(req, expCode, func(resp *http.Response) error {
		if resp.Request.URL.String() != req.URL.String() {
			c.logger.Debug("download redirected", "from", req.URL.Redacted(), "to", resp.Request.URL.Redacted())
		}
		if err := download.Handle(req.Context(), resp.Body, resp.ContentLength, destPath, c.logger, opts...); err != nil {
			return fmt.Errorf("download %s: %w", filepath.Base(destPath), err)
		}
		return nil
	})
}

// exec sends req and hands the response to fn when the status is
// expCode. Any other status becomes an *UnexpectedStatusError holding
// the start of the body. Unread body bytes are drained, up to a limit,
// so the connection can be reused.
func (c *Client) exec(req *http.Request, expCode int, fn execFn) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("exec http do: %w", err)
	}
	defer c.release(resp)

	if err := checkStatus(resp, expCode); err != nil {
		return err
	}

	if err := fn(resp); err != nil {
		return fmt.Errorf("exec fn: %w", err)
	}

	return nil
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}

	statusErr := ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		statusErr = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(b), Err: statusErr}
}

// maxDrain bounds how much of an unread body release throws away before
// giving up on connection reuse.
const maxDrain = 256 << 10

func (c *Client) release(resp *http.Response) {
	if _, err := io.CopyN(io.Discard, resp.Body, maxDrain); err != nil && !errors.Is(err, io.EOF) {
		c.logger.Debug("draining response body", "url", resp.Request.URL.Redacted(), "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("closing response body", "url", resp.Request.URL.Redacted(), "error", err)
	}
}

// Request instantiates an *http.Request with the provided information.
// A payload is sent as `application/json`.
func Request(ctx context.Context, reqURL *url.URL, method string, opts ...RequestOption) (*http.Request, error) {
	var settings requestOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return nil, err
		}
	}

	var payload io.Reader
	if settings.body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(settings.body); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		payload = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range settings.headers {
		for _, element := range v {
			if element == "" {
				continue
			}
			req.Header.Add(k, element)
		}
	}

	return req, nil
}

// URL creates a url.URL for use in Request.
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}
