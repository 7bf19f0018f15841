// Package client provides the HTTP transport used by the download
// facility, built on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(0),
//		client.WithUserAgent("webshell/1.0"),
//		client.WithThrottle(4, 8),
//	)
//
// # Downloading Files
//
// Construct a [URL] and [Request], then stream the body to disk with
// [Client.Download]. Data is written to a temp file next to the
// destination and renamed into place on success:
//
//	req, err := client.Request(ctx, u, http.MethodGet,
//		client.WithHeaders(map[string][]string{"Cookie": {cookie}}),
//	)
//	err = c.Download(req, http.StatusOK, "/tmp/file.bin",
//		download.WithProgressFunc(func(n, total int64) { ... }),
//	)
//
// Failed transfers return an [*UnexpectedStatusError] for non-matching
// status codes, [ErrTooManyRedirects] when [WithMaxRedirects] is
// exceeded, or a [download.Error] for truncated bodies.
package client
