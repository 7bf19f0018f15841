// Package download streams HTTP response bodies to disk with optional
// checksum validation and progress reporting, and runs transfers on a
// bounded [Queue].
//
// # Single Download
//
// [Handle] writes the response body to a temporary file alongside the
// destination path, then renames it into place on success:
//
//	err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithProgressFunc(func(n, total int64) { ... }),
//	)
//
// # Background Downloads
//
// A [Queue] runs work functions on their own goroutines, capped at a
// concurrency limit:
//
//	q := download.NewQueue(4)
//	job := q.Start(ctx, func(ctx context.Context) error { ... })
//	err := job.Err()
package download
