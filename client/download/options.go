package download

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// Option defines optional settings for downloading files.
type Option func(*options) error

type options struct {
	digest     *digest
	progress   bool
	progressFn ProgressFunc
}

// ProgressFunc receives the bytes written so far and the expected total,
// which is -1 when the server sent no Content-Length.
type ProgressFunc func(transferred, total int64)

// WithChecksum hashes the body with h as it is written and fails the
// download with ErrChecksumMismatch unless the sum equals expected, a
// hex string in either case. The file is never renamed into place on a
// mismatch.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}
		want, err := hex.DecodeString(expected)
		if err != nil || len(want) == 0 {
			return fmt.Errorf("expected checksum %q is not a hex digest", expected)
		}
		if len(want) != h.Size() {
			return fmt.Errorf("expected checksum has %d bytes, hash produces %d", len(want), h.Size())
		}

		opts.digest = &digest{h: h, want: want}
		return nil
	}
}

// WithProgress enables periodic download progress logging via the
// logger supplied to Handle.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithProgressFunc reports every write to fn. It does not enable logging.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}
		opts.progressFn = fn
		return nil
	}
}

type digest struct {
	h    hash.Hash
	want []byte
}

func (d *digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// verify is a no-op on a nil digest.
func (d *digest) verify() error {
	if d == nil {
		return nil
	}

	if got := d.h.Sum(nil); !bytes.Equal(got, d.want) {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("want %x, got %x", d.want, got),
		}
	}

	return nil
}
