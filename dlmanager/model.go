package dlmanager

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest = errors.New("invalid download request")
	ErrNotFound       = errors.New("download not found")
	ErrShutdown       = errors.New("download manager shut down")
)

// ID identifies a job for the lifetime of the process.
type ID int64

// Request describes a single download.
type Request struct {
	URL         string
	Title       string
	Description string
	MimeType    string
	Headers     map[string]string

	// SHA256, when set, is the hex digest the finished file must match.
	SHA256 string

	// Destination is the full path of the file to write. When it already
	// exists the job writes to the first free "name-N.ext" beside it.
	Destination string

	// NotifyOnCompletion mirrors the platform visibility flag. The manager
	// broadcasts every completion regardless; consumers may use it to decide
	// whether to surface one.
	NotifyOnCompletion bool
}

// Record is the manager's view of a job.
type Record struct {
	ID                 ID     `json:"id"`
	URL                string `json:"url"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
	Status             Status `json:"status"`
	Reason             Reason `json:"reason,omitempty"`
	LocalURI           string `json:"localUri,omitempty"`
	Bytes              int64  `json:"bytes"`
	NotifyOnCompletion bool   `json:"notifyOnCompletion"`
}

// Status is the lifecycle state of a job.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccessful
	StatusFailed
)

var statusNames = [...]string{"pending", "running", "successful", "failed"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if strings.EqualFold(name, string(b)) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}
