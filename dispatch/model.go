package dispatch

import (
	"time"

	"github.com/adamwoolhether/webshell/dlmanager"
	"github.com/adamwoolhether/webshell/provider"
)

// Descriptor is what the web view reports for a download.
type Descriptor struct {
	URL                string `json:"url" validate:"required,url"`
	UserAgent          string `json:"userAgent"`
	ContentDisposition string `json:"contentDisposition"`
	MimeType           string `json:"mimeType"`

	// SHA256 is an optional digest the page vouches for.
	SHA256 string `json:"sha256,omitempty" validate:"omitempty,sha256"`
}

// Description is attached to every job.
const Description = "Downloading file..."

// Facility runs downloads.
type Facility interface {
	Enqueue(req dlmanager.Request) (dlmanager.ID, error)
	Query(id dlmanager.ID) (dlmanager.Record, error)
	Completions() <-chan dlmanager.ID
}

// CookieStore returns the Cookie header for a URL, or "".
type CookieStore interface {
	Header(rawURL string) string
}

// ContentProvider wraps local files as grantable content URIs.
type ContentProvider interface {
	URIForFile(path string) (string, error)
	Grant(uri string, ttl time.Duration) (provider.Grant, error)
	Type(uri string) string
}

// ViewerResolver finds something able to display a type.
type ViewerResolver interface {
	Resolve(mimeType string) (provider.Viewer, bool)
}
