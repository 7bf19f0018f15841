// Package provider exposes files under configured roots as content URIs and
// hands out time-limited read grants for them.
package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// AnyType is reported when a file's type cannot be determined.
	AnyType = "*/*"

	scheme = "content"
)

var (
	ErrOutsideRoots  = errors.New("file is outside the provider roots")
	ErrInvalidURI    = errors.New("invalid content uri")
	ErrGrantNotFound = errors.New("grant not found")
	ErrGrantExpired  = errors.New("grant expired")
)

// Grant is a read permission for one content URI.
type Grant struct {
	Token   string    `json:"token"`
	URI     string    `json:"uri"`
	Path    string    `json:"-"`
	Expires time.Time `json:"expires"`
}

// Provider maps files to content://<authority>/<root>/<rel> URIs.
type Provider struct {
	authority string
	roots     map[string]string
	names     []string
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	grants map[string]Grant
}

// Option configures a [Provider].
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithClock replaces time.Now for grant expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New returns a Provider for authority. roots maps a URI segment to a
// directory; at least one is required.
func New(authority string, roots map[string]string, opts ...Option) (*Provider, error) {
	if authority == "" {
		return nil, errors.New("authority must not be empty")
	}
	if len(roots) == 0 {
		return nil, errors.New("at least one root is required")
	}

	p := Provider{
		authority: authority,
		roots:     make(map[string]string, len(roots)),
		logger:    slog.Default(),
		now:       time.Now,
		grants:    make(map[string]Grant),
	}

	for name, dir := range roots {
		if name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("invalid root name %q", name)
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", name, err)
		}
		p.roots[name] = abs
		p.names = append(p.names, name)
	}
	slices.Sort(p.names)

	for _, opt := range opts {
		opt(&p)
	}

	return &p, nil
}

// URIForFile returns the content URI for a file under one of the roots.
func (p *Provider) URIForFile(file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for _, name := range p.names {
		rel, err := filepath.Rel(p.roots[name], abs)
		if err != nil || rel == "." || !filepath.IsLocal(rel) {
			continue
		}

		u := url.URL{
			Scheme: scheme,
			Host:   p.authority,
			Path:   "/" + name + "/" + filepath.ToSlash(rel),
		}
		return u.String(), nil
	}

	return "", fmt.Errorf("%w: %s", ErrOutsideRoots, file)
}

// FileForURI reverses URIForFile.
func (p *Provider) FileForURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if u.Scheme != scheme || u.Host != p.authority {
		return "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}

	name, rel, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	dir, known := p.roots[name]
	if !ok || !known {
		return "", fmt.Errorf("%w: unknown root in %s", ErrInvalidURI, uri)
	}

	rel = path.Clean(rel)
	if rel == "." || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%w: %s escapes its root", ErrInvalidURI, uri)
	}

	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}

// Grant issues a read grant for uri valid for ttl.
func (p *Provider) Grant(uri string, ttl time.Duration) (Grant, error) {
	if ttl <= 0 {
		return Grant{}, errors.New("grant ttl must be positive")
	}

	file, err := p.FileForURI(uri)
	if err != nil {
		return Grant{}, err
	}

	g := Grant{
		Token:   uuid.NewString(),
		URI:     uri,
		Path:    file,
		Expires: p.now().Add(ttl),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.prune()
	p.grants[g.Token] = g

	p.logger.Debug("read grant issued", "uri", uri, "expires", g.Expires)

	return g, nil
}

// Open resolves a live grant.
func (p *Provider) Open(token string) (Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.grants[token]
	if !ok {
		return Grant{}, ErrGrantNotFound
	}
	if !p.now().Before(g.Expires) {
		delete(p.grants, token)
		return Grant{}, ErrGrantExpired
	}

	return g, nil
}

// Type sniffs the content type of the file behind uri, without parameters.
// It returns AnyType when the file cannot be read.
func (p *Provider) Type(uri string) string {
	file, err := p.FileForURI(uri)
	if err != nil {
		return AnyType
	}

	m, err := mimetype.DetectFile(file)
	if err != nil {
		p.logger.Debug("detecting content type", "uri", uri, "error", err)
		return AnyType
	}

	mt, _, _ := strings.Cut(m.String(), ";")
	return mt
}

// prune drops expired grants. Callers hold p.mu.
func (p *Provider) prune() {
	now := p.now()
	for token, g := range p.grants {
		if !now.Before(g.Expires) {
			delete(p.grants, token)
		}
	}
}
