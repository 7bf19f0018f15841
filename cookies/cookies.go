// Package cookies stores the web view's cookies so downloads can replay the
// page's session.
package cookies

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	ErrInvalidURL     = errors.New("invalid cookie url")
	ErrNoValidCookies = errors.New("no cookie line parsed")
)

// Jar is a public-suffix aware cookie jar.
type Jar struct {
	jar *cookiejar.Jar
}

// New returns an empty Jar.
func New() (*Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Jar{jar: jar}, nil
}

// Set stores Set-Cookie style lines for rawURL. Lines that do not parse are
// skipped and reported together; the rest are still stored. When every
// line is skipped the error also wraps ErrNoValidCookies.
func (j *Jar) Set(rawURL string, setCookies ...string) error {
	u, err := parse(rawURL)
	if err != nil {
		return err
	}

	var (
		parsed []*http.Cookie
		errs   []error
	)
	for _, line := range setCookies {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("cookie %q: %w", line, err))
			continue
		}
		parsed = append(parsed, c)
	}

	if len(parsed) == 0 && len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrNoValidCookies, errors.Join(errs...))
	}

	j.jar.SetCookies(u, parsed)

	return errors.Join(errs...)
}

// Header returns the Cookie header value for rawURL, or "" when no cookie
// applies or the URL is not http(s).
func (j *Jar) Header(rawURL string) string {
	u, err := parse(rawURL)
	if err != nil {
		return ""
	}

	cs := j.jar.Cookies(u)
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.Name+"="+c.Value)
	}

	return strings.Join(parts, "; ")
}

func parse(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	return u, nil
}
