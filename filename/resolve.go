// Package filename derives a safe, extension-correct file name for an
// outbound download from its Content-Disposition header, URL and MIME type.
package filename

import (
	"net/url"
	"regexp"
	"strings"
)

// Placeholder is used when neither the header nor the URL yields a name.
const Placeholder = "downloadfile"

// dispositionRE matches both filename= and RFC 5987 filename*= forms,
// with an optional UTF-8 charset prefix and optional quoting.
var dispositionRE = regexp.MustCompile(`(?i)filename\*?=['"]?(?:UTF-8['"]*)?([^'";]+)['"]?`)

var illegal = strings.NewReplacer(
	`\`, "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// Resolve returns the file name to save a download under.
//
// The Content-Disposition name wins over the URL's last path segment. A
// name without a "." gets an extension derived from mimeType; an existing
// extension is kept even when it disagrees with mimeType. The result never
// contains any of \ / : * ? " < > |.
func Resolve(rawURL, contentDisposition, mimeType string) string {
	name, ok := FromDisposition(contentDisposition)
	if !ok {
		name = FromURL(rawURL)
	}

	if !strings.Contains(name, ".") {
		name += ExtensionFor(mimeType)
	}

	return Sanitize(name)
}

// FromDisposition extracts the file name from a Content-Disposition
// header. The match is percent-decoded; if decoding fails the raw match
// is used instead. A blank name counts as no match.
func FromDisposition(contentDisposition string) (string, bool) {
	m := dispositionRE.FindStringSubmatch(contentDisposition)
	if m == nil {
		return "", false
	}

	raw := m[1]
	name, err := url.QueryUnescape(raw)
	if err != nil {
		name = raw
	}

	name = strings.TrimSpace(name)
	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		name = name[1 : len(name)-1]
	}
	if name == "" {
		return "", false
	}

	return name, true
}

// FromURL returns the last non-empty path segment of rawURL, or
// Placeholder when there is none. A URL that net/url rejects, such as one
// with a stray "%" in its path, is split by hand and only its last
// segment is percent-decoded, falling back to the raw text.
func FromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		if seg := lastSegment(u.Path); seg != "" {
			return seg
		}
		return Placeholder
	}

	seg := lastSegment(rawPath(rawURL))
	if seg == "" {
		return Placeholder
	}
	if dec, err := url.PathUnescape(seg); err == nil {
		return dec
	}
	return seg
}

func lastSegment(p string) string {
	segments := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// rawPath cuts the fragment, query, scheme and authority off rawURL.
func rawPath(rawURL string) string {
	s, _, _ := strings.Cut(rawURL, "#")
	s, _, _ = strings.Cut(s, "?")

	if _, rest, ok := strings.Cut(s, "://"); ok {
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			return ""
		}
		s = rest[i:]
	}

	return s
}

// Sanitize replaces every filesystem-illegal character with "_".
func Sanitize(name string) string {
	return illegal.Replace(name)
}
