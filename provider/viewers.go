package provider

import (
	"strings"
)

// Viewer is something able to display files matching Pattern: "*/*",
// "type/*" or an exact "type/subtype".
type Viewer struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// Matches reports whether v accepts mimeType.
func (v Viewer) Matches(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	pattern := strings.ToLower(v.Pattern)

	if pattern == AnyType || pattern == mimeType {
		return true
	}

	if major, ok := strings.CutSuffix(pattern, "/*"); ok {
		t, _, _ := strings.Cut(mimeType, "/")
		return t == major
	}

	return false
}

// Viewers is an ordered registry of viewers.
type Viewers struct {
	list []Viewer
}

// NewViewers returns a registry that resolves in the given order.
func NewViewers(vs ...Viewer) *Viewers {
	return &Viewers{list: vs}
}

// Resolve returns the first viewer accepting mimeType. A type of "*/*"
// matches only catch-all viewers.
func (vs *Viewers) Resolve(mimeType string) (Viewer, bool) {
	for _, v := range vs.list {
		if v.Matches(mimeType) {
			return v, true
		}
	}

	return Viewer{}, false
}

// ParseViewers builds a registry from "name=pattern" entries; a bare
// pattern names itself.
func ParseViewers(entries []string) *Viewers {
	vs := make([]Viewer, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		name, pattern, ok := strings.Cut(e, "=")
		if !ok {
			pattern = name
		}
		vs = append(vs, Viewer{Name: strings.TrimSpace(name), Pattern: strings.TrimSpace(pattern)})
	}

	return NewViewers(vs...)
}
