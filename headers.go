package xupload

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

const (
	ContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; sandbox"
)

// HeaderPolicy derives response headers for stored objects.
type HeaderPolicy struct {
	inline []string
}

// NewHeaderPolicy creates a policy that allows inline rendering for content
// types matching any of the given shell-style globs (e.g. "image/*").
// Every other type is served as an attachment.
func NewHeaderPolicy(inlineTypes []string) (*HeaderPolicy, error) {
	patterns := make([]string, 0, len(inlineTypes))
	for _, p := range inlineTypes {
		glob := slashless(p)
		if _, err := path.Match(glob, ""); err != nil {
			return nil, fmt.Errorf("new header policy: bad pattern %q: %w", p, err)
		}
		patterns = append(patterns, glob)
	}
	return &HeaderPolicy{inline: patterns}, nil
}

// Inline reports whether contentType may be rendered by the browser.
func (p *HeaderPolicy) Inline(contentType string) bool {
	name := slashless(contentType)
	for _, glob := range p.inline {
		if ok, _ := path.Match(glob, name); ok {
			return true
		}
	}
	return false
}

// Apply copies the metadata headers into h and adds the download and
// anti-sniffing headers. The security headers are set regardless of type.
func (p *HeaderPolicy) Apply(h http.Header, m Metadata) {
	for k, v := range m.Headers {
		h.Set(k, v)
	}

	if !p.Inline(m.ContentType()) {
		h.Set("Content-Disposition", "attachment")
	}

	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", ContentSecurityPolicy)
}

// slashless swaps "/" for NUL so that path.Match treats '*' like fnmatch does,
// matching across the type/subtype separator.
func slashless(s string) string {
	return strings.ReplaceAll(s, "/", "\x00")
}
