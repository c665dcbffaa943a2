// Package uri converts between editor document URIs and filesystem paths.
package uri

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const scheme = "file://"

// Decode converts a file URI into a slash-separated filesystem path. Inputs
// that are not file URIs are returned unchanged.
func Decode(uri string) string {
	if !strings.HasPrefix(uri, scheme) {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, scheme)
	}
	p := u.Path
	// file:///c:/x
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	if u.Host != "" && u.Host != "localhost" {
		p = "//" + u.Host + p
	}
	return p
}

// Encode converts a filesystem path into a file URI.
func Encode(p string) string {
	p = filepath.ToSlash(p)
	if len(p) >= 2 && p[1] == ':' {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	if !strings.HasPrefix(p, "/") {
		u.Path = "/" + p
	}
	return u.String()
}

// Normalize cleans a slash-separated path lexically.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(filepath.ToSlash(p))
}

// Canonical round-trips a URI through Decode and Encode so equal files compare
// equal regardless of escaping.
func Canonical(uri string) string {
	if !strings.HasPrefix(uri, scheme) {
		return uri
	}
	return Encode(Normalize(Decode(uri)))
}

// Dir returns the URI of the directory containing uri.
func Dir(uri string) string {
	return Encode(path.Dir(Decode(uri)))
}

// Base returns the last element of the path of uri.
func Base(uri string) string {
	return path.Base(Decode(uri))
}
