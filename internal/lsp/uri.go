package lsp

import (
	"net/url"
	"path"
)

// ManifestName is the only filename this server diagnoses.
const ManifestName = "Cargo.toml"

// IsManifest reports whether a document URI points at a Cargo.toml.
// Every lifecycle notification for any other URI is ignored.
func IsManifest(uri string) bool {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false
	}
	p := parsed.Path
	if parsed.Scheme == "" {
		p = uri
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return path.Base(p) == ManifestName
}
