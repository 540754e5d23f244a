// Package pathrule holds the path-derivation rules shared by the publishing
// pipeline, the publisher, and CDN purging. Keeping them as pure functions in
// one place stops the artifact layout and the purge requests from drifting
// apart.
package pathrule

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// RootPath is the reserved URL path for the site front page.
const RootPath = "root"

// Normalize returns the URL path with exactly one leading slash, collapsed
// internal slashes, and no trailing slash (except for "/" itself).
func Normalize(p string) string {
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

// IsRoot reports whether a URL path names the site front page.
func IsRoot(urlPath string) bool {
	return strings.EqualFold(strings.TrimSpace(urlPath), RootPath)
}

// ArtifactPath maps an article URL path to the storage path of its static
// artifact. The reserved path "root" becomes /index.html; everything else is
// the normalized URL path.
func ArtifactPath(urlPath string) string {
	if IsRoot(urlPath) {
		return "/index.html"
	}
	return Normalize(urlPath)
}

// PagePath maps an article URL path to the public path it is served under.
// The root page is served at "/".
func PagePath(urlPath string) string {
	if IsRoot(urlPath) {
		return "/"
	}
	return Normalize(urlPath)
}

// Canonical returns the stored form of an article URL path: the front page
// as RootPath, anything else normalized and without its leading slash. The
// database keeps paths in this form so lookups never have to guess at
// slashes or casing of the root marker.
func Canonical(urlPath string) string {
	if IsRoot(urlPath) {
		return RootPath
	}
	return strings.TrimPrefix(Normalize(urlPath), "/")
}

// TocPath returns the storage path of the table-of-contents document, scoped
// under prefix when one is configured.
func TocPath(prefix string) string {
	if strings.TrimSpace(prefix) == "" {
		return "/toc.json"
	}
	return Normalize(prefix) + "/toc.json"
}

// PurgePaths derives the CDN purge targets for an article URL path. The root
// page purges "/"; any other page purges the absolute publisher URL of the
// page.
func PurgePaths(publisherURL, urlPath string) []string {
	if IsRoot(urlPath) {
		return []string{"/"}
	}
	base := strings.TrimRight(publisherURL, "/")
	return []string{base + Normalize(urlPath)}
}

// Slug derives a URL-safe slug from a title. Unicode letters are decomposed
// and stripped of combining marks so accented input still yields ASCII paths.
func Slug(title string) string {
	lowered := cases.Lower(language.Und).String(title)
	decomposed := norm.NFKD.String(lowered)

	var b strings.Builder
	hyphen := false
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		case unicode.Is(unicode.Mn, r):
			// combining marks from NFKD are dropped
		case b.Len() > 0 && !hyphen:
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
