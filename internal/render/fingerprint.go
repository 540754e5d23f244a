package render

import (
	"strings"

	"github.com/inful/mdfp"

	"github.com/skycms/skycms/internal/model"
)

// Fingerprint computes the content fingerprint for an article version.
// The fingerprint covers everything that affects the published artifact:
// metadata that ends up in the document plus the body itself. Saves that
// leave the fingerprint unchanged can skip re-rendering during rebuilds.
func Fingerprint(a *model.Article) string {
	meta := strings.Join([]string{
		a.Title,
		a.URLPath,
		string(a.ContentFormat),
		a.HeadScript,
		a.FooterScript,
		a.BannerImage,
		a.AuthorName,
	}, "\n")
	return mdfp.CalculateFingerprintFromParts(meta, a.Content)
}

// FingerprintChanged reports whether the article's stored fingerprint no
// longer matches its current content.
func FingerprintChanged(a *model.Article) bool {
	return a.Fingerprint != Fingerprint(a)
}
