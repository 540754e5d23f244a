package render

import (
	"html/template"
	"strings"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

// pageShell is the document wrapper applied to every published page.
// Layout fields and article scripts are trusted HTML authored in the
// editor; only the title is escaped.
const pageShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{.Head}}{{.HeadScript}}</head>
<body>
{{.Header}}<main>
{{.Content}}</main>
{{.Footer}}{{.FooterScript}}</body>
</html>
`

var pageTemplate = template.Must(template.New("page").Parse(pageShell))

type pageData struct {
	Title        string
	Head         template.HTML
	HeadScript   template.HTML
	Header       template.HTML
	Content      template.HTML
	Footer       template.HTML
	FooterScript template.HTML
}

// Page composes the full HTML document for a published page: the
// page's rendered body wrapped in the tenant layout plus the page's
// own head and footer scripts.
func Page(layout *model.Layout, page *model.PublishedPage) (string, error) {
	if layout == nil {
		layout = Fallback()
	}

	data := pageData{
		Title:        page.Title,
		Head:         block(layout.Head),
		HeadScript:   block(page.HeadScript),
		Header:       block(layout.HeaderHTML),
		Content:      block(page.Content),
		Footer:       block(layout.FooterHTML),
		FooterScript: block(page.FooterScript),
	}

	var sb strings.Builder
	if err := pageTemplate.Execute(&sb, data); err != nil {
		return "", errors.RenderError("failed to compose page").
			WithCause(err).
			WithContext("url_path", page.URLPath).
			Build()
	}
	return sb.String(), nil
}

// block normalizes an optional HTML fragment so the shell stays tidy:
// empty fragments vanish, non-empty ones end with a newline.
func block(fragment string) template.HTML {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	return template.HTML(fragment + "\n")
}
