// Package render turns stored article content into publishable HTML:
// markdown conversion, layout composition, summary extraction, and
// content fingerprinting.
package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

// Body converts stored article content to an HTML fragment. Markdown
// bodies go through goldmark; HTML bodies pass through unchanged.
// Raw HTML inside markdown is preserved, since article bodies are
// editor-authored and may embed widgets or media markup.
func Body(format model.ContentFormat, content string) (string, error) {
	switch format {
	case model.FormatHTML:
		return content, nil
	case model.FormatMarkdown:
		md := goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
		var buf bytes.Buffer
		if err := md.Convert([]byte(content), &buf); err != nil {
			return "", errors.RenderError("failed to convert markdown").WithCause(err).Build()
		}
		return buf.String(), nil
	default:
		return "", errors.RenderError("unknown content format").WithContext("format", string(format)).Build()
	}
}
