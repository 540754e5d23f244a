package render

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// DefaultSummaryLength bounds auto-extracted summaries.
const DefaultSummaryLength = 200

// Summary returns the article summary for listings and the table of
// contents. An author-provided summary wins; otherwise it is extracted
// from the rendered body text.
func Summary(authored, bodyHTML string) string {
	if s := strings.TrimSpace(authored); s != "" {
		return s
	}
	return ExtractSummary(bodyHTML, DefaultSummaryLength)
}

// ExtractSummary pulls readable text out of an HTML fragment and
// truncates it to at most maxLen runes, cutting at a word boundary.
// Script and style contents are skipped. Parse failures yield "".
func ExtractSummary(fragment string, maxLen int) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(doc)

	text := collapseWhitespace(sb.String())
	return truncateAtWord(text, maxLen)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateAtWord cuts s to at most maxLen runes, backing up to the last
// space so words stay whole, and appends an ellipsis when truncated.
func truncateAtWord(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !unicode.IsSpace(runes[cut-1]) {
		cut--
	}
	if cut == 0 {
		cut = maxLen
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}
