package filing

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements whose text never belongs in the filing body.
var skippedElements = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"header": true,
	"footer": true,
	"aside":  true,
}

// ExtractText reduces an HTML document to plain text: skipped elements
// are dropped, remaining text nodes are joined with single spaces and
// runs of whitespace collapsed. Plain-text input passes through with
// the same whitespace normalization. Pure function, no I/O.
func ExtractText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		// html.Parse is lenient; treat a hard failure as plain text
		return collapseWhitespace(content)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return collapseWhitespace(b.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
