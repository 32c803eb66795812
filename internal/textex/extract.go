// Package textex extracts the user-visible text of an HTML fragment.
package textex

import (
	"strings"

	"golang.org/x/net/html"
)

// Tags that never contribute user-visible text; their subtrees are skipped
// entirely.
var dropTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"svg":      {},
	"canvas":   {},
	"template": {},
	"iframe":   {},
	"object":   {},
	"embed":    {},
	"meta":     {},
	"link":     {},
	"head":     {},
}

// Extract returns the distinct visible text chunks of a fragment in document
// order. Text under hidden elements (hidden attribute, aria-hidden="true",
// or an inline display:none / visibility:hidden) is discarded, whitespace is
// collapsed, and exact duplicates keep only their first occurrence.
func Extract(fragment string) []string {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})

	// Depth-first walk carrying the hidden state down, so ancestors are
	// never re-inspected per text node.
	var walk func(n *html.Node, hidden bool)
	walk = func(n *html.Node, hidden bool) {
		if n.Type == html.ElementNode {
			if _, drop := dropTags[n.Data]; drop {
				return
			}
			hidden = hidden || isHidden(n)
		}
		if n.Type == html.TextNode && !hidden {
			text := normalizeWhitespace(n.Data)
			if text != "" {
				if _, dup := seen[text]; !dup {
					seen[text] = struct{}{}
					out = append(out, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, hidden)
		}
	}
	walk(doc, false)
	return out
}

func isHidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(attr.Val), "true") {
				return true
			}
		case "style":
			style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
