// Package htmlseg splits an HTML document into its structural zones:
// head, header, main and footer.
package htmlseg

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Sections holds the raw HTML fragment of each page zone. A zone absent from
// the document is an empty string.
type Sections struct {
	Head   string
	Header string
	Main   string
	Footer string
}

var headerHints = []string{"header", "site-header", "topbar", "navbar", "nav-bar"}

var footerHints = []string{"footer", "site-footer", "page-footer"}

// Split segments a full HTML document. The head is the literal <head>
// subtree. Header and footer prefer semantic tags, then ARIA roles, then
// id/class hints scanned in document order. Main is the literal <main>
// subtree when present; otherwise the body with the discovered header and
// footer excised from a clone, so the original fragments stay intact.
func Split(html string) Sections {
	if strings.TrimSpace(html) == "" {
		return Sections{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Sections{}
	}

	body := doc.Find("body").First()

	return Sections{
		Head:   headHTML(doc),
		Header: outerHTML(findZone(body, "header", "banner", headerHints)),
		Main:   mainHTML(body),
		Footer: outerHTML(findZone(body, "footer", "contentinfo", footerHints)),
	}
}

// headHTML returns the <head> subtree, or "" when the source document
// carried no head content (the parser synthesizes an empty one regardless).
func headHTML(doc *goquery.Document) string {
	head := doc.Find("head").First()
	if head.Length() == 0 {
		return ""
	}
	if head.Children().Length() == 0 && strings.TrimSpace(head.Text()) == "" {
		return ""
	}
	return outerHTML(head)
}

// findZone locates a header- or footer-like element inside body: semantic
// tag first, then ARIA role, then the first element whose id or class
// contains a hint token.
func findZone(body *goquery.Selection, tag, role string, hints []string) *goquery.Selection {
	if sel := body.Find(tag).First(); sel.Length() > 0 {
		return sel
	}
	if sel := body.Find("[role=" + role + "]").First(); sel.Length() > 0 {
		return sel
	}

	var match *goquery.Selection
	body.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		id, _ := el.Attr("id")
		class, _ := el.Attr("class")
		haystack := strings.ToLower(id + " " + class)
		for _, hint := range hints {
			if strings.Contains(haystack, hint) {
				match = el
				return false
			}
		}
		return true
	})
	return match
}

func mainHTML(body *goquery.Selection) string {
	if main := body.Find("main").First(); main.Length() > 0 {
		return outerHTML(main)
	}

	clone := body.Clone()
	if header := findZone(clone, "header", "banner", headerHints); header != nil && header.Length() > 0 {
		header.Remove()
	}
	if footer := findZone(clone, "footer", "contentinfo", footerHints); footer != nil && footer.Length() > 0 {
		footer.Remove()
	}

	inner, err := clone.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(inner)
}

func outerHTML(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	out, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return out
}
