// Package links discovers, filters and canonicalizes navigable references
// found in HTML fragments.
package links

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Attributes that carry navigable references on any element.
var urlAttrs = []string{"href", "src", "action", "poster", "data", "formaction"}

// url(...) references inside inline styles and <style> blocks.
var cssURLRe = regexp.MustCompile(`(?is)url\(\s*["']?([^"')]+?)["']?\s*\)`)

// Meta refresh target: content="0; url=./path".
var metaRefreshRe = regexp.MustCompile(`(?i)url\s*=\s*([^\s"';>]+)`)

var badSchemes = []string{"mailto:", "tel:", "sms:", "javascript:", "data:", "blob:", "about:"}

// Extract scans a fragment for every candidate link string. Relative
// references are preserved as-is; no domain filtering or resolution happens
// here.
func Extract(fragment string) []string {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var candidates []string
	add := func(raw string) {
		v := cleanCandidate(raw)
		if isNavigable(v) {
			candidates = append(candidates, v)
		}
	}

	doc.Find("*").Each(func(_ int, el *goquery.Selection) {
		for _, attr := range urlAttrs {
			if v, ok := el.Attr(attr); ok {
				add(v)
			}
		}

		if srcset, ok := el.Attr("srcset"); ok {
			for _, entry := range strings.Split(srcset, ",") {
				entry = strings.TrimSpace(entry)
				if entry == "" {
					continue
				}
				add(strings.Fields(entry)[0])
			}
		}

		if style, ok := el.Attr("style"); ok {
			for _, m := range cssURLRe.FindAllStringSubmatch(style, -1) {
				add(m[1])
			}
		}
	})

	doc.Find("style").Each(func(_ int, el *goquery.Selection) {
		for _, m := range cssURLRe.FindAllStringSubmatch(el.Text(), -1) {
			add(m[1])
		}
	})

	doc.Find("meta").Each(func(_ int, el *goquery.Selection) {
		equiv, _ := el.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return
		}
		content, ok := el.Attr("content")
		if !ok {
			return
		}
		if m := metaRefreshRe.FindStringSubmatch(content); m != nil {
			add(m[1])
		}
	})

	return dedupe(candidates)
}

// cleanCandidate trims and entity-unescapes a raw attribute value.
func cleanCandidate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s))
}

// isNavigable rejects empty values, bare fragments and non-web schemes.
func isNavigable(candidate string) bool {
	if candidate == "" {
		return false
	}
	if strings.HasPrefix(candidate, "#") {
		return false
	}
	low := strings.ToLower(candidate)
	for _, scheme := range badSchemes {
		if strings.HasPrefix(low, scheme) {
			return false
		}
	}
	return true
}

// dedupe removes duplicates preserving first-occurrence order.
func dedupe(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
