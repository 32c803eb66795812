package links

import (
	"regexp"
	"strings"
)

// Static resources that are rarely useful navigation targets. Extensions are
// checked on the path with query and fragment stripped.
var staticExtRe = regexp.MustCompile(`(?i)\.(css|js|mjs|jpg|jpeg|png|gif|svg|webp|ico|bmp|tiff|woff|woff2|ttf|otf|eot|map|mp4|webm|ogv|ogg|mp3|wav|m4a|avif|pdf|zip|rar|7z)$`)

var schemePrefixRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+\-.]*:`)

var analyticsDomainHints = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"googlesyndication.com",
	"hotjar.com",
	"segment.io",
	"fullstory.com",
	"mixpanel.com",
	"facebook.com/tr",
	"connect.facebook.net",
	"stats.g.doubleclick.net",
	"framer.com",
	"framer.app",
	"fonts.gstatic.com",
}

var assetPathHints = []string{
	"/wp-content/",
	"/static/",
	"/assets/",
	"/images/",
	"/image/",
	"/img/",
	"/fonts/",
	"/media/",
	"/scripts/",
	"/script/",
	"/js/",
	"/css/",
}

var frameworkPathHints = []string{
	"/_next/",
	"%2f_next%2f",
}

var manifestHints = []string{
	"manifest",
	".webmanifest",
	"/api/manifest-gen",
}

// Clean filters candidates down to navigational links: utility and tracking
// references are dropped, and query-string variants collapse onto their
// query-less base when that base is present. Relative references pass
// through untouched.
func Clean(candidates []string) []string {
	var normalized []string
	for _, raw := range candidates {
		if u := keepRelativeForm(raw); u != "" {
			normalized = append(normalized, u)
		}
	}

	// Bases of the query-less entries, used to drop ?utm variants.
	baseSet := make(map[string]struct{})
	for _, u := range normalized {
		if base, query := splitBaseQuery(u); query == "" {
			baseSet[baseKey(base)] = struct{}{}
		}
	}

	var kept []string
	for _, u := range normalized {
		if isWebUtility(u) {
			continue
		}
		if isFilteredVariant(u, baseSet) {
			continue
		}
		if isAbsoluteWebURL(u) || !schemePrefixRe.MatchString(u) {
			kept = append(kept, u)
		}
	}
	return dedupe(kept)
}

// keepRelativeForm normalizes a candidate while preserving relative paths.
// Returns "" for fragments and non-navigational schemes.
func keepRelativeForm(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "#") {
		return ""
	}
	low := strings.ToLower(s)
	for _, scheme := range badSchemes {
		if strings.HasPrefix(low, scheme) {
			return ""
		}
	}
	if strings.HasPrefix(s, "//") {
		return "https:" + s
	}
	if strings.HasPrefix(low, "www.") {
		return "https://" + s
	}
	return s
}

// isWebUtility reports whether a link is a non-navigational resource:
// placeholders, inline images, trackers, static assets, framework internals
// or manifests. Accepts both absolute URLs and relative paths.
func isWebUtility(u string) bool {
	if u == "" {
		return true
	}
	low := strings.ToLower(u)

	switch u {
	case "/", "./", "#":
		return true
	}
	if low == "[object object]" {
		return true
	}
	if strings.HasPrefix(low, "data:image") {
		return true
	}
	if strings.Contains(low, "lh3.googleusercontent.com") {
		return true
	}
	if strings.Contains(low, "google.com/maps") &&
		(strings.Contains(low, "/contrib/") || strings.Contains(low, "/reviews")) {
		return true
	}

	for _, hint := range frameworkPathHints {
		if strings.Contains(low, hint) {
			return true
		}
	}
	for _, hint := range manifestHints {
		if strings.Contains(low, hint) {
			return true
		}
	}

	base, _ := splitBaseQuery(low)
	if staticExtRe.MatchString(base) {
		return true
	}

	for _, hint := range analyticsDomainHints {
		if strings.Contains(low, hint) {
			return true
		}
	}
	for _, hint := range assetPathHints {
		if strings.Contains(low, hint) {
			return true
		}
	}
	return false
}

// isFilteredVariant drops query variants whose query-less base already
// exists: /about?utm=x goes when /about is present.
func isFilteredVariant(u string, baseSet map[string]struct{}) bool {
	base, query := splitBaseQuery(u)
	if query == "" {
		return false
	}
	_, ok := baseSet[baseKey(base)]
	return ok
}

// baseKey folds the two relative spellings of one path ("./about" and
// "/about") onto a single comparison key.
func baseKey(base string) string {
	if strings.HasPrefix(base, "./") {
		return base[1:]
	}
	return base
}

// splitBaseQuery strips the fragment and splits off the query string.
func splitBaseQuery(u string) (base, query string) {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i], u[i+1:]
	}
	return u, ""
}

func isAbsoluteWebURL(u string) bool {
	low := strings.ToLower(u)
	if !strings.HasPrefix(low, "http://") && !strings.HasPrefix(low, "https://") {
		return false
	}
	rest := u[strings.Index(u, "//")+2:]
	return rest != "" && rest[0] != '/'
}
