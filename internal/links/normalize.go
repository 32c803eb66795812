package links

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	httpSchemeRe    = regexp.MustCompile(`(?i)^https?://`)
	leadingWWWRe    = regexp.MustCompile(`(?i)^www\.`)
	trailingSlashRe = regexp.MustCompile(`/+$`)
)

// Normalize resolves a cleaned link list against the page that contained it:
// relative paths are prefixed with the page's domain (host sans leading
// www.), every host loses a leading www., trailing slashes are removed and a
// https scheme is enforced. Non-web schemes pass through unchanged. The
// result is deduplicated and the operation is idempotent.
func Normalize(rawLinks []string, pageURL string) []string {
	base := baseDomain(pageURL)

	var out []string
	seen := make(map[string]struct{}, len(rawLinks))
	keep := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	for _, raw := range rawLinks {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}

		if schemePrefixRe.MatchString(u) && !httpSchemeRe.MatchString(u) {
			keep(u)
			continue
		}

		if isRelative(u) {
			u = completeRelative(u, base)
		}
		u = stripWWWInHost(u)
		u = trailingSlashRe.ReplaceAllString(u, "")
		u = ensureProtocol(u)
		keep(u)
	}
	return out
}

func isRelative(u string) bool {
	return strings.HasPrefix(u, "/") || strings.HasPrefix(u, "./")
}

// completeRelative turns "/a" or "./a" into "domain/a" (no scheme yet).
func completeRelative(u, base string) string {
	if base == "" {
		return u
	}
	if strings.HasPrefix(u, "/") {
		return base + u
	}
	rest := strings.TrimPrefix(u, "./")
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return base + rest
}

// baseDomain extracts the host of the page URL with a leading www. removed.
// It takes the host as it appears; no public-suffix parsing.
func baseDomain(pageURL string) string {
	raw := strings.TrimSpace(pageURL)
	if raw == "" || isRelative(raw) {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	work := raw
	if !httpSchemeRe.MatchString(work) {
		work = "https://" + work
	}
	parsed, err := url.Parse(work)
	if err != nil || parsed.Host == "" {
		cleaned := httpSchemeRe.ReplaceAllString(raw, "")
		cleaned = strings.TrimPrefix(cleaned, "//")
		cleaned = leadingWWWRe.ReplaceAllString(cleaned, "")
		if i := strings.IndexAny(cleaned, "/?#"); i >= 0 {
			cleaned = cleaned[:i]
		}
		return strings.TrimSpace(cleaned)
	}
	return leadingWWWRe.ReplaceAllString(strings.TrimSpace(parsed.Host), "")
}

// stripWWWInHost removes www. from the host portion only, preserving the
// presence or absence of a scheme. Non-http schemes are left untouched.
func stripWWWInHost(u string) string {
	if u == "" {
		return ""
	}
	if schemePrefixRe.MatchString(u) && !httpSchemeRe.MatchString(u) {
		return u
	}

	hadProto := httpSchemeRe.MatchString(u)
	work := u
	if !hadProto {
		work = "https://" + work
	}
	parsed, err := url.Parse(work)
	if err != nil || parsed.Host == "" {
		noProto := httpSchemeRe.ReplaceAllString(u, "")
		noProto = strings.TrimPrefix(noProto, "//")
		return leadingWWWRe.ReplaceAllString(noProto, "")
	}

	parsed.Host = leadingWWWRe.ReplaceAllString(parsed.Host, "")
	if hadProto {
		return parsed.String()
	}

	rebuilt := parsed.Host + parsed.Path
	if parsed.RawQuery != "" {
		rebuilt += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		rebuilt += "#" + parsed.Fragment
	}
	return rebuilt
}

func ensureProtocol(u string) string {
	if httpSchemeRe.MatchString(u) {
		return u
	}
	return "https://" + u
}
