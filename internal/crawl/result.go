package crawl

import (
	"github.com/andesdata/webpresence/internal/page"
)

// Result is the aggregate outcome of one deep crawl. It is always populated,
// even when every page in it failed; per-page failures live inside the
// corresponding page.Record.
type Result struct {
	// StartURL is the normalized seed the crawl began from.
	StartURL string `json:"startUrl"`

	// RootDomain is the registrable domain (last two host labels, www
	// stripped) the crawl was confined to.
	RootDomain string `json:"rootDomain"`

	// PagesScraped counts every page a fetch was attempted for, successful
	// or not.
	PagesScraped int `json:"pagesScraped"`

	// AllInternalLinks is the union of same-domain links discovered across
	// all pages, deduplicated and sorted.
	AllInternalLinks []string `json:"allInternalLinks"`

	// Pages maps each visited URL to its extracted record.
	Pages map[string]page.Record `json:"pages"`
}
