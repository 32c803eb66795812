// Package page builds one extraction record per fetched URL, composing the
// fetch, segmentation, link and text pipelines.
package page

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/andesdata/webpresence/internal/fetch"
	"github.com/andesdata/webpresence/internal/htmlseg"
	"github.com/andesdata/webpresence/internal/links"
	"github.com/andesdata/webpresence/internal/textex"
)

// SectionList holds one string list per page zone.
type SectionList struct {
	Head   []string `json:"head"`
	Header []string `json:"header"`
	Main   []string `json:"main"`
	Footer []string `json:"footer"`
}

// Error captures a per-page failure in serializable form.
type Error struct {
	Kind    string `json:"type"`
	Message string `json:"message"`
}

// Record is the extraction result for one URL. It is created once per
// visited page and never mutated afterwards.
type Record struct {
	URL   string      `json:"-"`
	Links SectionList `json:"links"`
	Texts SectionList `json:"texts"`
	Error *Error      `json:"error,omitempty"`
}

// Fetcher produces Records. Safe for concurrent use if its client is.
type Fetcher struct {
	client *fetch.Client
	logger *zap.Logger
	render bool
}

// NewFetcher builds a page fetcher. When render is true every page is loaded
// through the client's headless rendering path.
func NewFetcher(client *fetch.Client, logger *zap.Logger, render bool) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, logger: logger, render: render}
}

// Fetch retrieves and extracts one page. Fetch and decode failures are
// captured into the record's Error field, never propagated, so a single
// unreachable page cannot abort a crawl.
func (f *Fetcher) Fetch(ctx context.Context, pageURL, referer string) Record {
	res, err := f.client.Fetch(ctx, pageURL, fetch.Options{Referer: referer, Render: f.render})
	if err != nil {
		f.logger.Warn("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return Record{
			URL:   pageURL,
			Links: emptySections(),
			Texts: emptySections(),
			Error: toPageError(err),
		}
	}

	sections := htmlseg.Split(fetch.DecodeBody(res))

	return Record{
		URL: pageURL,
		Links: SectionList{
			Head:   processLinks(sections.Head, pageURL),
			Header: processLinks(sections.Header, pageURL),
			Main:   processLinks(sections.Main, pageURL),
			Footer: processLinks(sections.Footer, pageURL),
		},
		Texts: SectionList{
			Head:   nonNil(textex.Extract(sections.Head)),
			Header: nonNil(textex.Extract(sections.Header)),
			Main:   nonNil(textex.Extract(sections.Main)),
			Footer: nonNil(textex.Extract(sections.Footer)),
		},
	}
}

// processLinks runs the discovery pipeline on one fragment: extract, clean,
// then normalize against the owning page.
func processLinks(fragment, pageURL string) []string {
	return nonNil(links.Normalize(links.Clean(links.Extract(fragment)), pageURL))
}

func toPageError(err error) *Error {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return &Error{Kind: string(fe.Kind), Message: fe.Error()}
	}
	return &Error{Kind: "error", Message: err.Error()}
}

func emptySections() SectionList {
	return SectionList{
		Head:   []string{},
		Header: []string{},
		Main:   []string{},
		Footer: []string{},
	}
}

// nonNil keeps the JSON shape stable: sections serialize as arrays, never
// null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
