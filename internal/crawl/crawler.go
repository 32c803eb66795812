package crawl

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andesdata/webpresence/internal/fetch"
	"github.com/andesdata/webpresence/internal/metrics"
	"github.com/andesdata/webpresence/internal/page"
)

// PageFetcher produces the record for a single page. *page.Fetcher is the
// production implementation; tests substitute a canned one.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL, referer string) page.Record
}

// Crawler walks a site breadth-first from a seed URL, visiting only pages on
// the seed's root domain and stopping at a page budget.
type Crawler struct {
	pages   PageFetcher
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(pages PageFetcher, logger *zap.Logger, m *metrics.Metrics) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{pages: pages, logger: logger, metrics: m}
}

// DeepCrawl runs the crawl to completion or until maxPages pages have been
// attempted. The returned Result is valid even on error; when the context is
// canceled mid-crawl it holds the pages finished so far alongside ctx.Err().
func (c *Crawler) DeepCrawl(ctx context.Context, startURL string, maxPages int) (*Result, error) {
	if strings.TrimSpace(startURL) == "" {
		return nil, fmt.Errorf("crawl: empty start URL")
	}
	if maxPages < 1 {
		return nil, fmt.Errorf("crawl: maxPages must be positive, got %d", maxPages)
	}

	start := normalizeForCrawl(fetch.NormalizeRequestURL(startURL))
	root := rootDomain(start)

	res := &Result{
		StartURL:   start,
		RootDomain: root,
		Pages:      make(map[string]page.Record),
	}
	internal := make(map[string]struct{})

	began := time.Now()
	front := newFrontier()
	front.push(start, "")

	c.logger.Info("crawl started",
		zap.String("startUrl", start),
		zap.String("rootDomain", root),
		zap.Int("maxPages", maxPages))

	for front.visitedCount() < maxPages {
		next, ok := front.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			c.finish(res, internal, began)
			return res, err
		}
		if !front.markIfNew(next.url) {
			continue
		}

		rec := c.pages.Fetch(ctx, next.url, next.referer)
		res.Pages[next.url] = rec
		if rec.Error != nil {
			c.metrics.IncPageScraped("error")
			c.logger.Warn("page failed",
				zap.String("url", next.url),
				zap.String("errorType", rec.Error.Kind),
				zap.String("error", rec.Error.Message))
			continue
		}
		c.metrics.IncPageScraped("ok")

		for _, link := range flattenLinks(rec.Links) {
			if !sameRoot(link, root) {
				continue
			}
			// Record the crawl-normalized form so every entry matches a
			// frontier target (and thus a candidate pages key).
			target := normalizeForCrawl(link)
			internal[target] = struct{}{}
			if !front.isVisited(target) {
				front.push(target, next.url)
			}
		}

		c.logger.Debug("page scraped",
			zap.String("url", next.url),
			zap.Int("pending", front.pending()),
			zap.Int("visited", front.visitedCount()))
	}

	c.finish(res, internal, began)
	c.logger.Info("crawl finished",
		zap.String("rootDomain", root),
		zap.Int("pagesScraped", res.PagesScraped),
		zap.Int("internalLinks", len(res.AllInternalLinks)),
		zap.Duration("elapsed", time.Since(began)))
	return res, nil
}

func (c *Crawler) finish(res *Result, internal map[string]struct{}, began time.Time) {
	res.PagesScraped = len(res.Pages)
	res.AllInternalLinks = make([]string, 0, len(internal))
	for link := range internal {
		res.AllInternalLinks = append(res.AllInternalLinks, link)
	}
	sort.Strings(res.AllInternalLinks)
	c.metrics.ObserveCrawl(time.Since(began))
}

// flattenLinks joins the per-zone link lists in document order.
func flattenLinks(links page.SectionList) []string {
	out := make([]string, 0, len(links.Head)+len(links.Header)+len(links.Main)+len(links.Footer))
	out = append(out, links.Head...)
	out = append(out, links.Header...)
	out = append(out, links.Main...)
	out = append(out, links.Footer...)
	return out
}

// normalizeForCrawl canonicalizes a URL for frontier deduplication: the
// fragment and a single trailing slash are dropped so "https://x.com/a",
// "https://x.com/a/" and "https://x.com/a#top" count as one page.
func normalizeForCrawl(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if i := strings.Index(u, "#"); i >= 0 {
		u = u[:i]
	}
	if len(u) > 1 && strings.HasSuffix(u, "/") && !strings.HasSuffix(u, "//") {
		u = u[:len(u)-1]
	}
	return u
}

// rootDomain reduces a URL's host to its last two labels with any leading
// www stripped, e.g. "https://blog.empresa.cl/x" -> "empresa.cl".
func rootDomain(rawURL string) string {
	host := hostOf(rawURL)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// sameRoot reports whether the URL's host is the root domain itself or one
// of its subdomains. Hosts that merely end in the root's text, like
// "notempresa.cl" against "empresa.cl", do not match.
func sameRoot(rawURL, root string) bool {
	if root == "" {
		return false
	}
	host := hostOf(rawURL)
	return host == root || strings.HasSuffix(host, "."+root)
}

func hostOf(rawURL string) string {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	if host == "" {
		// Schemeless input: take everything up to the first slash.
		rest := strings.TrimSpace(rawURL)
		rest = strings.TrimPrefix(rest, "//")
		if i := strings.IndexAny(rest, "/?"); i >= 0 {
			rest = rest[:i]
		}
		host = rest
	}
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}
