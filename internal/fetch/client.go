// Package fetch implements the resilient HTTP layer of the crawl pipeline:
// a streaming GET client with per-host pacing, retries and size caps, plus
// the body decoder that turns raw responses into HTML text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andesdata/webpresence/internal/metrics"
	"github.com/andesdata/webpresence/internal/ratelimit"
)

// Settings groups every tunable of the fetch layer. One instance may be
// shared read-only across all fetches.
type Settings struct {
	Timeout                  time.Duration
	MaxRetries               int
	BackoffBase              time.Duration
	BackoffMax               time.Duration
	FollowRedirects          bool
	MaxResponseBytes         int64
	RequestsPerHostPerSecond float64
	UserAgent                string
}

// DefaultSettings mirrors the defaults the pipeline was tuned with.
func DefaultSettings() Settings {
	return Settings{
		Timeout:                  25 * time.Second,
		MaxRetries:               3,
		BackoffBase:              800 * time.Millisecond,
		BackoffMax:               8 * time.Second,
		FollowRedirects:          true,
		MaxResponseBytes:         15_000_000,
		RequestsPerHostPerSecond: 1.0,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/123.0.0.0 Safari/537.36",
	}
}

// Result is the raw outcome of one fetch. The body may still be compressed;
// header keys are lower-cased. Immutable once returned.
type Result struct {
	RequestedURL string
	FinalURL     string
	StatusCode   int
	Headers      map[string]string
	Body         []byte
}

// Renderer loads a page in a headless browser and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, pageURL, referer string) (string, error)
}

// Options tunes a single Fetch call.
type Options struct {
	Referer string
	Render  bool
}

// Client issues one HTTP GET per Fetch call. Safe for concurrent use.
type Client struct {
	settings Settings
	limiter  *ratelimit.Limiter
	renderer Renderer
	http     *http.Client
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewClient builds a Client. The limiter is required and must be scoped by
// the caller (one per crawl); renderer and metrics may be nil.
func NewClient(settings Settings, limiter *ratelimit.Limiter, renderer Renderer, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	client := &http.Client{Transport: transport}
	if !settings.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &Client{
		settings: settings,
		limiter:  limiter,
		renderer: renderer,
		http:     client,
		logger:   logger,
		metrics:  m,
	}
}

// NormalizeRequestURL prepares a raw URL for fetching: trims whitespace,
// expands protocol-relative forms, and defaults the scheme to https.
func NormalizeRequestURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" {
		return "https://" + u
	}
	return u
}

// Fetch retrieves one URL. In render mode the body is the rendered DOM as
// UTF-8; otherwise it is the raw, possibly compressed, response bytes.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) (Result, error) {
	normalized := NormalizeRequestURL(rawURL)
	if normalized == "" {
		return Result{}, &Error{Kind: KindTerminal, URL: rawURL, Err: errors.New("empty URL")}
	}

	if opts.Render {
		return c.fetchRendered(ctx, normalized, opts.Referer)
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return Result{}, &Error{Kind: KindTerminal, URL: normalized, Err: fmt.Errorf("parse url: %w", err)}
	}
	host := strings.ToLower(parsed.Host)

	// MaxRetries counts total attempts; zero still gets one try.
	maxAttempts := c.settings.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return Result{}, &Error{Kind: KindTerminal, URL: normalized, Err: err}
		}

		start := time.Now()
		result, err := c.attempt(ctx, normalized, opts.Referer)
		if err == nil {
			c.metrics.ObserveFetchAttempt(host, "ok", time.Since(start))
			return result, nil
		}
		c.metrics.ObserveFetchAttempt(host, "error", time.Since(start))
		lastErr = err

		var fe *Error
		if errors.As(err, &fe) && fe.Kind == KindTerminal {
			return Result{}, err
		}
		if attempt >= maxAttempts {
			break
		}

		delay := backoff(c.settings.BackoffBase, c.settings.BackoffMax, attempt)
		c.logger.Debug("fetch retry",
			zap.String("url", normalized),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		c.metrics.IncFetchRetry()
		if err := sleepCtx(ctx, delay); err != nil {
			return Result{}, &Error{Kind: KindTerminal, URL: normalized, Err: err}
		}
	}

	return Result{}, &Error{
		Kind: KindTerminal,
		URL:  normalized,
		Err:  fmt.Errorf("retries exhausted: %w", lastErr),
	}
}

func (c *Client) attempt(ctx context.Context, pageURL, referer string) (Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Result{}, &Error{Kind: KindTerminal, URL: pageURL, Err: fmt.Errorf("build request: %w", err)}
	}
	c.applyHeaders(req, referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: KindTransient, URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if retryableStatus(resp.StatusCode) {
		return Result{}, &Error{Kind: KindTransient, URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return Result{}, &Error{Kind: KindTerminal, URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if ct := resp.Header.Get("Content-Type"); !looksLikeHTML(ct) {
		return Result{}, &Error{Kind: KindTerminal, URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("content-type not HTML: %s", ct)}
	}

	// Truncate at the cap instead of failing; a partial body is still usable.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.settings.MaxResponseBytes))
	if err != nil {
		return Result{}, &Error{Kind: KindTransient, URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = NormalizeRequestURL(resp.Request.URL.String())
	}

	return Result{
		RequestedURL: pageURL,
		FinalURL:     finalURL,
		StatusCode:   resp.StatusCode,
		Headers:      headers,
		Body:         body,
	}, nil
}

func (c *Client) fetchRendered(ctx context.Context, pageURL, referer string) (Result, error) {
	if c.renderer == nil {
		return Result{}, &Error{Kind: KindRender, URL: pageURL, Err: errors.New("renderer not configured")}
	}
	html, err := c.renderer.Render(ctx, pageURL, referer)
	if err != nil {
		return Result{}, &Error{Kind: KindRender, URL: pageURL, Err: err}
	}
	if strings.TrimSpace(html) == "" {
		return Result{}, &Error{Kind: KindRender, URL: pageURL, Err: errors.New("empty HTML after rendering")}
	}
	return Result{
		RequestedURL: pageURL,
		FinalURL:     pageURL,
		StatusCode:   http.StatusOK,
		Headers:      map[string]string{"content-type": "text/html; charset=utf-8"},
		Body:         []byte(html),
	}, nil
}

// applyHeaders sets browser-like request headers. Setting Accept-Encoding
// explicitly disables the transport's transparent gzip, so the body arrives
// exactly as sent over the wire and the decoder owns decompression.
func (c *Client) applyHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", c.settings.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-CL,es;q=0.9,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("DNT", "1")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

func looksLikeHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// backoff computes min(base * 2^(attempt-1), max).
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
