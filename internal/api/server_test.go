package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andesdata/webpresence/internal/crawl"
	"github.com/andesdata/webpresence/internal/page"
	"github.com/andesdata/webpresence/internal/storage"
)

type stubRunner struct {
	lastURL      string
	lastMaxPages int
	result       *crawl.Result
	err          error
}

func (r *stubRunner) DeepCrawl(_ context.Context, startURL string, maxPages int) (*crawl.Result, error) {
	r.lastURL = startURL
	r.lastMaxPages = maxPages
	return r.result, r.err
}

type stubStore struct {
	lastSlug string
	saved    *crawl.Result
	id       string
	byID     map[string]*crawl.Result
}

func (s *stubStore) UpsertCompanyCrawl(_ context.Context, slug string, res *crawl.Result) (string, error) {
	s.lastSlug = slug
	s.saved = res
	return s.id, nil
}

func (s *stubStore) GetCrawl(_ context.Context, id string) (*crawl.Result, error) {
	res, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("crawl %s: %w", id, storage.ErrNotFound)
	}
	return res, nil
}

func sampleResult() *crawl.Result {
	return &crawl.Result{
		StartURL:         "https://empresa.cl",
		RootDomain:       "empresa.cl",
		PagesScraped:     1,
		AllInternalLinks: []string{},
		Pages: map[string]page.Record{
			"https://empresa.cl": {Texts: page.SectionList{Main: []string{"Hola"}}},
		},
	}
}

func newTestServer(runner CrawlRunner, store ResultStore) *Server {
	return NewServer(runner, store, nil, nil, Limits{MaxPagesDefault: 30, MaxPagesLimit: 100})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRunCrawlStoresResult(t *testing.T) {
	runner := &stubRunner{result: sampleResult()}
	store := &stubStore{id: "crawl-123"}
	srv := newTestServer(runner, store)

	body := strings.NewReader(`{"url": "https://empresa.cl", "slug": "empresa"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crawls", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://empresa.cl", runner.lastURL)
	assert.Equal(t, 30, runner.lastMaxPages)
	assert.Equal(t, "empresa", store.lastSlug)

	var resp struct {
		CrawlID string       `json:"crawlId"`
		Result  crawl.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "crawl-123", resp.CrawlID)
	assert.Equal(t, "empresa.cl", resp.Result.RootDomain)
	assert.Equal(t, 1, resp.Result.PagesScraped)
}

func TestRunCrawlDefaultsSlugToRootDomain(t *testing.T) {
	store := &stubStore{id: "crawl-1"}
	srv := newTestServer(&stubRunner{result: sampleResult()}, store)

	body := strings.NewReader(`{"url": "https://empresa.cl"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crawls", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "empresa.cl", store.lastSlug)
}

func TestRunCrawlClampsMaxPages(t *testing.T) {
	runner := &stubRunner{result: sampleResult()}
	srv := newTestServer(runner, nil)

	body := strings.NewReader(`{"url": "https://empresa.cl", "maxPages": 9999}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crawls", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, runner.lastMaxPages)
}

func TestRunCrawlWithoutStore(t *testing.T) {
	srv := newTestServer(&stubRunner{result: sampleResult()}, nil)

	body := strings.NewReader(`{"url": "https://empresa.cl"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crawls", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotContains(t, resp, "crawlId")
	assert.Contains(t, resp, "result")
}

func TestRunCrawlRejectsBadRequests(t *testing.T) {
	srv := newTestServer(&stubRunner{result: sampleResult()}, nil)

	cases := map[string]string{
		"invalid JSON": `{"url": `,
		"missing url":  `{"maxPages": 5}`,
		"blank url":    `{"url": "   "}`,
	}
	for name, body := range cases {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crawls", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestGetCrawl(t *testing.T) {
	store := &stubStore{byID: map[string]*crawl.Result{"crawl-1": sampleResult()}}
	srv := newTestServer(&stubRunner{}, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crawls/crawl-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		CrawlID string       `json:"crawlId"`
		Result  crawl.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "crawl-1", resp.CrawlID)
	assert.Equal(t, "https://empresa.cl", resp.Result.StartURL)
}

func TestGetCrawlNotFound(t *testing.T) {
	srv := newTestServer(&stubRunner{}, &stubStore{byID: map[string]*crawl.Result{}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crawls/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCrawlWithoutStore(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crawls/any", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
