package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andesdata/webpresence/internal/crawl"
	"github.com/andesdata/webpresence/internal/page"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult() *crawl.Result {
	return &crawl.Result{
		StartURL:     "https://empresa.cl",
		RootDomain:   "empresa.cl",
		PagesScraped: 2,
		AllInternalLinks: []string{
			"https://empresa.cl/contacto",
		},
		Pages: map[string]page.Record{
			"https://empresa.cl": {
				Links: page.SectionList{Main: []string{"https://empresa.cl/contacto"}},
				Texts: page.SectionList{Main: []string{"Bienvenidos"}},
			},
			"https://empresa.cl/contacto": {
				Texts: page.SectionList{Main: []string{"Escríbenos"}},
			},
		},
	}
}

func TestUpsertCompanyCrawlAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertCompanyCrawl(ctx, "empresa", sampleResult())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetCrawl(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://empresa.cl", got.StartURL)
	assert.Equal(t, "empresa.cl", got.RootDomain)
	assert.Equal(t, 2, got.PagesScraped)
	assert.Len(t, got.Pages, 2)
	assert.Equal(t, []string{"Bienvenidos"}, got.Pages["https://empresa.cl"].Texts.Main)
}

func TestUpsertCreatesDataSources(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCompanyCrawl(ctx, "empresa", sampleResult())
	require.NoError(t, err)

	sources, err := s.ListDataSources(ctx, "empresa")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "https://empresa.cl", sources[0].URL)
	assert.Equal(t, "https://empresa.cl/contacto", sources[1].URL)
	assert.Equal(t, "web", sources[0].Kind)
	assert.Empty(t, sources[0].Role)
}

func TestUpsertRefreshPreservesRole(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCompanyCrawl(ctx, "empresa", sampleResult())
	require.NoError(t, err)

	err = s.UpdateDataSourceRole(ctx, "empresa", "https://empresa.cl/contacto", "contact")
	require.NoError(t, err)

	// A second crawl of the same site refreshes content but keeps the label.
	_, err = s.UpsertCompanyCrawl(ctx, "empresa", sampleResult())
	require.NoError(t, err)

	sources, err := s.ListDataSources(ctx, "empresa")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "contact", sources[1].Role)
}

func TestUpdateRoleUnknownSource(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateDataSourceRole(context.Background(), "empresa", "https://empresa.cl/nope", "contact")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCrawlUnknownID(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetCrawl(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertRejectsBadInput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCompanyCrawl(ctx, "", sampleResult())
	assert.Error(t, err)

	_, err = s.UpsertCompanyCrawl(ctx, "empresa", nil)
	assert.Error(t, err)
}

func TestMultipleCrawlsPerCompany(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertCompanyCrawl(ctx, "empresa", sampleResult())
	require.NoError(t, err)
	second, err := s.UpsertCompanyCrawl(ctx, "empresa", sampleResult())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = s.GetCrawl(ctx, first)
	assert.NoError(t, err)
	_, err = s.GetCrawl(ctx, second)
	assert.NoError(t, err)
}
