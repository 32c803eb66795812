package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDropsStaticExtensions(t *testing.T) {
	in := []string{"/about", "/style.css", "/app.js", "/photo.jpg?v=2", "/doc.pdf", "/font.woff2"}
	assert.Equal(t, []string{"/about"}, Clean(in))
}

func TestCleanDropsTrackers(t *testing.T) {
	in := []string{
		"https://example.com/contact",
		"https://www.google-analytics.com/collect",
		"https://googletagmanager.com/gtm",
		"https://connect.facebook.net/sdk",
	}
	assert.Equal(t, []string{"https://example.com/contact"}, Clean(in))
}

func TestCleanDropsAssetAndFrameworkPaths(t *testing.T) {
	in := []string{
		"/equipo",
		"/assets/main.bundle",
		"/static/chunk",
		"/_next/data.json",
		"/wp-content/uploads/x",
	}
	assert.Equal(t, []string{"/equipo"}, Clean(in))
}

func TestCleanDropsPlaceholdersAndInlineData(t *testing.T) {
	in := []string{"/", "./", "[object Object]", "data:image/png;base64,AAAA", "/real"}
	assert.Equal(t, []string{"/real"}, Clean(in))
}

func TestCleanDropsManifest(t *testing.T) {
	in := []string{"/site.webmanifest", "/api/manifest-gen?x=1", "/precios"}
	assert.Equal(t, []string{"/precios"}, Clean(in))
}

func TestCleanQueryVariantCollapses(t *testing.T) {
	in := []string{"/about", "/about?utm_source=x", "/pricing?plan=pro"}
	got := Clean(in)
	assert.Contains(t, got, "/about")
	assert.NotContains(t, got, "/about?utm_source=x")
	// No query-less base for /pricing: the variant survives.
	assert.Contains(t, got, "/pricing?plan=pro")
}

func TestCleanExtensionCheckIgnoresQueryAndFragment(t *testing.T) {
	in := []string{"/download.zip?token=1", "/x.png#frag"}
	assert.Empty(t, Clean(in))
}

func TestCleanProtocolRelativeAndWWWForms(t *testing.T) {
	in := []string{"//example.com/page", "www.example.com/otra"}
	got := Clean(in)
	assert.Contains(t, got, "https://example.com/page")
	assert.Contains(t, got, "https://www.example.com/otra")
}

func TestCleanKeepsRelativeUntouched(t *testing.T) {
	in := []string{"./regulacion", "/ruta/a"}
	assert.Equal(t, []string{"./regulacion", "/ruta/a"}, Clean(in))
}

func TestCleanCanonicalExamplePage(t *testing.T) {
	// Extractor output for a page with an about link, a tracking variant of
	// the same path, and a CDN image.
	in := []string{"/about", "./about?utm=1", "//cdn.example.com/x.png"}
	got := Clean(in)
	// The image goes on extension, the utm variant goes because "./about"
	// and "/about" are the same base.
	assert.Equal(t, []string{"/about"}, got)
}

func TestCleanVariantAcrossRelativeSpellings(t *testing.T) {
	in := []string{"./about", "/about?ref=nav"}
	assert.Equal(t, []string{"./about"}, Clean(in))
}
