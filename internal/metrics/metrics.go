// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the pipeline collectors. A nil *Metrics is a valid no-op
// receiver so components can run unobserved.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	fetchRetries  prometheus.Counter
	fetchDuration *prometheus.HistogramVec
	pagesScraped  *prometheus.CounterVec
	crawlDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webpresence_fetch_attempts_total",
			Help: "Fetch attempts partitioned by host and outcome.",
		}, []string{"host", "outcome"}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webpresence_fetch_retries_total",
			Help: "Retries performed across all fetches.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webpresence_fetch_duration_seconds",
			Help:    "Wall time per fetch attempt.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"host"}),
		pagesScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webpresence_pages_scraped_total",
			Help: "Pages processed partitioned by result.",
		}, []string{"result"}),
		crawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webpresence_crawl_duration_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	m.registry.MustRegister(
		m.fetchAttempts,
		m.fetchRetries,
		m.fetchDuration,
		m.pagesScraped,
		m.crawlDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetchAttempt records one fetch attempt and its duration.
func (m *Metrics) ObserveFetchAttempt(host, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(host, outcome).Inc()
	m.fetchDuration.WithLabelValues(host).Observe(d.Seconds())
}

// IncFetchRetry counts one backoff-and-retry cycle.
func (m *Metrics) IncFetchRetry() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// IncPageScraped counts one finished page, result is "ok" or "error".
func (m *Metrics) IncPageScraped(result string) {
	if m == nil {
		return
	}
	m.pagesScraped.WithLabelValues(result).Inc()
}

// ObserveCrawl records the wall time of one finished crawl.
func (m *Metrics) ObserveCrawl(d time.Duration) {
	if m == nil {
		return
	}
	m.crawlDuration.Observe(d.Seconds())
}
