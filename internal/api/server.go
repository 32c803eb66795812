// Package api exposes the HTTP interface of the crawl service. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /crawls runs a deep crawl and returns the result.
//   - GET /crawls/{crawl_id} returns a stored crawl result.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andesdata/webpresence/internal/crawl"
	"github.com/andesdata/webpresence/internal/metrics"
	"github.com/andesdata/webpresence/internal/storage"
)

// CrawlRunner runs one deep crawl. *crawl.Crawler is the production
// implementation.
type CrawlRunner interface {
	DeepCrawl(ctx context.Context, startURL string, maxPages int) (*crawl.Result, error)
}

// ResultStore persists crawl results and serves them back by id.
type ResultStore interface {
	UpsertCompanyCrawl(ctx context.Context, slug string, res *crawl.Result) (string, error)
	GetCrawl(ctx context.Context, id string) (*crawl.Result, error)
}

// Limits bound what a single API request may ask for.
type Limits struct {
	MaxPagesDefault int
	MaxPagesLimit   int
}

// Server wires HTTP handlers to the crawler and the result store.
type Server struct {
	router  chi.Router
	crawler CrawlRunner
	store   ResultStore
	metrics *metrics.Metrics
	logger  *zap.Logger
	limits  Limits
}

// NewServer constructs a Server with middleware and routes. The store may be
// nil, in which case results are returned but not persisted.
func NewServer(crawler CrawlRunner, store ResultStore, m *metrics.Metrics, logger *zap.Logger, limits Limits) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		crawler: crawler,
		store:   store,
		metrics: m,
		logger:  logger,
		limits:  limits,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/crawls", func(r chi.Router) {
		r.Post("/", s.runCrawl)
		r.Get("/{crawl_id}", s.getCrawl)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlRequest struct {
	URL      string `json:"url"`
	MaxPages int    `json:"maxPages"`
	Slug     string `json:"slug"`
}

type crawlResponse struct {
	CrawlID string        `json:"crawlId,omitempty"`
	Result  *crawl.Result `json:"result"`
}

// runCrawl handles POST /crawls. The crawl runs synchronously on the request
// context; long crawls should come in with a generous client timeout.
func (s *Server) runCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = s.limits.MaxPagesDefault
	}
	if s.limits.MaxPagesLimit > 0 && maxPages > s.limits.MaxPagesLimit {
		maxPages = s.limits.MaxPagesLimit
	}

	res, err := s.crawler.DeepCrawl(r.Context(), req.URL, maxPages)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusRequestTimeout, "crawl interrupted")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := crawlResponse{Result: res}
	if s.store != nil {
		slug := req.Slug
		if slug == "" {
			slug = res.RootDomain
		}
		id, err := s.store.UpsertCompanyCrawl(r.Context(), slug, res)
		if err != nil {
			s.logger.Error("persist crawl failed",
				zap.String("slug", slug), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store crawl result")
			return
		}
		resp.CrawlID = id
	}

	writeJSON(w, http.StatusOK, resp)
}

// getCrawl handles GET /crawls/{crawl_id}.
func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}
	id := chi.URLParam(r, "crawl_id")
	res, err := s.store.GetCrawl(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "crawl not found")
			return
		}
		s.logger.Error("load crawl failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load crawl")
		return
	}
	writeJSON(w, http.StatusOK, crawlResponse{CrawlID: id, Result: res})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors here mean the client went away mid-response.
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
