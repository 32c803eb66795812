// Package storage persists crawl results as per-company data source rows in
// an embedded SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/andesdata/webpresence/internal/crawl"
)

// ErrNotFound is returned when a lookup matches no stored row.
var ErrNotFound = errors.New("storage: not found")

// Store wraps the SQLite connection. A single writer connection is used;
// SQLite serializes writes anyway.
type Store struct {
	db *sql.DB
}

// DataSource is one stored web presence of a company: a crawled page with
// its extracted links and texts, plus the role a downstream classifier may
// assign later ("home", "contact", ...).
type DataSource struct {
	ID        string
	URL       string
	Kind      string
	Role      string
	UpdatedAt time.Time
}

// Open opens or creates the database at path and applies the schema. Parent
// directories are created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- One row per finished crawl, with the full result serialized as JSON.
	CREATE TABLE IF NOT EXISTS crawls (
		id TEXT PRIMARY KEY,
		company_slug TEXT NOT NULL,
		start_url TEXT NOT NULL,
		root_domain TEXT NOT NULL,
		pages_scraped INTEGER NOT NULL,
		result_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_slug ON crawls(company_slug);

	-- Data sources are the pages of a company's web presence, refreshed on
	-- every crawl. The role label survives refreshes.
	CREATE TABLE IF NOT EXISTS data_sources (
		id TEXT PRIMARY KEY,
		company_slug TEXT NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'web',
		role TEXT,
		links_json TEXT NOT NULL,
		texts_json TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(company_slug, url)
	);

	CREATE INDEX IF NOT EXISTS idx_sources_slug ON data_sources(company_slug);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// UpsertCompanyCrawl stores a finished crawl under the company slug: the
// company row is created if missing, the crawl is recorded, and one data
// source row per page is inserted or refreshed. Returns the crawl id.
func (s *Store) UpsertCompanyCrawl(ctx context.Context, slug string, res *crawl.Result) (string, error) {
	if slug == "" {
		return "", fmt.Errorf("storage: empty company slug")
	}
	if res == nil {
		return "", fmt.Errorf("storage: nil crawl result")
	}

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("serialize crawl result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO companies (id, slug) VALUES (?, ?) ON CONFLICT(slug) DO NOTHING`,
		uuid.NewString(), slug,
	); err != nil {
		return "", fmt.Errorf("upsert company %q: %w", slug, err)
	}

	crawlID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO crawls (id, company_slug, start_url, root_domain, pages_scraped, result_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		crawlID, slug, res.StartURL, res.RootDomain, res.PagesScraped, string(resultJSON),
	); err != nil {
		return "", fmt.Errorf("insert crawl: %w", err)
	}

	const upsertSource = `
	INSERT INTO data_sources (id, company_slug, url, kind, links_json, texts_json)
	VALUES (?, ?, ?, 'web', ?, ?)
	ON CONFLICT(company_slug, url) DO UPDATE SET
		links_json = excluded.links_json,
		texts_json = excluded.texts_json,
		updated_at = CURRENT_TIMESTAMP
	`
	for pageURL, rec := range res.Pages {
		linksJSON, err := json.Marshal(rec.Links)
		if err != nil {
			return "", fmt.Errorf("serialize links for %s: %w", pageURL, err)
		}
		textsJSON, err := json.Marshal(rec.Texts)
		if err != nil {
			return "", fmt.Errorf("serialize texts for %s: %w", pageURL, err)
		}
		if _, err := tx.ExecContext(ctx, upsertSource,
			uuid.NewString(), slug, pageURL, string(linksJSON), string(textsJSON),
		); err != nil {
			return "", fmt.Errorf("upsert data source %s: %w", pageURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return crawlID, nil
}

// UpdateDataSourceRole sets the role label of one data source, keyed by
// company slug and page URL.
func (s *Store) UpdateDataSourceRole(ctx context.Context, slug, url, role string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE data_sources SET role = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE company_slug = ? AND url = ?`,
		role, slug, url,
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("data source %s/%s: %w", slug, url, ErrNotFound)
	}
	return nil
}

// GetCrawl loads a stored crawl result by id.
func (s *Store) GetCrawl(ctx context.Context, id string) (*crawl.Result, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM crawls WHERE id = ?`, id,
	).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("crawl %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get crawl: %w", err)
	}

	var res crawl.Result
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		return nil, fmt.Errorf("decode crawl result: %w", err)
	}
	return &res, nil
}

// ListDataSources returns a company's stored data sources ordered by URL.
func (s *Store) ListDataSources(ctx context.Context, slug string) ([]DataSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, kind, COALESCE(role, ''), updated_at
		 FROM data_sources WHERE company_slug = ? ORDER BY url`,
		slug,
	)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	defer rows.Close()

	var out []DataSource
	for rows.Next() {
		var ds DataSource
		var updated string
		if err := rows.Scan(&ds.ID, &ds.URL, &ds.Kind, &ds.Role, &updated); err != nil {
			return nil, fmt.Errorf("scan data source: %w", err)
		}
		ds.UpdatedAt = parseTimestamp(updated)
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	return out, nil
}

// parseTimestamp handles the formats SQLite hands back for DATETIME columns.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
