package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andesdata/webpresence/internal/storage"
)

func newCrawlCmd() *cobra.Command {
	var (
		maxPages int
		render   bool
		slug     string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Deep-crawls one website and prints the result as JSON",
		Long: `Crawls the given site breadth-first, staying on its root domain, and
prints the aggregated result as JSON. With --slug the result is also
persisted to the local result store under that company slug.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(args[0], maxPages, render, slug, outPath)
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget (0 uses the configured default)")
	cmd.Flags().BoolVar(&render, "render", false, "render pages in headless Chrome before extraction")
	cmd.Flags().StringVar(&slug, "slug", "", "company slug to persist the result under")
	cmd.Flags().StringVar(&outPath, "out", "", "write the JSON result to this file instead of stdout")
	return cmd
}

func runCrawl(startURL string, maxPages int, render bool, slug, outPath string) error {
	d, err := buildDeps(render)
	if err != nil {
		return err
	}
	defer d.close()

	if maxPages <= 0 {
		maxPages = d.cfg.Crawl.MaxPagesDefault
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := d.crawler.DeepCrawl(ctx, startURL, maxPages)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl: %w", err)
	}
	if err != nil {
		d.logger.Warn("crawl interrupted, writing partial result",
			zap.Int("pagesScraped", res.PagesScraped))
	}

	if slug != "" {
		store, err := storage.Open(d.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = store.Close() }()

		id, err := store.UpsertCompanyCrawl(context.Background(), slug, res)
		if err != nil {
			return fmt.Errorf("persist crawl: %w", err)
		}
		d.logger.Info("crawl persisted",
			zap.String("slug", slug), zap.String("crawlId", id))
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		return nil
	}
	fmt.Println(string(out))
	return nil
}
