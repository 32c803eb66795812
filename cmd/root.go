// Package cmd defines the CLI commands of the webpresence executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andesdata/webpresence/internal/config"
	"github.com/andesdata/webpresence/internal/crawl"
	"github.com/andesdata/webpresence/internal/fetch"
	"github.com/andesdata/webpresence/internal/logging"
	"github.com/andesdata/webpresence/internal/metrics"
	"github.com/andesdata/webpresence/internal/page"
	"github.com/andesdata/webpresence/internal/ratelimit"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webpresence",
		Short: "Deep-crawls a company website and extracts its links and texts",
		Long: `webpresence walks a company's website breadth-first from its home page,
staying on the site's root domain, and extracts per-page links and visible
texts split by document zone (head, header, main, footer). Results are
emitted as JSON and can be persisted to the local result store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults apply when omitted)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() error {
	return newRootCmd().Execute()
}

// deps carries the wired service graph shared by the subcommands.
type deps struct {
	cfg      config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	crawler  *crawl.Crawler
	renderer *fetch.ChromeRenderer
}

func buildDeps(render bool) (*deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	m := metrics.New()

	var renderer *fetch.ChromeRenderer
	var clientRenderer fetch.Renderer
	if render || cfg.Render.Enabled {
		renderer = fetch.NewChromeRenderer(cfg.RenderSettings())
		clientRenderer = renderer
	}

	settings := cfg.FetchSettings()
	limiter := ratelimit.New(settings.RequestsPerHostPerSecond)
	client := fetch.NewClient(settings, limiter, clientRenderer, logger, m)
	pages := page.NewFetcher(client, logger, clientRenderer != nil)

	return &deps{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		crawler:  crawl.New(pages, logger, m),
		renderer: renderer,
	}, nil
}

func (d *deps) close() {
	if d.renderer != nil {
		d.renderer.Close()
	}
	_ = d.logger.Sync()
}
