package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andesdata/webpresence/internal/api"
	"github.com/andesdata/webpresence/internal/storage"
)

func newServeCmd() *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the crawl HTTP API",
		Long: `Starts the HTTP server: POST /crawls runs a deep crawl and stores the
result, GET /crawls/{id} serves stored results, plus /healthz and /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(render)
		},
	}

	cmd.Flags().BoolVar(&render, "render", false, "render pages in headless Chrome before extraction")
	return cmd
}

func runServe(render bool) error {
	d, err := buildDeps(render)
	if err != nil {
		return err
	}
	defer d.close()

	store, err := storage.Open(d.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	srv := api.NewServer(d.crawler, store, d.metrics, d.logger, api.Limits{
		MaxPagesDefault: d.cfg.Crawl.MaxPagesDefault,
		MaxPagesLimit:   d.cfg.Crawl.MaxPagesLimit,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", d.cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("server listening", zap.Int("port", d.cfg.Server.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		d.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
