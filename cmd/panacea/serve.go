package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DominicTanzillo/Panacea/internal/api"
	"github.com/DominicTanzillo/Panacea/internal/auth"
	"github.com/DominicTanzillo/Panacea/internal/config"
	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/metrics"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

const catalogAgeInterval = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the screening HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address; overrides server.addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	screener, err := newScreener(cfg, logger)
	if err != nil {
		return err
	}
	xref, err := newCrossref(cfg, logger)
	if err != nil {
		return err
	}

	store := tle.NewStore()
	fetcher := newFetcher(cfg, logger)

	authCfg := auth.Config{Token: cfg.Server.AuthToken}
	srv := api.NewServer(api.Config{
		Addr:       cfg.Server.Addr,
		Auth:       authCfg,
		MaxPairs:   cfg.Server.MaxPairs,
		MaxPerIP:   cfg.Server.MaxPerIP,
		TrustProxy: cfg.Server.TrustProxy,
	}, api.Deps{
		Store:    store,
		Fetcher:  fetcher,
		Screener: screener,
		Crossref: xref,
	}, logger)

	// The server reports not ready until the first catalog is in place.
	go func() {
		catalog, err := loadCatalog(ctx, cfg, logger)
		if err != nil {
			logger.Warn("initial catalog load failed", "error", err)
			return
		}
		store.Set(catalog)
	}()

	if every := cfg.Server.CatalogRefresh; every > 0 {
		go refreshCatalog(ctx, store, fetcher, every, logger)
	}

	go func() {
		ticker := time.NewTicker(catalogAgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if configPath != "" {
		go watchConfig(ctx, configPath, screener, logger)
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "auth_enabled", authCfg.Enabled(), "crossref_enabled", xref.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func refreshCatalog(ctx context.Context, store *tle.Store, f *tle.Fetcher, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c, err := store.Refresh(ctx, f)
			if err != nil {
				logger.Warn("catalog refresh failed", "error", err)
				continue
			}
			metrics.SetCatalogRecords(len(c.Records))
			logger.Info("catalog refreshed", "count", len(c.Records))
		case <-ctx.Done():
			return
		}
	}
}

// watchConfig applies screening changes from the config file. Server and
// output settings need a restart.
func watchConfig(ctx context.Context, path string, screener *conjunction.Screener, logger *slog.Logger) {
	err := config.Watch(ctx, path, logger, func(c *config.Config) {
		screener.SetConfig(screeningConfig(c))
		logger.Info("screening config reloaded",
			"threshold_km", c.Screening.CollisionThresholdKm,
			"horizon", c.Screening.Horizon.String(),
			"cadence", c.Screening.Cadence.String(),
		)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("config watch stopped", "error", err)
	}
}
