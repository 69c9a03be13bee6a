package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/config"
	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/crossref"
	"github.com/DominicTanzillo/Panacea/internal/metrics"
	"github.com/DominicTanzillo/Panacea/internal/neighbors"
	"github.com/DominicTanzillo/Panacea/internal/output"
	"github.com/DominicTanzillo/Panacea/internal/propagation"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

func screeningConfig(c *config.Config) conjunction.Config {
	s := c.Screening
	return conjunction.Config{
		CollisionThresholdKm: s.CollisionThresholdKm,
		Bands:                neighbors.Bands{AltitudeKm: s.AltitudeBandKm, RAANDeg: s.RAANBandDeg},
		Horizon:              s.Horizon,
		Cadence:              s.Cadence,
		Concurrency:          s.Concurrency,
	}
}

func newScreener(c *config.Config, logger *slog.Logger) (*conjunction.Screener, error) {
	prop, err := propagation.NewPropagator(propagation.PropConfig{
		Workers: c.Screening.Workers,
		Model:   c.Screening.Model,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("screening config",
		"model", prop.Model(),
		"workers", c.Screening.Workers,
		"threshold_km", c.Screening.CollisionThresholdKm,
		"horizon", c.Screening.Horizon.String(),
		"cadence", c.Screening.Cadence.String(),
		"altitude_band_km", c.Screening.AltitudeBandKm,
		"raan_band_deg", c.Screening.RAANBandDeg,
	)
	return conjunction.NewScreener(prop, screeningConfig(c), logger), nil
}

func newFetcher(c *config.Config, logger *slog.Logger) *tle.Fetcher {
	return tle.NewFetcher(c.Catalog.SourceURL, logger, c.Catalog.ExtraURLs...)
}

// loadCatalog reads the catalog file when one is configured and fetches
// from the source URL otherwise.
func loadCatalog(ctx context.Context, c *config.Config, logger *slog.Logger) (*tle.Catalog, error) {
	var (
		catalog *tle.Catalog
		err     error
	)
	if c.Catalog.Path != "" {
		catalog, err = readCatalogFile(c.Catalog.Path, logger)
	} else {
		catalog, err = newFetcher(c, logger).FetchCatalog(ctx)
	}
	if err != nil {
		return nil, err
	}
	metrics.SetCatalogRecords(len(catalog.Records))
	logger.Info("catalog loaded",
		"source", catalog.Source,
		"count", len(catalog.Records),
		"epoch_min", catalog.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", catalog.EpochRange.Max.Format(time.RFC3339),
	)
	return catalog, nil
}

func readCatalogFile(path string, logger *slog.Logger) (*tle.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	records, err := tle.Decode(data, logger)
	if err != nil {
		return nil, fmt.Errorf("decoding catalog %s: %w", path, err)
	}
	return tle.NewCatalog(path, info.ModTime().UTC(), records), nil
}

// newCrossref returns a CDM client backed by a file cache when a cache
// directory is configured.
func newCrossref(c *config.Config, logger *slog.Logger) (*crossref.Client, error) {
	x := c.Crossref
	var cache crossref.Cache
	if x.CacheDir != "" {
		fc, err := crossref.NewFileCache(x.CacheDir, x.CacheFiles, x.CacheTTL)
		if err != nil {
			return nil, err
		}
		cache = fc
	} else {
		cache = crossref.NewMemoryCache(x.CacheTTL)
	}
	return crossref.NewClient(crossref.Config{
		BaseURL:   x.BaseURL,
		User:      x.User,
		Password:  x.Password,
		Lookback:  x.Lookback,
		MinPc:     x.MinPc,
		BatchSize: x.BatchSize,
		Pacing:    x.Pacing,
	}, cache, logger), nil
}

// newSinks builds the configured sinks. The pretty report goes to stdout
// when pretty is set; JSONL goes to the configured file or, when neither
// a file nor the pretty report is selected, to stdout.
func newSinks(c *config.Config, pretty bool, logger *slog.Logger) (output.Sink, error) {
	var sinks output.Multi

	if pretty {
		sinks = append(sinks, output.NewPretty(os.Stdout))
	}
	switch {
	case c.Output.JSONLPath != "":
		s, err := output.OpenJSONL(c.Output.JSONLPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	case !pretty:
		sinks = append(sinks, output.NewJSONL(os.Stdout))
	}
	if c.Output.GreptimeEndpoint != "" {
		g, err := output.NewGreptime(c.Output.GreptimeEndpoint, c.Output.GreptimeDatabase, c.Output.GreptimeTable, logger)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, g)
		logger.Info("greptime sink enabled", "endpoint", c.Output.GreptimeEndpoint, "table", c.Output.GreptimeTable)
	}
	return sinks, nil
}
