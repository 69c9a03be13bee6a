package conjunction

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/metrics"
	"github.com/DominicTanzillo/Panacea/internal/neighbors"
	"github.com/DominicTanzillo/Panacea/internal/propagation"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

// Config holds the screening thresholds and sampling grid.
type Config struct {
	CollisionThresholdKm float64
	Bands                neighbors.Bands
	Horizon              time.Duration
	Cadence              time.Duration
	Concurrency          int // parallel screenings in ScreenBatch
}

// DefaultConfig returns a 1 km threshold over 24 h sampled every 10 min.
func DefaultConfig() Config {
	return Config{
		CollisionThresholdKm: 1.0,
		Bands:                neighbors.DefaultBands(),
		Horizon:              24 * time.Hour,
		Cadence:              10 * time.Minute,
		Concurrency:          4,
	}
}

// Request is one counterfactual screening.
type Request struct {
	Target tle.Record
	// Neighbors, when non-nil, is screened as given. Otherwise neighbours
	// are selected from Catalog.
	Neighbors []tle.Record
	Catalog   []tle.Record
	// Start of the horizon. Zero means now. Either way it is truncated to
	// the second, the resolution of the SGP4 library.
	Start time.Time
}

// Screener runs counterfactual screenings. Config may be swapped while
// screenings are in flight; each screening uses the config it started with.
type Screener struct {
	prop   *propagation.Propagator
	config atomic.Pointer[Config]
	logger *slog.Logger
	now    func() time.Time
}

// NewScreener creates a Screener.
func NewScreener(prop *propagation.Propagator, cfg Config, logger *slog.Logger) *Screener {
	s := &Screener{prop: prop, logger: logger, now: time.Now}
	s.SetConfig(cfg)
	return s
}

// Config returns the active configuration.
func (s *Screener) Config() Config { return *s.config.Load() }

// SetConfig atomically replaces the configuration.
func (s *Screener) SetConfig(cfg Config) { s.config.Store(&cfg) }

// Window returns the sampling grid a request would be screened on.
func (s *Screener) Window(start time.Time) propagation.Window {
	cfg := s.Config()
	return s.window(cfg, start)
}

func (s *Screener) window(cfg Config, start time.Time) propagation.Window {
	if start.IsZero() {
		start = s.now()
	}
	start = start.UTC().Truncate(time.Second)
	return propagation.Window{Start: start, Horizon: cfg.Horizon, Cadence: cfg.Cadence}
}

// Screen runs one screening. Failures are reported in the Result.
func (s *Screener) Screen(ctx context.Context, req Request) Result {
	started := time.Now()
	cfg := s.Config()
	w := s.window(cfg, req.Start)

	candidates := req.Neighbors
	if candidates == nil {
		candidates = neighbors.Select(req.Target, req.Catalog, cfg.Bands)
	}

	res := s.screen(ctx, req.Target, candidates, w, cfg)
	res.NeighborsSelected = len(candidates)
	res.Model = s.prop.Model()

	duration := time.Since(started)
	metrics.RecordScreening(outcomeLabel(res), duration, res.NeighborsChecked)

	attrs := []any{
		"norad_id", res.TargetID,
		"neighbors_selected", res.NeighborsSelected,
		"neighbors_checked", res.NeighborsChecked,
		"duration_ms", duration.Milliseconds(),
	}
	if res.Failed() {
		s.logger.Warn("screening produced no verdict", append(attrs, "error_code", res.ErrorCode, "error", res.Error)...)
	} else {
		s.logger.Info("screening complete", append(attrs,
			"min_distance_km", *res.MinDistanceKm,
			"closest_neighbor_id", *res.ClosestNeighborID,
			"would_have_collided", res.WouldHaveCollided,
		)...)
	}
	return res
}

func (s *Screener) screen(ctx context.Context, target tle.Record, candidates []tle.Record, w propagation.Window, cfg Config) Result {
	if err := ctx.Err(); err != nil {
		return Synthesize(target.CatalogID, Approach{}, err, w, cfg.CollisionThresholdKm)
	}

	targetSeries, err := s.prop.Target(target, w)
	if err != nil {
		return Synthesize(target.CatalogID, Approach{}, err, w, cfg.CollisionThresholdKm)
	}

	outcomes := s.prop.Neighbors(ctx, candidates, w)
	if err := ctx.Err(); err != nil {
		return Synthesize(target.CatalogID, Approach{}, err, w, cfg.CollisionThresholdKm)
	}

	series := make([]propagation.Series, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			series = append(series, o.Series)
		}
	}

	a, err := Scan(targetSeries, series)
	return Synthesize(target.CatalogID, a, err, w, cfg.CollisionThresholdKm)
}

// ScreenBatch screens every request with bounded concurrency. Results are
// in request order.
func (s *Screener) ScreenBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	limit := s.Config().Concurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r Request) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				cfg := s.Config()
				results[idx] = Synthesize(r.Target.CatalogID, Approach{}, ctx.Err(), s.window(cfg, r.Start), cfg.CollisionThresholdKm)
				return
			}

			results[idx] = s.Screen(ctx, r)
		}(i, req)
	}

	wg.Wait()
	return results
}

func outcomeLabel(r Result) string {
	switch {
	case r.Failed():
		return r.ErrorCode
	case r.WouldHaveCollided:
		return "collision"
	default:
		return "clear"
	}
}
