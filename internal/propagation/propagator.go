package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/metrics"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

// Propagator pairs a capability with a worker pool and records metrics for
// every object it propagates.
type Propagator struct {
	capability Capability
	pool       *WorkerPool
	logger     *slog.Logger
}

// NewPropagator creates a Propagator for the configured model.
func NewPropagator(config PropConfig, logger *slog.Logger) (*Propagator, error) {
	c, err := NewCapability(config.Model)
	if err != nil {
		return nil, err
	}
	return NewPropagatorWith(c, config.Workers, logger), nil
}

// NewPropagatorWith creates a Propagator around an existing capability.
func NewPropagatorWith(c Capability, workers int, logger *slog.Logger) *Propagator {
	return &Propagator{
		capability: c,
		pool:       NewWorkerPool(workers, logger),
		logger:     logger,
	}
}

// Model returns the name of the underlying capability.
func (p *Propagator) Model() string { return p.capability.Name() }

// Target builds and propagates a single record on the calling goroutine.
// The error is a *ParseError or wraps ErrNoSamples.
func (p *Propagator) Target(rec tle.Record, w Window) (Series, error) {
	start := time.Now()
	out := propagateOne(p.capability, rec, w)
	p.record([]Outcome{out}, time.Since(start))

	if out.Err != nil {
		return out.Series, fmt.Errorf("target %d: %w", rec.CatalogID, out.Err)
	}
	return out.Series, nil
}

// Neighbors propagates records on the worker pool. Outcomes are in input order.
func (p *Propagator) Neighbors(ctx context.Context, records []tle.Record, w Window) []Outcome {
	start := time.Now()
	outcomes := p.pool.PropagateBatch(ctx, p.capability, records, w)
	duration := time.Since(start)
	p.record(outcomes, duration)

	p.logger.Debug("neighbors propagated",
		"count", len(records),
		"samples", w.Count(),
		"model", p.capability.Name(),
		"duration_ms", duration.Milliseconds(),
	)
	return outcomes
}

func (p *Propagator) record(outcomes []Outcome, duration time.Duration) {
	var success, failed, dropped int
	for _, o := range outcomes {
		dropped += o.Series.Dropped
		switch o.Err.(type) {
		case nil:
			success++
		case *ParseError:
			failed++
			metrics.RecordPropagationFailure(metrics.FailureParse)
		default:
			failed++
			metrics.RecordPropagationFailure(metrics.FailureSeries)
		}
	}
	metrics.RecordDroppedSamples(dropped)
	metrics.RecordPropagation(duration, success, failed)
}
