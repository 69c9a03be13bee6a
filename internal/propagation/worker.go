package propagation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/DominicTanzillo/Panacea/internal/tle"
)

// ErrNoSamples reports that every sample of a series failed to evaluate.
var ErrNoSamples = errors.New("no samples propagated")

// Outcome is the result of building and propagating one record.
type Outcome struct {
	CatalogID int
	Series    Series
	Err       error // *ParseError, ErrNoSamples or a context error
}

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	slot int
	rec  tle.Record
}

// propagateResult is the output of a single record propagation.
type propagateResult struct {
	slot    int
	outcome Outcome
}

// WorkerPool manages a fixed number of goroutines for parallel propagation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PropagateBatch builds and propagates every record over w. The returned
// slice has one Outcome per record in input order regardless of which worker
// handled it. Records not reached before ctx is cancelled carry ctx.Err().
func (wp *WorkerPool) PropagateBatch(ctx context.Context, c Capability, records []tle.Record, w Window) []Outcome {
	outcomes := make([]Outcome, len(records))
	if len(records) == 0 {
		return outcomes
	}
	done := make([]bool, len(records))

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := propagateResult{slot: job.slot, outcome: propagateOne(c, job.rec, w)}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, rec := range records {
			select {
			case jobs <- propagateJob{slot: i, rec: rec}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		outcomes[result.slot] = result.outcome
		done[result.slot] = true
		if err := result.outcome.Err; err != nil {
			wp.logger.Warn("propagation failed",
				"norad_id", result.outcome.CatalogID,
				"error", err,
			)
		}
	}

	for i, ok := range done {
		if !ok {
			outcomes[i] = Outcome{CatalogID: records[i].CatalogID, Err: ctx.Err()}
		}
	}
	return outcomes
}

// propagateOne builds a state for rec and samples it over w.
func propagateOne(c Capability, rec tle.Record, w Window) Outcome {
	st, err := BuildState(c, rec)
	if err != nil {
		return Outcome{CatalogID: rec.CatalogID, Err: err}
	}
	series := Propagate(st, w)
	if series.Empty() {
		return Outcome{CatalogID: rec.CatalogID, Series: series, Err: ErrNoSamples}
	}
	return Outcome{CatalogID: rec.CatalogID, Series: series}
}
