package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DominicTanzillo/Panacea/internal/classify"
	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/crossref"
	"github.com/DominicTanzillo/Panacea/internal/output"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

const maxEventLine = 1 << 20

// errNoTarget is recorded when neither the event nor the catalog carries
// the object's pre-maneuver elements.
const errNoTarget = "no_target_state"

// readManeuvers decodes one maneuver event per line. Blank and malformed
// lines are skipped.
func readManeuvers(r io.Reader, logger *slog.Logger) ([]classify.Maneuver, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var events []classify.Maneuver
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var m classify.Maneuver
		if err := json.Unmarshal(b, &m); err != nil {
			logger.Warn("skipping malformed event", "line", line, "error", err)
			continue
		}
		if m.NoradID <= 0 {
			logger.Warn("skipping event without norad_id", "line", line)
			continue
		}
		events = append(events, m)
	}
	if err := sc.Err(); err != nil {
		return events, fmt.Errorf("reading events: %w", err)
	}
	return events, nil
}

// pipeline enriches maneuver events: classification, counterfactual
// screening and CDM confirmation, then hands the records to the sink.
type pipeline struct {
	rules    *classify.Rules
	screener *conjunction.Screener
	catalog  *tle.Catalog // nil when no catalog could be loaded
	crossref *crossref.Client
	sink     output.Sink
	logger   *slog.Logger

	// screenAll screens every event instead of likely avoidance burns only.
	screenAll bool
	// start fixes the horizon for every screening in the run.
	start time.Time
	runID string
}

func (p *pipeline) run(ctx context.Context, events []classify.Maneuver) ([]classify.Enrichment, error) {
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	if p.start.IsZero() {
		p.start = time.Now().UTC().Truncate(time.Second)
	}
	logger := p.logger.With("run_id", p.runID)

	records := make([]classify.Enrichment, len(events))
	for i, m := range events {
		records[i] = p.rules.Classify(m)
		records[i].RunID = p.runID
	}

	screened := p.screen(ctx, events, records)
	confirmed := p.confirm(ctx, records)

	logger.Info("run complete",
		"events", len(events),
		"screened", screened,
		"cdm_confirmed", confirmed,
		"horizon_start", p.start.Format(time.RFC3339),
	)

	if err := p.sink.Write(ctx, records); err != nil {
		return records, fmt.Errorf("writing results: %w", err)
	}
	return records, nil
}

func (p *pipeline) screen(ctx context.Context, events []classify.Maneuver, records []classify.Enrichment) int {
	var (
		reqs []conjunction.Request
		idx  []int
	)
	var catalog []tle.Record
	if p.catalog != nil {
		catalog = p.catalog.Records
	}

	for i, m := range events {
		if !p.screenAll && !records[i].LikelyAvoidance {
			continue
		}
		target, ok := p.target(m)
		if !ok {
			records[i].CounterfactualError = errNoTarget
			p.logger.Debug("no pre-maneuver state", "norad_id", m.NoradID)
			continue
		}
		req := conjunction.Request{Target: target, Catalog: catalog, Start: p.start}
		if catalog == nil {
			req.Neighbors = []tle.Record{}
		}
		reqs = append(reqs, req)
		idx = append(idx, i)
	}
	if len(reqs) == 0 {
		return 0
	}

	results := p.screener.ScreenBatch(ctx, reqs)
	for j, r := range results {
		records[idx[j]].MergeCounterfactual(r)
	}
	return len(reqs)
}

func (p *pipeline) target(m classify.Maneuver) (tle.Record, bool) {
	if m.PreManeuver != nil {
		rec := *m.PreManeuver
		if rec.CatalogID == 0 {
			rec.CatalogID = m.NoradID
		}
		return rec, true
	}
	if p.catalog == nil {
		return tle.Record{}, false
	}
	return p.catalog.Find(m.NoradID)
}

func (p *pipeline) confirm(ctx context.Context, records []classify.Enrichment) int {
	if p.crossref == nil || len(records) == 0 {
		return 0
	}
	ids := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.NoradID
	}

	cdms, err := p.crossref.Lookup(ctx, ids)
	if err != nil {
		p.logger.Warn("cdm lookup incomplete", "error", err, "resolved", len(cdms))
	}

	n := 0
	for i := range records {
		records[i].MergeConfirmation(cdms[records[i].NoradID])
		if records[i].HasCDM {
			n++
		}
	}
	return n
}
