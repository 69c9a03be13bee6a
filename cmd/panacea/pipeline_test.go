package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/classify"
	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/crossref"
	"github.com/DominicTanzillo/Panacea/internal/propagation"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

var testStart = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func record(id int, raan, meanAnomaly float64) tle.Record {
	return tle.Record{
		CatalogID:    id,
		Name:         "OBJ",
		Epoch:        testStart.Add(-time.Hour),
		MeanMotion:   15.06,
		Eccentricity: 0.0001,
		Inclination:  53,
		RAAN:         raan,
		MeanAnomaly:  meanAnomaly,
	}
}

type captureSink struct {
	records []classify.Enrichment
	err     error
}

func (c *captureSink) Write(_ context.Context, records []classify.Enrichment) error {
	c.records = append(c.records, records...)
	return c.err
}

func (c *captureSink) Close() error { return nil }

func newTestPipeline(sink *captureSink, xref *crossref.Client) *pipeline {
	prop := propagation.NewPropagatorWith(propagation.Kepler{}, 2, testLogger())
	sc := conjunction.DefaultConfig()
	sc.Horizon = time.Hour
	sc.Cadence = 10 * time.Minute
	if xref == nil {
		xref = crossref.NewClient(crossref.Config{}, nil, testLogger())
	}
	return &pipeline{
		rules:    classify.DefaultRules(),
		screener: conjunction.NewScreener(prop, sc, testLogger()),
		catalog: tle.NewCatalog("test", testStart, []tle.Record{
			record(1, 100, 0),
			record(2, 100, 0),
			record(3, 105, 20),
			record(4, 250, 0),
		}),
		crossref: xref,
		sink:     sink,
		logger:   testLogger(),
		start:    testStart,
		runID:    "run-1",
	}
}

func TestReadManeuvers(t *testing.T) {
	in := strings.Join([]string{
		`{"norad_id": 1, "name": "STARLINK-1", "delta_v_m_s": 0.4}`,
		``,
		`{not json`,
		`{"name": "NO ID", "delta_v_m_s": 1}`,
		`{"norad_id": 4, "name": "ONEWEB-0004", "delta_v_m_s": 12.5, "history": [{"detected_at": "2025-03-01T00:00:00Z"}]}`,
	}, "\n")

	events, err := readManeuvers(strings.NewReader(in), testLogger())
	if err != nil {
		t.Fatalf("readManeuvers: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].NoradID != 1 || events[1].NoradID != 4 {
		t.Errorf("ids = %d, %d", events[0].NoradID, events[1].NoradID)
	}
	if len(events[1].History) != 1 {
		t.Errorf("history = %v", events[1].History)
	}
}

func TestPipelineScreensLikelyAvoidance(t *testing.T) {
	sink := &captureSink{}
	p := newTestPipeline(sink, nil)
	inline := record(5, 100, 0)

	events := []classify.Maneuver{
		{NoradID: 1, Name: "STARLINK-1", DeltaVMS: 0.5},
		{NoradID: 4, Name: "ONEWEB-0004", DeltaVMS: 50},
		{NoradID: 99, Name: "STARLINK-99", DeltaVMS: 0.2},
		{NoradID: 5, Name: "STARLINK-5", DeltaVMS: 0.3, PreManeuver: &inline},
	}

	got, err := p.run(context.Background(), events)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != len(events) || len(sink.records) != len(events) {
		t.Fatalf("got %d records, sink %d", len(got), len(sink.records))
	}
	for _, r := range got {
		if r.RunID != "run-1" {
			t.Errorf("norad %d run_id = %q", r.NoradID, r.RunID)
		}
	}

	// Object 1 shares its pre-maneuver orbit with object 2.
	if !got[0].WouldHaveCollided || got[0].CounterfactualClosestNorad == nil || *got[0].CounterfactualClosestNorad != 2 {
		t.Errorf("norad 1: collided=%v closest=%v", got[0].WouldHaveCollided, got[0].CounterfactualClosestNorad)
	}
	if got[0].CounterfactualTCA == nil {
		t.Error("norad 1: expected a TCA")
	}

	if got[1].LikelyAvoidance || got[1].CounterfactualMinDistanceKm != nil {
		t.Errorf("norad 4 should not be screened: %+v", got[1])
	}

	if got[2].CounterfactualError != errNoTarget {
		t.Errorf("norad 99 error = %q, want %q", got[2].CounterfactualError, errNoTarget)
	}

	if !got[3].WouldHaveCollided {
		t.Errorf("norad 5 screened from inline elements: collided=%v error=%q", got[3].WouldHaveCollided, got[3].CounterfactualError)
	}

	for _, r := range got {
		if r.HasCDM {
			t.Errorf("norad %d has_cdm with crossref disabled", r.NoradID)
		}
	}
}

func TestPipelineScreenAll(t *testing.T) {
	sink := &captureSink{}
	p := newTestPipeline(sink, nil)
	p.screenAll = true

	got, err := p.run(context.Background(), []classify.Maneuver{
		{NoradID: 4, Name: "ONEWEB-0004", DeltaVMS: 50},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Object 4 is alone in its plane.
	r := got[0]
	if r.CounterfactualError != conjunction.CodeNoValidNeighbors {
		t.Errorf("norad 4 error = %q, want %q", r.CounterfactualError, conjunction.CodeNoValidNeighbors)
	}
	if r.WouldHaveCollided || r.CounterfactualMinDistanceKm != nil {
		t.Errorf("norad 4: collided=%v min=%v", r.WouldHaveCollided, r.CounterfactualMinDistanceKm)
	}
}

func TestPipelineWithoutCatalog(t *testing.T) {
	sink := &captureSink{}
	p := newTestPipeline(sink, nil)
	p.catalog = nil
	inline := record(5, 100, 0)

	got, err := p.run(context.Background(), []classify.Maneuver{
		{NoradID: 1, Name: "STARLINK-1", DeltaVMS: 0.5},
		{NoradID: 5, Name: "STARLINK-5", DeltaVMS: 0.3, PreManeuver: &inline},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got[0].CounterfactualError != errNoTarget {
		t.Errorf("norad 1 error = %q", got[0].CounterfactualError)
	}
	if got[1].WouldHaveCollided || got[1].CounterfactualError != conjunction.CodeNoValidNeighbors {
		t.Errorf("norad 5: collided=%v error=%q", got[1].WouldHaveCollided, got[1].CounterfactualError)
	}
}

func TestPipelineMergesCDMs(t *testing.T) {
	cache := crossref.NewMemoryCache(time.Hour)
	cache.Put(1, []crossref.CDM{
		{PC: 1e-4, MissDistanceKm: 0.4, Sat2NoradID: 2},
		{PC: 3e-4, MissDistanceKm: 0.9, Sat2NoradID: 2},
	}, time.Now())
	cache.Put(4, nil, time.Now())

	// Every ID is cached, so the unreachable base URL is never contacted.
	xref := crossref.NewClient(crossref.Config{
		BaseURL:  "http://127.0.0.1:1",
		User:     "user",
		Password: "pass",
	}, cache, testLogger())

	sink := &captureSink{}
	p := newTestPipeline(sink, xref)
	got, err := p.run(context.Background(), []classify.Maneuver{
		{NoradID: 1, Name: "STARLINK-1", DeltaVMS: 0.5},
		{NoradID: 4, Name: "ONEWEB-0004", DeltaVMS: 50},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !got[0].HasCDM || got[0].CDMPc == nil || *got[0].CDMPc != 3e-4 {
		t.Errorf("norad 1 cdm_pc = %v", got[0].CDMPc)
	}
	if got[0].CDMMissDistanceKm == nil || *got[0].CDMMissDistanceKm != 0.4 {
		t.Errorf("norad 1 miss = %v", got[0].CDMMissDistanceKm)
	}
	if got[1].HasCDM {
		t.Error("norad 4 has_cdm with no messages")
	}
}

func TestPipelineSinkError(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	p := newTestPipeline(sink, nil)

	_, err := p.run(context.Background(), []classify.Maneuver{{NoradID: 4, Name: "X", DeltaVMS: 50}})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{[]string{"25544", "44713"}, 2, false},
		{[]string{"abc"}, 0, true},
		{[]string{"0"}, 0, true},
		{[]string{"-5"}, 0, true},
	}
	for _, tt := range tests {
		ids, err := parseIDs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseIDs(%v) err = %v", tt.args, err)
			continue
		}
		if len(ids) != tt.want {
			t.Errorf("parseIDs(%v) = %v", tt.args, ids)
		}
	}
}
