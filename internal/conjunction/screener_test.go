package conjunction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/propagation"
	"github.com/DominicTanzillo/Panacea/internal/tle"
	"github.com/DominicTanzillo/Panacea/internal/transform"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// fixedCapability keeps every object at a fixed position, except that an
// object listed in approach moves to a different position at one instant.
type fixedCapability struct {
	positions map[int][3]float64
	approach  map[int]struct {
		at  time.Time
		pos [3]float64
	}
	failInit map[int]bool
}

func (fixedCapability) Name() string { return "fixed" }

func (f fixedCapability) Initialize(el propagation.Elements, epoch time.Time) (propagation.Handle, error) {
	if f.failInit[el.CatalogID] {
		return nil, errors.New("refused")
	}
	return fixedHandle{id: el.CatalogID, epoch: epoch, src: f}, nil
}

func (f fixedCapability) InitializeTLE(line1, line2 string) (propagation.Handle, error) {
	return nil, errors.New("not supported")
}

type fixedHandle struct {
	id    int
	epoch time.Time
	src   fixedCapability
}

func (h fixedHandle) Epoch() time.Time { return h.epoch }

func (h fixedHandle) Evaluate(t time.Time) (transform.PositionTEME, error) {
	p := h.src.positions[h.id]
	if a, ok := h.src.approach[h.id]; ok && a.at.Equal(t) {
		p = a.pos
	}
	return transform.PositionTEME{X: p[0], Y: p[1], Z: p[2]}, nil
}

func record(id int, raan float64) tle.Record {
	return tle.Record{
		CatalogID:    id,
		Epoch:        testStart.Add(-time.Hour),
		MeanMotion:   15.06,
		Eccentricity: 0.0001,
		Inclination:  53,
		RAAN:         raan,
	}
}

func newTestScreener(c propagation.Capability) *Screener {
	prop := propagation.NewPropagatorWith(c, 4, testLogger)
	return NewScreener(prop, DefaultConfig(), testLogger)
}

func TestScreenEndToEnd(t *testing.T) {
	c := fixedCapability{
		positions: map[int][3]float64{
			1: {7000, 0, 0},
			2: {7005, 0, 0},
			3: {7003, 0, 0},
			4: {7001, 0, 0}, // outside the RAAN band, never selected
		},
		approach: map[int]struct {
			at  time.Time
			pos [3]float64
		}{
			2: {at: testStart.Add(50 * time.Minute), pos: [3]float64{7000.8, 0, 0}},
		},
	}
	s := newTestScreener(c)

	r := s.Screen(context.Background(), Request{
		Target:  record(1, 100),
		Catalog: []tle.Record{record(2, 110), record(3, 95), record(4, 200)},
		Start:   testStart,
	})
	if r.Failed() {
		t.Fatalf("unexpected failure: %s", r.Error)
	}
	if r.NeighborsSelected != 2 || r.NeighborsChecked != 2 {
		t.Errorf("selected %d, checked %d, want 2 and 2", r.NeighborsSelected, r.NeighborsChecked)
	}
	if *r.ClosestNeighborID != 2 || !r.WouldHaveCollided {
		t.Errorf("verdict = neighbor %d collided %v", *r.ClosestNeighborID, r.WouldHaveCollided)
	}
	if !r.TCA.Equal(testStart.Add(50 * time.Minute)) {
		t.Errorf("TCA = %v", r.TCA)
	}
	if r.Model != "fixed" {
		t.Errorf("model = %q", r.Model)
	}
}

func TestScreenAllNeighborsFail(t *testing.T) {
	c := fixedCapability{
		positions: map[int][3]float64{1: {7000, 0, 0}},
		failInit:  map[int]bool{2: true, 3: true},
	}
	s := newTestScreener(c)

	r := s.Screen(context.Background(), Request{
		Target:    record(1, 0),
		Neighbors: []tle.Record{record(2, 0), record(3, 0)},
		Start:     testStart,
	})
	if r.ErrorCode != CodeNoValidNeighbors || r.Error != "no valid neighbors propagated" {
		t.Errorf("got (%q, %q)", r.ErrorCode, r.Error)
	}
	if r.WouldHaveCollided || r.NeighborsSelected != 2 {
		t.Errorf("result = %+v", r)
	}
}

func TestScreenEmptyNeighborList(t *testing.T) {
	s := newTestScreener(fixedCapability{positions: map[int][3]float64{1: {7000, 0, 0}}})
	r := s.Screen(context.Background(), Request{Target: record(1, 0), Neighbors: []tle.Record{}, Start: testStart})
	if r.Error != "no valid neighbors propagated" || r.WouldHaveCollided {
		t.Errorf("result = %+v", r)
	}
}

func TestScreenTargetParseFailure(t *testing.T) {
	s := newTestScreener(fixedCapability{})
	bad := record(1, 0)
	bad.Epoch = time.Time{}

	r := s.Screen(context.Background(), Request{Target: bad, Neighbors: []tle.Record{record(2, 0)}, Start: testStart})
	if r.ErrorCode != CodeTargetParse {
		t.Errorf("error code = %q (%s)", r.ErrorCode, r.Error)
	}
}

func TestScreenDefaultsStartToNow(t *testing.T) {
	s := newTestScreener(fixedCapability{positions: map[int][3]float64{1: {7000, 0, 0}, 2: {7002, 0, 0}}})
	fixed := time.Date(2025, 5, 1, 10, 30, 15, 500, time.UTC)
	s.now = func() time.Time { return fixed }

	r := s.Screen(context.Background(), Request{Target: record(1, 0), Neighbors: []tle.Record{record(2, 0)}})
	if !r.HorizonStart.Equal(fixed.Truncate(time.Second)) {
		t.Errorf("horizon start = %v", r.HorizonStart)
	}
}

func TestScreenTruncatesExplicitStart(t *testing.T) {
	s := newTestScreener(fixedCapability{positions: map[int][3]float64{1: {7000, 0, 0}, 2: {7002, 0, 0}}})
	start := testStart.Add(700 * time.Millisecond)

	r := s.Screen(context.Background(), Request{Target: record(1, 0), Neighbors: []tle.Record{record(2, 0)}, Start: start})
	if r.Failed() {
		t.Fatalf("unexpected failure %s: %s", r.ErrorCode, r.Error)
	}
	if !r.HorizonStart.Equal(testStart) {
		t.Errorf("horizon start = %v, want %v", r.HorizonStart, testStart)
	}
	if r.TCA == nil || r.TCA.Nanosecond() != 0 {
		t.Errorf("TCA = %v, want a whole second", r.TCA)
	}
	if w := s.Window(start); !w.Start.Equal(testStart) {
		t.Errorf("Window start = %v", w.Start)
	}
}

func TestScreenCancelled(t *testing.T) {
	s := newTestScreener(fixedCapability{positions: map[int][3]float64{1: {7000, 0, 0}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := s.Screen(ctx, Request{Target: record(1, 0), Neighbors: []tle.Record{record(2, 0)}, Start: testStart})
	if r.ErrorCode != CodeCancelled {
		t.Errorf("error code = %q", r.ErrorCode)
	}
}

func TestScreenBatchKeepsOrder(t *testing.T) {
	positions := map[int][3]float64{}
	for id := 1; id <= 12; id++ {
		positions[id] = [3]float64{7000 + float64(id), 0, 0}
	}
	s := newTestScreener(fixedCapability{positions: positions})
	cfg := s.Config()
	cfg.Concurrency = 3
	s.SetConfig(cfg)

	var reqs []Request
	for id := 1; id <= 10; id++ {
		reqs = append(reqs, Request{
			Target:    record(id, 0),
			Neighbors: []tle.Record{record(id+2, 0)},
			Start:     testStart,
		})
	}

	results := s.ScreenBatch(context.Background(), reqs)
	for i, r := range results {
		if r.TargetID != i+1 {
			t.Errorf("slot %d holds target %d", i, r.TargetID)
		}
		if r.MinDistanceKm == nil || *r.MinDistanceKm != 2 {
			t.Errorf("target %d: distance %v, want 2", r.TargetID, r.MinDistanceKm)
		}
	}
}

func TestSetConfigAffectsThreshold(t *testing.T) {
	s := newTestScreener(fixedCapability{positions: map[int][3]float64{1: {7000, 0, 0}, 2: {7002, 0, 0}}})
	req := Request{Target: record(1, 0), Neighbors: []tle.Record{record(2, 0)}, Start: testStart}

	if r := s.Screen(context.Background(), req); r.WouldHaveCollided {
		t.Fatal("2 km should be clear at default threshold")
	}
	cfg := s.Config()
	cfg.CollisionThresholdKm = 5
	s.SetConfig(cfg)
	if r := s.Screen(context.Background(), req); !r.WouldHaveCollided {
		t.Error("2 km should collide at 5 km threshold")
	}
}
