package classify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/crossref"
)

func TestMagnitudeClass(t *testing.T) {
	tests := []struct {
		dv   float64
		want Magnitude
	}{
		{0, Micro},
		{0.49, Micro},
		{0.5, Small},
		{-1.5, Small},
		{2, Medium},
		{9.99, Medium},
		{10, Large},
		{250, Large},
	}
	for _, tt := range tests {
		if got := MagnitudeClass(tt.dv); got != tt.want {
			t.Errorf("MagnitudeClass(%v) = %s, want %s", tt.dv, got, tt.want)
		}
	}
}

func TestConstellation(t *testing.T) {
	r := DefaultRules()
	tests := map[string]string{
		"STARLINK-1007":  "starlink",
		"starlink-30123": "starlink",
		"ONEWEB-0012":    "oneweb",
		"IRIDIUM 106":    "iridium",
		"ISS (ZARYA)":    OtherConstellation,
		"":               OtherConstellation,
	}
	for name, want := range tests {
		if got := r.Constellation(name); got != want {
			t.Errorf("Constellation(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `
constellations:
  - name: kuiper
    pattern: KUIPER
  - name: starlink
    pattern: "^STARLINK"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if got := r.Constellation("KUIPER-P1"); got != "kuiper" {
		t.Errorf("kuiper = %s", got)
	}
	if got := r.Constellation("ONEWEB-0012"); got != OtherConstellation {
		t.Errorf("oneweb with override = %s, want other", got)
	}
}

func TestParseRulesErrors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "constellations: [",
		"bad regex":    "constellations:\n  - name: x\n    pattern: \"(\"\n",
		"missing name": "constellations:\n  - pattern: X\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRules([]byte(body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func history(start time.Time, gaps ...time.Duration) []HistoryEntry {
	out := []HistoryEntry{{DetectedAt: start.Format(time.RFC3339)}}
	t := start
	for _, g := range gaps {
		t = t.Add(g)
		out = append(out, HistoryEntry{DetectedAt: t.Format(time.RFC3339)})
	}
	return out
}

func TestStationkeeping(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	tests := []struct {
		name    string
		history []HistoryEntry
		want    bool
	}{
		{"empty", nil, false},
		{"two entries", history(start, week), false},
		{"regular weekly", history(start, week, week, week), true},
		{"slightly jittered", history(start, week, week+6*time.Hour, week-6*time.Hour), true},
		{"irregular", history(start, time.Hour, 30*24*time.Hour, 2*time.Hour), false},
		{"identical timestamps", history(start, 0, 0), false},
		{"unparseable dropped below minimum", []HistoryEntry{
			{DetectedAt: start.Format(time.RFC3339)},
			{DetectedAt: "yesterday"},
			{DetectedAt: start.Add(week).Format(time.RFC3339)},
		}, false},
		{"unsorted input", []HistoryEntry{
			{DetectedAt: start.Add(2 * week).Format(time.RFC3339)},
			{DetectedAt: start.Format(time.RFC3339)},
			{DetectedAt: start.Add(week).Format(time.RFC3339)},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stationkeeping(tt.history); got != tt.want {
				t.Errorf("Stationkeeping = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyLikelyAvoidance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	regular := history(start, 24*time.Hour, 24*time.Hour, 24*time.Hour)

	tests := []struct {
		name string
		m    Maneuver
		want bool
	}{
		{"small burn", Maneuver{Name: "SENTINEL-1A", DeltaVMS: 0.8}, true},
		{"medium burn", Maneuver{Name: "SENTINEL-1A", DeltaVMS: 3}, false},
		{"small but stationkeeping", Maneuver{Name: "SENTINEL-1A", DeltaVMS: 0.8, History: regular}, false},
		{"starlink stationkeeping under 1", Maneuver{Name: "STARLINK-1007", DeltaVMS: 0.9, History: regular}, true},
		{"starlink over 1 while stationkeeping", Maneuver{Name: "STARLINK-1007", DeltaVMS: 1.5, History: regular}, false},
		{"large", Maneuver{Name: "ONEWEB-0012", DeltaVMS: 40}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify(tt.m)
			if e.LikelyAvoidance != tt.want {
				t.Errorf("LikelyAvoidance = %v, want %v (class %s, sk %v)",
					e.LikelyAvoidance, tt.want, e.MagnitudeClass, e.IsStationkeeping)
			}
		})
	}
}

func TestClassifyDefaults(t *testing.T) {
	e := Classify(Maneuver{NoradID: 44713, Name: "STARLINK-1007", DeltaVMS: 0.3})
	if e.EnrichmentVersion != 1 {
		t.Errorf("version = %d", e.EnrichmentVersion)
	}
	if e.HasCDM || e.CDMPc != nil || e.CDMMissDistanceKm != nil || e.CDMTCA != nil {
		t.Error("confirmation fields set before merge")
	}
	if e.WouldHaveCollided || e.CounterfactualMinDistanceKm != nil || e.CounterfactualClosestNorad != nil {
		t.Error("counterfactual fields set before merge")
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"cdm_pc", "cdm_miss_distance_km", "cdm_tca", "counterfactual_min_distance_km", "counterfactual_closest_norad"} {
		v, ok := m[key]
		if !ok || v != nil {
			t.Errorf("%s = %v, %v; want explicit null", key, v, ok)
		}
	}
}

func TestMergeCounterfactual(t *testing.T) {
	dist := 0.42
	id := 22675
	tca := time.Date(2025, 3, 14, 6, 30, 0, 0, time.UTC)
	e := Classify(Maneuver{NoradID: 44713, Name: "STARLINK-1007", DeltaVMS: 0.3})
	e.MergeCounterfactual(conjunction.Result{
		TargetID:          44713,
		MinDistanceKm:     &dist,
		TCA:               &tca,
		ClosestNeighborID: &id,
		WouldHaveCollided: true,
	})
	if e.CounterfactualMinDistanceKm == nil || *e.CounterfactualMinDistanceKm != 0.42 {
		t.Errorf("distance = %v", e.CounterfactualMinDistanceKm)
	}
	if e.CounterfactualClosestNorad == nil || *e.CounterfactualClosestNorad != 22675 {
		t.Errorf("closest = %v", e.CounterfactualClosestNorad)
	}
	if !e.WouldHaveCollided {
		t.Error("WouldHaveCollided not merged")
	}
	if e.CounterfactualTCA == nil || *e.CounterfactualTCA != "2025-03-14T06:30:00Z" {
		t.Errorf("tca = %v", e.CounterfactualTCA)
	}

	failed := Classify(Maneuver{NoradID: 1})
	failed.MergeCounterfactual(conjunction.Result{TargetID: 1, ErrorCode: conjunction.CodeNoValidNeighbors})
	if failed.CounterfactualError != conjunction.CodeNoValidNeighbors {
		t.Errorf("error = %q", failed.CounterfactualError)
	}
	if failed.WouldHaveCollided || failed.CounterfactualMinDistanceKm != nil {
		t.Error("failed screening produced a verdict")
	}
}

func TestMergeConfirmation(t *testing.T) {
	e := Classify(Maneuver{NoradID: 44713})
	e.MergeConfirmation(nil)
	if e.HasCDM {
		t.Fatal("HasCDM set from empty list")
	}

	e.MergeConfirmation([]crossref.CDM{
		{PC: 1e-5, MissDistanceKm: 0.8, TCA: "2025-03-10T04:00:00"},
		{PC: 4e-4, MissDistanceKm: 0.3, TCA: "2025-03-12T09:30:00"},
		{PC: 2e-6, MissDistanceKm: 0.1, TCA: "2025-03-13T17:15:00"},
	})
	if !e.HasCDM {
		t.Fatal("HasCDM not set")
	}
	if *e.CDMPc != 4e-4 {
		t.Errorf("pc = %v, want max 4e-4", *e.CDMPc)
	}
	if *e.CDMMissDistanceKm != 0.1 {
		t.Errorf("miss = %v, want min 0.1", *e.CDMMissDistanceKm)
	}
	if e.CDMTCA == nil || *e.CDMTCA != "2025-03-12T09:30:00" {
		t.Errorf("tca = %v, want the highest-pc message's", e.CDMTCA)
	}
}
