// Package classify labels detected maneuvers as likely collision avoidance
// or routine, and merges counterfactual screening and CDM evidence into one
// enrichment record per maneuver.
package classify

import (
	"math"
	"sort"

	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/crossref"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

// EnrichmentVersion tags the record layout.
const EnrichmentVersion = 1

const (
	stationkeepingMaxCV = 0.3
	minHistory          = 3
)

// HistoryEntry is one earlier maneuver of the same object.
type HistoryEntry struct {
	DetectedAt string `json:"detected_at"`
}

// Maneuver is a detected maneuver event.
type Maneuver struct {
	NoradID     int            `json:"norad_id"`
	Name        string         `json:"name"`
	DeltaVMS    float64        `json:"delta_v_m_s"`
	DetectedAt  string         `json:"detected_at,omitempty"`
	PreManeuver *tle.Record    `json:"pre_maneuver,omitempty"`
	History     []HistoryEntry `json:"history,omitempty"`
}

// Enrichment is a maneuver with classification and evidence fields.
// Pointer fields are null until the matching collaborator has reported.
type Enrichment struct {
	NoradID    int     `json:"norad_id"`
	Name       string  `json:"name"`
	DeltaVMS   float64 `json:"delta_v_m_s"`
	DetectedAt string  `json:"detected_at,omitempty"`
	RunID      string  `json:"run_id,omitempty"`

	MagnitudeClass    Magnitude `json:"magnitude_class"`
	Constellation     string    `json:"constellation"`
	IsStationkeeping  bool      `json:"is_stationkeeping"`
	LikelyAvoidance   bool      `json:"likely_avoidance"`
	EnrichmentVersion int       `json:"enrichment_version"`

	HasCDM            bool     `json:"has_cdm"`
	CDMPc             *float64 `json:"cdm_pc"`
	CDMMissDistanceKm *float64 `json:"cdm_miss_distance_km"`
	CDMTCA            *string  `json:"cdm_tca"`

	CounterfactualMinDistanceKm *float64              `json:"counterfactual_min_distance_km"`
	WouldHaveCollided           bool                  `json:"would_have_collided"`
	CounterfactualClosestNorad  *int                  `json:"counterfactual_closest_norad"`
	CounterfactualError         string                `json:"counterfactual_error,omitempty"`
	CounterfactualTCA           *string               `json:"counterfactual_tca,omitempty"`
	CounterfactualLocation      *conjunction.Location `json:"counterfactual_tca_location,omitempty"`
}

// Classify labels m using the rules table.
func (r *Rules) Classify(m Maneuver) Enrichment {
	mag := MagnitudeClass(m.DeltaVMS)
	constellation := r.Constellation(m.Name)
	sk := Stationkeeping(m.History)

	likely := !sk && (mag == Micro || mag == Small) && m.DeltaVMS < 5
	// Starlink avoidance burns are typically well under 1 m/s.
	if constellation == "starlink" && m.DeltaVMS < 1 {
		likely = true
	}

	return Enrichment{
		NoradID:           m.NoradID,
		Name:              m.Name,
		DeltaVMS:          m.DeltaVMS,
		DetectedAt:        m.DetectedAt,
		MagnitudeClass:    mag,
		Constellation:     constellation,
		IsStationkeeping:  sk,
		LikelyAvoidance:   likely,
		EnrichmentVersion: EnrichmentVersion,
	}
}

var defaultRules = DefaultRules()

// Classify labels m using DefaultRules.
func Classify(m Maneuver) Enrichment {
	return defaultRules.Classify(m)
}

// Stationkeeping reports whether past maneuvers are regular enough to be
// scheduled orbit maintenance: at least three parseable timestamps whose
// intervals have a coefficient of variation below 0.3.
func Stationkeeping(history []HistoryEntry) bool {
	if len(history) < minHistory {
		return false
	}

	var ts []float64
	for _, h := range history {
		t, err := tle.ParseEpoch(h.DetectedAt)
		if err != nil {
			continue
		}
		ts = append(ts, float64(t.UnixNano())/1e9)
	}
	if len(ts) < minHistory {
		return false
	}
	sort.Float64s(ts)

	intervals := make([]float64, len(ts)-1)
	var sum float64
	for i := 1; i < len(ts); i++ {
		intervals[i-1] = ts[i] - ts[i-1]
		sum += intervals[i-1]
	}
	mean := sum / float64(len(intervals))
	if mean <= 0 {
		return false
	}

	var sq float64
	for _, d := range intervals {
		sq += (d - mean) * (d - mean)
	}
	std := math.Sqrt(sq / float64(len(intervals)))
	return std/mean < stationkeepingMaxCV
}

// MergeCounterfactual copies a screening verdict into e. A failed
// screening leaves the distance fields null and records the error code.
func (e *Enrichment) MergeCounterfactual(r conjunction.Result) {
	e.CounterfactualMinDistanceKm = r.MinDistanceKm
	e.CounterfactualClosestNorad = r.ClosestNeighborID
	e.WouldHaveCollided = r.WouldHaveCollided
	e.CounterfactualError = r.ErrorCode
	e.CounterfactualLocation = r.TCALocation
	if r.TCA != nil {
		s := r.TCA.UTC().Format("2006-01-02T15:04:05Z07:00")
		e.CounterfactualTCA = &s
	}
}

// MergeConfirmation records CDM evidence. The reported probability and TCA
// come from the highest-probability message; the miss distance is the
// smallest among cdms.
func (e *Enrichment) MergeConfirmation(cdms []crossref.CDM) {
	if len(cdms) == 0 {
		return
	}
	top := cdms[0]
	miss := top.MissDistanceKm
	for _, c := range cdms[1:] {
		if c.PC > top.PC {
			top = c
		}
		miss = min(miss, c.MissDistanceKm)
	}
	pc, tca := top.PC, top.TCA
	e.HasCDM = true
	e.CDMPc = &pc
	e.CDMMissDistanceKm = &miss
	e.CDMTCA = &tca
}
