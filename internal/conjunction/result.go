package conjunction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/propagation"
	"github.com/DominicTanzillo/Panacea/internal/transform"
)

// Error codes reported in Result.ErrorCode.
const (
	CodeTargetParse       = "target_parse_failed"
	CodeTargetPropagation = "target_propagation_failed"
	CodeNoValidNeighbors  = "no_valid_neighbors"
	CodeCancelled         = "cancelled"
)

// Result is the verdict of one counterfactual screening.
//
// WouldHaveCollided is false whenever no minimum was found. That default
// is conservative: a result carrying an ErrorCode is missing evidence, not
// evidence of safety, and counts as a possible false negative.
type Result struct {
	TargetID          int        `json:"target_id"`
	MinDistanceKm     *float64   `json:"min_distance_km"`
	TCA               *time.Time `json:"time_of_closest_approach"`
	WouldHaveCollided bool       `json:"would_have_collided"`
	ClosestNeighborID *int       `json:"closest_neighbor_id"`
	NeighborsChecked  int        `json:"n_neighbors_checked"`
	Error             string     `json:"error,omitempty"`
	ErrorCode         string     `json:"error_code,omitempty"`

	NeighborsSelected int       `json:"n_neighbors_selected"`
	Samples           int       `json:"n_samples"`
	HorizonStart      time.Time `json:"horizon_start"`
	TCALocation       *Location `json:"tca_location,omitempty"`
	Model             string    `json:"model,omitempty"`
}

// Location is the target's sub-satellite point at TCA.
type Location struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltKm  float64 `json:"alt_km"`
}

// Failed reports whether the screening produced no verdict.
func (r Result) Failed() bool { return r.ErrorCode != "" }

// Synthesize turns a scan outcome into a Result. err is either the error
// returned by Scan or a failure that happened before scanning; it is
// recorded on the result, never returned.
func Synthesize(targetID int, a Approach, err error, w propagation.Window, thresholdKm float64) Result {
	r := Result{
		TargetID:     targetID,
		Samples:      w.Count(),
		HorizonStart: w.Start.UTC(),
	}
	if err != nil {
		r.ErrorCode, r.Error = classifyError(err)
		return r
	}

	dist := a.MinDistanceKm
	tca := w.At(a.Index).UTC()
	id := a.NeighborID
	geo := transform.TEMEToGeodetic(a.TargetPosition, tca)

	r.MinDistanceKm = &dist
	r.TCA = &tca
	r.ClosestNeighborID = &id
	r.NeighborsChecked = a.Checked
	r.WouldHaveCollided = dist < thresholdKm
	r.TCALocation = &Location{LatDeg: geo.LatDeg, LonDeg: geo.LonDeg, AltKm: geo.AltM / 1000}
	return r
}

func classifyError(err error) (code, msg string) {
	var pe *propagation.ParseError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled, fmt.Sprintf("screening cancelled: %v", err)
	case errors.As(err, &pe):
		return CodeTargetParse, fmt.Sprintf("target TLE parse failed: %v", pe.Err)
	case errors.Is(err, ErrNoValidNeighbors):
		return CodeNoValidNeighbors, ErrNoValidNeighbors.Error()
	case errors.Is(err, propagation.ErrNoSamples):
		return CodeTargetPropagation, "target propagation failed"
	default:
		return CodeTargetPropagation, fmt.Sprintf("target propagation failed: %v", err)
	}
}
