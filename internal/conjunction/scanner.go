// Package conjunction finds the closest approach between a target and its
// neighbours and turns it into a screening verdict.
package conjunction

import (
	"errors"
	"math"

	"github.com/DominicTanzillo/Panacea/internal/propagation"
)

// ErrNoValidNeighbors means no neighbour produced a single sample pair with
// the target.
var ErrNoValidNeighbors = errors.New("no valid neighbors propagated")

// Approach is the global closest approach found by Scan.
type Approach struct {
	MinDistanceKm  float64
	Index          int // grid index of the minimum
	NeighborID     int
	TargetPosition [3]float64 // km, TEME, at Index
	Checked        int        // neighbours with at least one sample pair
}

// candidate is one neighbour's local minimum.
type candidate struct {
	distance float64
	index    int
	id       int
	position [3]float64
}

// beats is a strict total order: smaller distance, then earlier index,
// then smaller neighbour id.
func (c candidate) beats(o candidate) bool {
	if c.distance != o.distance {
		return c.distance < o.distance
	}
	if c.index != o.index {
		return c.index < o.index
	}
	return c.id < o.id
}

// Scan returns the closest approach of target to any neighbour. Samples are
// paired by grid index, so gaps in either series never misalign time. The
// result is independent of the order of neighbors.
func Scan(target propagation.Series, neighbors []propagation.Series) (Approach, error) {
	var (
		best    candidate
		found   bool
		checked int
	)
	for _, n := range neighbors {
		c, ok := localMinimum(target, n)
		if !ok {
			continue
		}
		checked++
		if !found || c.beats(best) {
			best = c
			found = true
		}
	}
	if !found {
		return Approach{}, ErrNoValidNeighbors
	}
	return Approach{
		MinDistanceKm:  best.distance,
		Index:          best.index,
		NeighborID:     best.id,
		TargetPosition: best.position,
		Checked:        checked,
	}, nil
}

// localMinimum walks both series in grid order and keeps the earliest
// minimum distance.
func localMinimum(target, neighbor propagation.Series) (candidate, bool) {
	ts, ns := target.Samples, neighbor.Samples
	best := candidate{distance: math.Inf(1), id: neighbor.CatalogID}
	paired := false

	for i, j := 0, 0; i < len(ts) && j < len(ns); {
		switch {
		case ts[i].Index < ns[j].Index:
			i++
		case ts[i].Index > ns[j].Index:
			j++
		default:
			d := propagation.Distance(ts[i].Position, ns[j].Position)
			if !paired || d < best.distance {
				best.distance = d
				best.index = ts[i].Index
				best.position = ts[i].Position
			}
			paired = true
			i++
			j++
		}
	}
	return best, paired
}
