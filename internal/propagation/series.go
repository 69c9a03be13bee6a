package propagation

import (
	"math"
	"time"
)

// Window is the sampling grid shared by a target and its neighbours.
type Window struct {
	Start   time.Time
	Horizon time.Duration
	Cadence time.Duration
}

// SampleCount returns floor(horizon/cadence)+1, the start sample included.
func SampleCount(horizon, cadence time.Duration) int {
	if cadence <= 0 || horizon < 0 {
		return 0
	}
	return int(horizon/cadence) + 1
}

// Count returns the nominal number of samples in the window.
func (w Window) Count() int { return SampleCount(w.Horizon, w.Cadence) }

// At returns the absolute time of grid index i.
func (w Window) At(i int) time.Time {
	return w.Start.Add(time.Duration(i) * w.Cadence)
}

// Sample is one evaluated grid point.
type Sample struct {
	Index    int
	Offset   time.Duration
	Position [3]float64 // km, TEME
}

// Series is the ordered output of propagating one object over a window.
// Samples whose evaluation failed are absent, so Index may skip values.
type Series struct {
	CatalogID int
	Samples   []Sample
	Dropped   int
}

// Empty reports whether no sample survived.
func (s Series) Empty() bool { return len(s.Samples) == 0 }

// Propagate evaluates st at every grid point of w. Failed evaluations are
// dropped without retry, so a close approach that falls on a dropped
// sample is not seen by the scanner.
func Propagate(st *State, w Window) Series {
	n := w.Count()
	out := Series{CatalogID: st.CatalogID, Samples: make([]Sample, 0, n)}

	for i := 0; i < n; i++ {
		pos, err := st.Evaluate(w.At(i))
		if err != nil || !finite(pos) {
			out.Dropped++
			continue
		}
		out.Samples = append(out.Samples, Sample{
			Index:    i,
			Offset:   time.Duration(i) * w.Cadence,
			Position: [3]float64{pos.X, pos.Y, pos.Z},
		})
	}
	return out
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
