package propagation

import (
	"fmt"
	"math"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/tle"
	"github.com/DominicTanzillo/Panacea/internal/transform"
)

// revPerDayToRadPerMin converts mean motion from revolutions/day to radians/minute.
const revPerDayToRadPerMin = 2 * math.Pi / 1440.0

// Elements is a discrete element set in the units propagation models expect.
type Elements struct {
	CatalogID    int
	MeanMotion   float64 // rad/min
	Eccentricity float64
	Inclination  float64 // rad
	RAAN         float64 // rad
	ArgPerigee   float64 // rad
	MeanAnomaly  float64 // rad
	BStar        float64 // 1/earth radii
}

// ElementsFromRecord converts a catalog record's degrees and rev/day to
// radians and rad/min.
func ElementsFromRecord(rec tle.Record) Elements {
	return Elements{
		CatalogID:    rec.CatalogID,
		MeanMotion:   rec.MeanMotion * revPerDayToRadPerMin,
		Eccentricity: rec.Eccentricity,
		Inclination:  rec.Inclination * deg2rad,
		RAAN:         rec.RAAN * deg2rad,
		ArgPerigee:   rec.ArgPerigee * deg2rad,
		MeanAnomaly:  rec.MeanAnomaly * deg2rad,
		BStar:        rec.BStar,
	}
}

// Capability initializes propagatable handles. Implementations own all of
// the orbital mechanics; screening code only sees positions.
type Capability interface {
	Name() string
	Initialize(el Elements, epoch time.Time) (Handle, error)
	InitializeTLE(line1, line2 string) (Handle, error)
}

// Handle evaluates one initialized orbit. Handles are immutable and safe
// for concurrent use.
type Handle interface {
	Epoch() time.Time
	// Evaluate returns position (km) and velocity (km/s) in the TEME frame.
	Evaluate(t time.Time) (transform.PositionTEME, error)
}

// NewCapability returns the named propagation model.
func NewCapability(name string) (Capability, error) {
	switch name {
	case "", "sgp4":
		return SGP4{}, nil
	case "kepler":
		return Kepler{}, nil
	default:
		return nil, fmt.Errorf("unknown propagation model %q", name)
	}
}

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)
