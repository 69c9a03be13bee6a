package propagation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/DominicTanzillo/Panacea/internal/tle"
	"github.com/DominicTanzillo/Panacea/internal/transform"
)

// SGP4 is the full perturbation model backed by
// github.com/joshuaferrara/go-satellite with WGS-72 constants.
//
// The library only exposes a two-line constructor, so discrete elements are
// encoded to canonical two-line text first. That rounds them to column
// precision: angles to 1e-4 degrees (about 12 m along-track in LEO) and
// eccentricity to 1e-7. The library also calls log.Fatal on fields it cannot
// parse, so every line is checked here the way the library reads it before
// it is handed over.
type SGP4 struct{}

// Name implements Capability.
func (SGP4) Name() string { return "sgp4" }

// Initialize implements Capability.
func (s SGP4) Initialize(el Elements, epoch time.Time) (Handle, error) {
	rec := tle.Record{
		CatalogID:    el.CatalogID,
		Epoch:        epoch,
		MeanMotion:   el.MeanMotion / revPerDayToRadPerMin,
		Eccentricity: el.Eccentricity,
		Inclination:  el.Inclination * rad2deg,
		RAAN:         el.RAAN * rad2deg,
		ArgPerigee:   el.ArgPerigee * rad2deg,
		MeanAnomaly:  el.MeanAnomaly * rad2deg,
		BStar:        el.BStar,
	}
	line1, line2, err := tle.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding elements for %d: %w", el.CatalogID, err)
	}
	return s.InitializeTLE(line1, line2)
}

// InitializeTLE implements Capability.
func (SGP4) InitializeTLE(line1, line2 string) (Handle, error) {
	rec, err := tle.ParseLines(line1, line2)
	if err != nil {
		return nil, fmt.Errorf("invalid TLE: %w", err)
	}
	if err := checkLibraryFields(rec.Line1, rec.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for %d: %w", rec.CatalogID, err)
	}

	sat := satellite.TLEToSat(rec.Line1, rec.Line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for %d: code=%d %s", rec.CatalogID, sat.Error, sat.ErrorStr)
	}
	return &sgp4Handle{sat: sat, epoch: rec.Epoch, catalogID: rec.CatalogID}, nil
}

// libraryField is one value read by satellite.ParseTLE. raw is extracted
// exactly as the library extracts it, including its partial space removal.
type libraryField struct {
	name  string
	raw   string
	isInt bool
}

func libraryFields(line1, line2 string) []libraryField {
	squeeze := func(s string) string { return strings.Replace(s, " ", "", 2) }
	return []libraryField{
		{"catalog number", strings.TrimSpace(line1[2:7]), true},
		{"epoch year", line1[18:20], true},
		{"epoch day", line1[20:32], false},
		{"ndot", squeeze(line1[33:43]), false},
		{"nddot", squeeze(line1[44:45] + "." + line1[45:50] + "e" + line1[50:52]), false},
		{"bstar", squeeze(line1[53:54] + "." + line1[54:59] + "e" + line1[59:61]), false},
		{"inclination", squeeze(line2[8:16]), false},
		{"raan", squeeze(line2[17:25]), false},
		{"eccentricity", "." + line2[26:33], false},
		{"arg perigee", squeeze(line2[34:42]), false},
		{"mean anomaly", squeeze(line2[43:51]), false},
		{"mean motion", squeeze(line2[52:63]), false},
	}
}

// checkLibraryFields rejects lines the library would abort on. Both lines
// must already be LineLength columns wide.
func checkLibraryFields(line1, line2 string) error {
	for _, f := range libraryFields(line1, line2) {
		var err error
		if f.isInt {
			_, err = strconv.ParseInt(f.raw, 10, 0)
		} else {
			_, err = strconv.ParseFloat(f.raw, 64)
		}
		if err != nil {
			return fmt.Errorf("invalid %s %q", f.name, f.raw)
		}
	}
	return nil
}

type sgp4Handle struct {
	sat       satellite.Satellite
	epoch     time.Time
	catalogID int
}

func (h *sgp4Handle) Epoch() time.Time { return h.epoch }

// Evaluate propagates to t. The library resolves time to whole seconds.
//
// Propagate takes the satellite by value so SGP4 error codes are not
// visible here; failures are detected from NaN/Inf output and implausible
// radii instead.
func (h *sgp4Handle) Evaluate(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(h.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	p := transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z, VX: vel.X, VY: vel.Y, VZ: vel.Z}
	if !finite(p) {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for %d: output is NaN/Inf", h.catalogID)
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < transform.MinOrbitRadiusKm || mag > transform.MaxOrbitRadiusKm {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for %d: unreasonable position magnitude %.1f km", h.catalogID, mag)
	}
	return p, nil
}

func finite(p transform.PositionTEME) bool {
	for _, v := range [...]float64{p.X, p.Y, p.Z, p.VX, p.VY, p.VZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
