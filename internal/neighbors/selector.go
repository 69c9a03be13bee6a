// Package neighbors selects catalog objects that share an orbital shell
// with a target.
package neighbors

import (
	"math"

	"github.com/DominicTanzillo/Panacea/internal/tle"
	"github.com/DominicTanzillo/Panacea/internal/transform"
)

// Bands are the half-widths of the shell window. Both comparisons are strict.
type Bands struct {
	AltitudeKm float64
	RAANDeg    float64
}

// DefaultBands returns a 50 km altitude band and a 30° RAAN band.
func DefaultBands() Bands {
	return Bands{AltitudeKm: 50, RAANDeg: 30}
}

// Fingerprint identifies an orbital shell.
type Fingerprint struct {
	AltitudeKm float64
	RAANDeg    float64
}

// FingerprintOf derives the shell of rec. ok is false when the record has
// no positive mean motion.
func FingerprintOf(rec tle.Record) (fp Fingerprint, ok bool) {
	alt, ok := transform.ShellAltitudeKm(rec.MeanMotion)
	if !ok {
		return Fingerprint{}, false
	}
	return Fingerprint{AltitudeKm: alt, RAANDeg: rec.RAAN}, true
}

// RAANSeparation returns the circular distance between two node angles in
// degrees, in [0, 180].
func RAANSeparation(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	return math.Min(d, 360-d)
}

// Within reports whether other lies inside the bands around fp.
func (fp Fingerprint) Within(other Fingerprint, b Bands) bool {
	return math.Abs(other.AltitudeKm-fp.AltitudeKm) < b.AltitudeKm &&
		RAANSeparation(fp.RAANDeg, other.RAANDeg) < b.RAANDeg
}

// Select returns the catalog records in the target's shell, in catalog
// order. The target itself and records without a positive catalog ID are
// never selected.
func Select(target tle.Record, catalog []tle.Record, b Bands) []tle.Record {
	ref, ok := FingerprintOf(target)
	if !ok {
		return nil
	}

	var out []tle.Record
	for _, rec := range catalog {
		if rec.CatalogID <= 0 || rec.CatalogID == target.CatalogID {
			continue
		}
		fp, ok := FingerprintOf(rec)
		if !ok || !ref.Within(fp, b) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
