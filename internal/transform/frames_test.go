package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want float64
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"Unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
		// Vallado Example 3-15.
		{"Vallado example date", time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC), 2453101.827411875},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JulianDate(tt.time); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f", tt.time, got, tt.want)
			}
		})
	}
}

// TestGMST checks GMST against the library's GSTimeFromDate, which uses the
// same IAU-82 model.
func TestGMST(t *testing.T) {
	times := []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		time.Date(2026, 2, 6, 4, 1, 0, 0, time.UTC),
	}
	for _, tm := range times {
		our := GMST(tm)
		ref := satellite.GSTimeFromDate(tm.Year(), int(tm.Month()), tm.Day(), tm.Hour(), tm.Minute(), tm.Second())
		if diff := math.Abs(our - ref); diff > 1e-8 {
			t.Errorf("GMST(%v) = %.12f rad, library = %.12f rad (diff=%.2e)", tm, our, ref, diff)
		}
	}
}

// TestTEMEToECEF compares the rotation with the library's ECIToECEF at the
// same GMST.
func TestTEMEToECEF(t *testing.T) {
	tests := []struct {
		name string
		teme PositionTEME
		time time.Time
	}{
		{
			name: "Vallado example 3-15",
			teme: PositionTEME{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "LEO equatorial",
			teme: PositionTEME{X: 6778.0},
			time: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "LEO polar",
			teme: PositionTEME{Z: 6978.0},
			time: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			got := TEMEToECEFWithGMST(tt.teme, gmst)
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.teme.X, Y: tt.teme.Y, Z: tt.teme.Z}, gmst)

			const tolerance = 1.0 // meter
			if math.Abs(got.X-ref.X*1000) > tolerance ||
				math.Abs(got.Y-ref.Y*1000) > tolerance ||
				math.Abs(got.Z-ref.Z*1000) > tolerance {
				t.Errorf("ours [%.3f %.3f %.3f] m, library [%.3f %.3f %.3f] m",
					got.X, got.Y, got.Z, ref.X*1000, ref.Y*1000, ref.Z*1000)
			}
			if !ValidateECEF(got) {
				t.Errorf("ECEF position failed validation: %+v", got)
			}
		})
	}
}

func TestTEMEToECEFVelocity(t *testing.T) {
	ecef := TEMEToECEFWithGMST(PositionTEME{X: 6778.0, VY: 7.5}, 0)

	if math.Abs(ecef.X-6778000.0) > 0.1 {
		t.Errorf("X position: got %.1f, want 6778000.0", ecef.X)
	}
	want := (7.5 - OmegaEarth*6778.0) * 1000.0
	if math.Abs(ecef.VY-want) > 0.1 {
		t.Errorf("VY: got %.1f m/s, want %.1f m/s", ecef.VY, want)
	}
}

func TestValidateECEF(t *testing.T) {
	tests := []struct {
		name  string
		pos   PositionECEF
		valid bool
	}{
		{"LEO", PositionECEF{X: 6778000}, true},
		{"GEO", PositionECEF{X: 42164000}, true},
		{"too low", PositionECEF{X: 5000000}, false},
		{"too high", PositionECEF{X: 60000000}, false},
		{"NaN", PositionECEF{X: math.NaN()}, false},
		{"Inf", PositionECEF{X: math.Inf(1)}, false},
		{"zero", PositionECEF{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateECEF(tt.pos); got != tt.valid {
				t.Errorf("ValidateECEF(%v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}

func TestTEMEToGeodeticAltitude(t *testing.T) {
	// An equatorial point 500 km above the equatorial radius stays on the
	// equator and at 500 km whatever the sidereal angle.
	at := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	g := TEMEToGeodetic([3]float64{EarthRadiusKm + 500, 0, 0}, at)

	if math.Abs(g.LatDeg) > 1e-9 {
		t.Errorf("latitude = %g, want 0", g.LatDeg)
	}
	if math.Abs(g.AltM-500000) > 1e-3 {
		t.Errorf("altitude = %.3f m, want 500000", g.AltM)
	}

	wantLon := -GMST(at) * 180 / math.Pi
	if diff := math.Mod(g.LonDeg-wantLon+540, 360) - 180; math.Abs(diff) > 1e-9 {
		t.Errorf("longitude = %.9f, want %.9f", g.LonDeg, wantLon)
	}
}
