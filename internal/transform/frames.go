// Package transform holds the frame conversions and Earth constants the
// screening pipeline needs.
//
// SGP4 outputs TEME (True Equator Mean Equinox). Conversion to ECEF is a
// Vallado-style rotation by GMST only (TEME → PEF ≈ ECEF), ignoring polar
// motion and the equation of the equinoxes. The error is tens of metres,
// well under the resolution of a geodetic TCA report.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

const (
	// OmegaEarth is Earth's rotation rate in rad/s.
	OmegaEarth = 7.292115146706979e-5

	jdUnixEpoch   = 2440587.5 // 1970-01-01T00:00:00Z
	unixJ2000     = 946728000 // 2000-01-01T12:00:00Z
	secondsPerDay = 86400.0
)

// JulianDate returns the Julian Date of t, counted from the Unix epoch.
func JulianDate(t time.Time) float64 {
	return jdUnixEpoch + float64(t.UnixNano())/1e9/secondsPerDay
}

// GMST returns Greenwich mean sidereal time at t in radians, the angle
// that rotates TEME into the Earth-fixed frame. IAU-82 polynomial in
// Julian centuries of UT1 since J2000 (UTC is used for UT1), evaluated in
// seconds of time.
func GMST(t time.Time) float64 {
	since := t.Sub(time.Unix(unixJ2000, 0)).Seconds()
	c := since / secondsPerDay / 36525
	sec := 67310.54841 + c*(876600*3600+8640184.812866+c*(0.093104-6.2e-6*c))
	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}

// PositionTEME represents a position and velocity in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// PositionECEF represents a position and velocity in the ECEF frame.
type PositionECEF struct {
	X, Y, Z    float64 // meters
	VX, VY, VZ float64 // m/s
}

// TEMEToECEF transforms a TEME position/velocity to ECEF at the given UTC time.
// Input is km and km/s, output meters and m/s.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle (radians).
//
//	r_ECEF = R3(θ) r_TEME
//	v_ECEF = R3(θ) v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	sinG, cosG := math.Sincos(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return PositionECEF{
		X:  x * 1000.0,
		Y:  y * 1000.0,
		Z:  z * 1000.0,
		VX: vx * 1000.0,
		VY: vy * 1000.0,
		VZ: vz * 1000.0,
	}
}

// TEMEToGeodetic returns the sub-satellite point and altitude of a TEME
// position (km) at time t.
func TEMEToGeodetic(pos [3]float64, t time.Time) GeodeticPoint {
	ecef := TEMEToECEF(PositionTEME{X: pos[0], Y: pos[1], Z: pos[2]}, t)
	return ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
}

// ValidateECEF reports whether an ECEF position (meters) is finite and at a
// plausible orbital radius.
func ValidateECEF(pos PositionECEF) bool {
	for _, v := range [...]float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	mag := math.Sqrt(pos.X*pos.X+pos.Y*pos.Y+pos.Z*pos.Z) / 1000.0
	return mag >= MinOrbitRadiusKm && mag <= MaxOrbitRadiusKm
}
