package transform

import "math"

const (
	// EarthMu is the standard gravitational parameter for Earth in km^3/s^2.
	EarthMu = 398600.4418

	// EarthRadiusKm is the WGS-84 equatorial radius.
	EarthRadiusKm = 6378.137

	// MinOrbitRadiusKm and MaxOrbitRadiusKm bound plausible geocentric
	// distances for catalogued Earth orbiters, LEO through GEO.
	MinOrbitRadiusKm = 6200.0
	MaxOrbitRadiusKm = 50000.0
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = EarthRadiusKm * 1000  // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ShellAltitudeKm returns the altitude above the equatorial radius of the
// semi-major axis implied by mean motion (rev/day) through Kepler's third
// law. The second return is false when mean motion is not positive.
func ShellAltitudeKm(meanMotionRevPerDay float64) (float64, bool) {
	if !(meanMotionRevPerDay > 0) {
		return 0, false
	}
	n := meanMotionRevPerDay * 2 * math.Pi / 86400.0 // rad/s
	a := math.Cbrt(EarthMu / (n * n))
	return a - EarthRadiusKm, true
}

// GeodeticPoint holds a geodetic position (latitude/longitude in degrees, altitude in meters).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// GeodeticToECEF converts a point on or above the WGS-84 ellipsoid to ECEF meters.
func GeodeticToECEF(p GeodeticPoint) (x, y, z float64) {
	lat := p.LatDeg * math.Pi / 180.0
	lon := p.LonDeg * math.Pi / 180.0

	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (N + p.AltM) * cosLat * cosLon
	y = (N + p.AltM) * cosLat * sinLon
	z = (N*(1-wgs84E2) + p.AltM) * sinLat
	return x, y, z
}

// ECEFToGeodetic converts ECEF coordinates (meters) to geodetic coordinates
// using the iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func ECEFToGeodetic(x, y, z float64) GeodeticPoint {
	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltM:   alt,
	}
}
