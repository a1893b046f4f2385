// Package transform converts propagation output into ground-referenced
// coordinates. SGP4 emits positions in the inertial TEME frame; the tracker
// needs geodetic latitude/longitude/altitude for display and alerting.
//
// The frame rotation uses GMST only (TEME → PEF ≈ ECEF), ignoring polar
// motion and the equation of the equinoxes. The resulting error is tens of
// meters, well inside the few-kilometer accuracy target.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import "math"

// WGS-84 ellipsoid parameters, in kilometers.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Geodetic is a position relative to the WGS-84 ellipsoid.
// Latitude is in [-90, 90] degrees, longitude in (-180, 180] degrees,
// altitude in kilometers above the ellipsoid.
type Geodetic struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// TEMEToGeodetic converts a TEME position (km) to geodetic coordinates using
// a precomputed GMST angle (radians). Callers propagating a whole batch to
// the same instant should compute GMST once.
func TEMEToGeodetic(x, y, z, gmst float64) Geodetic {
	// Rotate about Z by GMST: r_ECEF = R3(θ) * r_TEME.
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	xe := x*cosG + y*sinG
	ye := -x*sinG + y*cosG
	ze := z

	return ECEFToGeodetic(xe, ye, ze)
}

// ECEFToGeodetic converts ECEF coordinates (km) to geodetic coordinates via
// the iterative method, which converges in a few iterations for Earth orbits.
func ECEFToGeodetic(x, y, z float64) Geodetic {
	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: NormalizeLonDeg(lon * 180.0 / math.Pi),
		AltKm:  alt,
	}
}

// NormalizeLonDeg wraps a longitude in degrees into (-180, 180].
func NormalizeLonDeg(lon float64) float64 {
	lon = math.Mod(lon, 360.0)
	if lon > 180.0 {
		lon -= 360.0
	} else if lon <= -180.0 {
		lon += 360.0
	}
	return lon
}
