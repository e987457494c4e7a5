package transform

import (
	"math"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared

	latTolerance  = 1e-12 // radians
	maxIterations = 10
)

// GeodeticPoint is a position on or above the WGS-84 ellipsoid.
// Latitude and Longitude are in degrees, Longitude in [-180, 180];
// Altitude is in km.
type GeodeticPoint struct {
	Time      time.Time
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// ToGeodetic converts a TEME state to the sub-satellite point at time t.
func ToGeodetic(sv propagation.StateVector, t time.Time) GeodeticPoint {
	return ToGeodeticWithGMST(sv, t, GMST(t))
}

// ToGeodeticWithGMST is ToGeodetic with a precomputed GMST angle.
func ToGeodeticWithGMST(sv propagation.StateVector, t time.Time, gmst float64) GeodeticPoint {
	ef := TEMEToECEFWithGMST(sv, gmst)
	lat, lon, alt := ECEFToGeodetic(ef.Position)
	return GeodeticPoint{Time: t, Latitude: lat, Longitude: lon, Altitude: alt}
}

// ECEFToGeodetic converts an Earth-fixed position (km) to geodetic
// latitude and longitude (degrees) and altitude (km). Latitude is found by
// fixed-point iteration, stopping once successive estimates differ by less
// than 1e-12 rad or after 10 iterations.
func ECEFToGeodetic(r [3]float64) (latDeg, lonDeg, altKm float64) {
	x, y, z := r[0], r[1], r[2]
	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	var n float64
	for i := 0; i < maxIterations; i++ {
		sinLat := math.Sin(lat)
		n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		next := math.Atan2(z+wgs84E2*n*sinLat, p)
		done := math.Abs(next-lat) < latTolerance
		lat = next
		if done {
			break
		}
	}

	sinLat, cosLat := math.Sincos(lat)
	n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return lat * 180.0 / math.Pi, normalizeLongitude(lon * 180.0 / math.Pi), alt
}

// normalizeLongitude maps degrees into [-180, 180].
func normalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360.0)
	switch {
	case lon > 180.0:
		lon -= 360.0
	case lon < -180.0:
		lon += 360.0
	}
	return lon
}
