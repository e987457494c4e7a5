package transform

import (
	"fmt"
	"math"
)

// Observer limits.
const (
	MinObserverElevation = -500.0   // metres
	MaxObserverElevation = 10_000.0 // metres
)

// InvalidObserverError reports an observer coordinate outside its domain.
type InvalidObserverError struct {
	Field string
	Value float64
	Range string
}

func (e *InvalidObserverError) Error() string {
	return fmt.Sprintf("invalid observer %s %v: must be %s", e.Field, e.Value, e.Range)
}

// Observer is a fixed point on the ground. The Earth-fixed position is
// computed once so it can be reused across many look-angle calculations.
type Observer struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees
	Elevation float64 // metres above the WGS-84 ellipsoid

	sinLat, cosLat, sinLon, cosLon float64
	ecef                           [3]float64 // km
}

// NewObserver validates and builds an Observer. Latitude must lie in
// [-90, 90], longitude in [-180, 360) and elevation in [-500, 10000] m.
func NewObserver(latDeg, lonDeg, elevationM float64) (Observer, error) {
	switch {
	case math.IsNaN(latDeg) || latDeg < -90 || latDeg > 90:
		return Observer{}, &InvalidObserverError{Field: "latitude", Value: latDeg, Range: "in [-90, 90]"}
	case math.IsNaN(lonDeg) || lonDeg < -180 || lonDeg >= 360:
		return Observer{}, &InvalidObserverError{Field: "longitude", Value: lonDeg, Range: "in [-180, 360)"}
	case math.IsNaN(elevationM) || elevationM < MinObserverElevation || elevationM > MaxObserverElevation:
		return Observer{}, &InvalidObserverError{Field: "elevation", Value: elevationM, Range: "in [-500, 10000] m"}
	}

	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	h := elevationM / 1000.0

	return Observer{
		Latitude:  latDeg,
		Longitude: lonDeg,
		Elevation: elevationM,
		sinLat:    sinLat,
		cosLat:    cosLat,
		sinLon:    sinLon,
		cosLon:    cosLon,
		ecef: [3]float64{
			(n + h) * cosLat * cosLon,
			(n + h) * cosLat * sinLon,
			(n*(1-wgs84E2) + h) * sinLat,
		},
	}, nil
}

// ECEF returns the observer's Earth-fixed position in km.
func (o Observer) ECEF() [3]float64 {
	return o.ecef
}
