package transform

import (
	"math"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
)

// DefaultMinElevation is the elevation (degrees) above which a satellite
// counts as visible.
const DefaultMinElevation = 10.0

// TopocentricView is a satellite as seen by an observer. Azimuth is
// clockwise from north in [0, 360); Elevation is in [-90, 90]; Range is in
// km and RangeRate in km/s (positive when receding).
type TopocentricView struct {
	Time      time.Time
	Azimuth   float64
	Elevation float64
	Range     float64
	RangeRate float64
}

// ToTopocentric computes the look angles from obs to the satellite at t.
func ToTopocentric(sv propagation.StateVector, obs Observer, t time.Time) TopocentricView {
	return ToTopocentricWithGMST(sv, obs, t, GMST(t))
}

// ToTopocentricWithGMST is ToTopocentric with a precomputed GMST angle.
func ToTopocentricWithGMST(sv propagation.StateVector, obs Observer, t time.Time, gmst float64) TopocentricView {
	ef := TEMEToECEFWithGMST(sv, gmst)
	view := ECEFToLookAngles(obs, ef.Position, ef.Velocity)
	view.Time = t
	return view
}

// ECEFToLookAngles computes azimuth, elevation, range and range rate from
// an observer to a satellite given in Earth-fixed km and km/s.
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado Section 4.4.
func ECEFToLookAngles(obs Observer, pos, vel [3]float64) TopocentricView {
	rx := pos[0] - obs.ecef[0]
	ry := pos[1] - obs.ecef[1]
	rz := pos[2] - obs.ecef[2]

	sinLat, cosLat := obs.sinLat, obs.cosLat
	sinLon, cosLon := obs.sinLon, obs.cosLon

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	if rng == 0 {
		return TopocentricView{Elevation: 90}
	}

	el := math.Asin(math.Max(-1, math.Min(1, zenith/rng)))

	// North is -South, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	azDeg := az * 180.0 / math.Pi
	if azDeg >= 360.0 {
		azDeg = 0
	}

	// The observer is fixed in this frame, so the relative velocity is
	// the satellite's Earth-fixed velocity.
	rate := (rx*vel[0] + ry*vel[1] + rz*vel[2]) / rng

	return TopocentricView{
		Azimuth:   azDeg,
		Elevation: el * 180.0 / math.Pi,
		Range:     rng,
		RangeRate: rate,
	}
}

// Visible reports whether the view is strictly above minElevation degrees.
func Visible(view TopocentricView, minElevation float64) bool {
	return view.Elevation > minElevation
}
