// Package transform converts SGP4 output into Earth-fixed, geodetic and
// observer-relative coordinates.
//
// Method: Vallado-style rotation using GMST only (TEME → PEF ≈ ECEF).
// Polar motion and the equation of the equinoxes are ignored, which is
// good to a few tens of metres.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
)

// EarthFixed is a position (km) and velocity (km/s) in the Earth-fixed frame.
type EarthFixed struct {
	Time     time.Time
	Position [3]float64
	Velocity [3]float64
}

// TEMEToECEF rotates a TEME state into the Earth-fixed frame at time t.
func TEMEToECEF(sv propagation.StateVector, t time.Time) EarthFixed {
	ef := TEMEToECEFWithGMST(sv, GMST(t))
	ef.Time = t
	return ef
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle (radians).
// Useful when converting many satellites at the same time (compute GMST once).
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(sv propagation.StateVector, gmst float64) EarthFixed {
	sinG, cosG := math.Sincos(gmst)
	r, v := sv.Position, sv.Velocity

	x := r[0]*cosG + r[1]*sinG
	y := -r[0]*sinG + r[1]*cosG
	z := r[2]

	// ω × r_ECEF = [-ω*y, ω*x, 0]
	vx := v[0]*cosG + v[1]*sinG + OmegaEarth*y
	vy := -v[0]*sinG + v[1]*cosG - OmegaEarth*x
	vz := v[2]

	return EarthFixed{
		Time:     sv.Time,
		Position: [3]float64{x, y, z},
		Velocity: [3]float64{vx, vy, vz},
	}
}

// ValidateECEF reports whether an Earth-fixed position is physically
// reasonable for an orbiting satellite: finite and between 6200 km and
// 50000 km from the geocentre.
func ValidateECEF(ef EarthFixed) bool {
	for _, c := range ef.Position {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	mag := norm(ef.Position)
	return mag >= 6200.0 && mag <= 50000.0
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
