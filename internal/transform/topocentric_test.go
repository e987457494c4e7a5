package transform

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
)

func mustObserver(t *testing.T, lat, lon, elev float64) Observer {
	t.Helper()
	obs, err := NewObserver(lat, lon, elev)
	if err != nil {
		t.Fatalf("NewObserver(%v, %v, %v): %v", lat, lon, elev, err)
	}
	return obs
}

func TestNewObserver_ECEFMagnitude(t *testing.T) {
	// Observer at sea level on the equator sits on the semi-major axis.
	pos := mustObserver(t, 0, 0, 0).ECEF()
	if math.Abs(norm(pos)-6378.137) > 1e-6 {
		t.Errorf("equatorial observer ECEF magnitude = %.6f km, want 6378.137 km", norm(pos))
	}

	// Observer at north pole: polar radius.
	pos = mustObserver(t, 90, 0, 0).ECEF()
	if math.Abs(norm(pos)-6356.7523) > 1e-3 {
		t.Errorf("polar observer ECEF magnitude = %.4f km, want ~6356.752 km", norm(pos))
	}
}

func TestNewObserver_Elevation(t *testing.T) {
	p0 := mustObserver(t, 0, 0, 0).ECEF()
	p100 := mustObserver(t, 0, 0, 100).ECEF()
	if diff := norm(p100) - norm(p0); math.Abs(diff-0.1) > 1e-9 {
		t.Errorf("elevation difference = %.9f km, want 0.1 km", diff)
	}
}

func TestNewObserver_Validation(t *testing.T) {
	tests := []struct {
		name          string
		lat, lon, elv float64
		field         string
	}{
		{"valid", 40.7, -74.0, 10, ""},
		{"lat edge north", 90, 0, 0, ""},
		{"lat edge south", -90, 0, 0, ""},
		{"lon 0..360 form", 0, 359.9, 0, ""},
		{"lon west edge", 0, -180, 0, ""},
		{"elevation edges", 0, 0, -500, ""},
		{"elevation top", 0, 0, 10000, ""},
		{"lat too high", 90.01, 0, 0, "latitude"},
		{"lat too low", -91, 0, 0, "latitude"},
		{"lat NaN", math.NaN(), 0, 0, "latitude"},
		{"lon 360", 0, 360, 0, "longitude"},
		{"lon too low", 0, -180.5, 0, "longitude"},
		{"lon Inf", 0, math.Inf(1), 0, "longitude"},
		{"elevation too low", 0, 0, -501, "elevation"},
		{"elevation too high", 0, 0, 10001, "elevation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewObserver(tt.lat, tt.lon, tt.elv)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var oe *InvalidObserverError
			if !errors.As(err, &oe) {
				t.Fatalf("error = %v, want *InvalidObserverError", err)
			}
			if oe.Field != tt.field {
				t.Errorf("Field = %q, want %q", oe.Field, tt.field)
			}
		})
	}
}

func TestECEFToLookAngles_DirectlyOverhead(t *testing.T) {
	obs := mustObserver(t, 0, 0, 0)
	sat := ecefAt(0, 0, 400)

	la := ECEFToLookAngles(obs, sat, [3]float64{})
	if math.Abs(la.Elevation-90.0) > 1e-6 {
		t.Errorf("overhead elevation = %.6f deg, want 90", la.Elevation)
	}
	if math.Abs(la.Range-400.0) > 1e-6 {
		t.Errorf("overhead range = %.6f km, want 400", la.Range)
	}
}

func TestECEFToLookAngles_BelowHorizon(t *testing.T) {
	// Antipodal satellite is straight down.
	obs := mustObserver(t, 0, 0, 0)
	la := ECEFToLookAngles(obs, ecefAt(0, 180, 400), [3]float64{})
	if math.Abs(la.Elevation+90) > 1e-6 {
		t.Errorf("antipodal elevation = %.6f, want -90", la.Elevation)
	}
	if Visible(la, DefaultMinElevation) {
		t.Error("antipodal satellite reported visible")
	}
}

func TestECEFToLookAngles_AzimuthDirections(t *testing.T) {
	obs := mustObserver(t, 0, 0, 0)

	tests := []struct {
		name     string
		sat      [3]float64
		azimuth  float64
		maxError float64
	}{
		{"north", ecefAt(10, 0, 400), 0, 1e-6},
		{"east", ecefAt(0, 10, 400), 90, 1e-6},
		{"south", ecefAt(-10, 0, 400), 180, 1e-6},
		{"west", ecefAt(0, -10, 400), 270, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := ECEFToLookAngles(obs, tt.sat, [3]float64{})
			diff := math.Abs(la.Azimuth - tt.azimuth)
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > tt.maxError {
				t.Errorf("azimuth = %.6f deg, want %.1f", la.Azimuth, tt.azimuth)
			}
			if la.Azimuth < 0 || la.Azimuth >= 360 {
				t.Errorf("azimuth %v outside [0, 360)", la.Azimuth)
			}
		})
	}
}

func TestECEFToLookAngles_RangeRate(t *testing.T) {
	obs := mustObserver(t, 0, 0, 0)
	sat := ecefAt(0, 0, 400)

	up := ECEFToLookAngles(obs, sat, [3]float64{1, 0, 0})
	if math.Abs(up.RangeRate-1) > 1e-9 {
		t.Errorf("receding range rate = %v, want 1", up.RangeRate)
	}
	down := ECEFToLookAngles(obs, sat, [3]float64{-2, 0, 0})
	if math.Abs(down.RangeRate+2) > 1e-9 {
		t.Errorf("approaching range rate = %v, want -2", down.RangeRate)
	}
	across := ECEFToLookAngles(obs, sat, [3]float64{0, 7.5, 0})
	if math.Abs(across.RangeRate) > 1e-9 {
		t.Errorf("transverse range rate = %v, want 0", across.RangeRate)
	}
}

func TestToTopocentricMatchesGeodetic(t *testing.T) {
	// A satellite directly above the observer's sub-point must be at zenith
	// regardless of GMST.
	tm := time.Date(2025, 3, 8, 6, 0, 0, 0, time.UTC)
	gmst := GMST(tm)
	obs := mustObserver(t, 35, 139.7, 40)

	ef := ecefAt(35, 139.7, 550)
	sinG, cosG := math.Sincos(gmst)
	sv := propagation.StateVector{Position: [3]float64{
		ef[0]*cosG - ef[1]*sinG,
		ef[0]*sinG + ef[1]*cosG,
		ef[2],
	}}

	view := ToTopocentric(sv, obs, tm)
	if math.Abs(view.Elevation-90) > 1e-6 {
		t.Errorf("elevation = %v, want 90", view.Elevation)
	}
	if math.Abs(view.Range-(550-0.04)) > 1e-6 {
		t.Errorf("range = %v, want %v", view.Range, 550-0.04)
	}
	if !view.Time.Equal(tm) {
		t.Errorf("Time = %v, want %v", view.Time, tm)
	}

	p := ToGeodetic(sv, tm)
	if math.Abs(p.Latitude-35) > 1e-9 || math.Abs(p.Longitude-139.7) > 1e-9 {
		t.Errorf("sub-point = (%v, %v), want (35, 139.7)", p.Latitude, p.Longitude)
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		elevation float64
		want      bool
	}{
		{90, true},
		{10.0001, true},
		{10, false},
		{9.9999, false},
		{-90, false},
	}
	for _, tt := range tests {
		got := Visible(TopocentricView{Elevation: tt.elevation}, DefaultMinElevation)
		if got != tt.want {
			t.Errorf("Visible(el=%v) = %v, want %v", tt.elevation, got, tt.want)
		}
	}
}
