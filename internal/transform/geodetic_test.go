package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
)

// ecefAt places a point at the given geodetic coordinates (degrees, km).
func ecefAt(latDeg, lonDeg, altKm float64) [3]float64 {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	n := wgs84A / math.Sqrt(1-wgs84E2*math.Sin(lat)*math.Sin(lat))
	return [3]float64{
		(n + altKm) * math.Cos(lat) * math.Cos(lon),
		(n + altKm) * math.Cos(lat) * math.Sin(lon),
		(n*(1-wgs84E2) + altKm) * math.Sin(lat),
	}
}

func TestECEFToGeodeticRoundTrip(t *testing.T) {
	tests := []struct {
		lat, lon, alt float64
	}{
		{0, 0, 0},
		{51.6, -0.1, 420},
		{-33.9, 151.2, 550},
		{89.9, 45, 800},
		{-89.9, -120, 800},
		{63.4, 179.9, 35786},
		{12.5, -179.9, 20200},
	}
	for _, tt := range tests {
		lat, lon, alt := ECEFToGeodetic(ecefAt(tt.lat, tt.lon, tt.alt))
		if math.Abs(lat-tt.lat) > 1e-9 || math.Abs(lon-tt.lon) > 1e-9 || math.Abs(alt-tt.alt) > 1e-6 {
			t.Errorf("round trip (%v, %v, %v) = (%.12f, %.12f, %.9f)", tt.lat, tt.lon, tt.alt, lat, lon, alt)
		}
	}
}

func TestECEFToGeodeticPoles(t *testing.T) {
	polar := wgs84A * (1 - wgs84F)
	lat, _, alt := ECEFToGeodetic([3]float64{0, 0, polar + 500})
	if math.Abs(lat-90) > 1e-9 || math.Abs(alt-500) > 1e-6 {
		t.Errorf("north pole = (%v, %v), want (90, 500)", lat, alt)
	}
	lat, _, alt = ECEFToGeodetic([3]float64{0, 0, -(polar + 500)})
	if math.Abs(lat+90) > 1e-9 || math.Abs(alt-500) > 1e-6 {
		t.Errorf("south pole = (%v, %v), want (-90, 500)", lat, alt)
	}
}

func TestECEFToGeodeticMatchesGoSatellite(t *testing.T) {
	positions := [][3]float64{
		{5094.18016, 6127.64465, 6380.34453},
		{-4400.594, 1932.870, 4760.712},
		{2349.895, -14785.938, 0.021},
	}
	for _, pos := range positions {
		lat, lon, alt := ECEFToGeodetic(pos)
		refAlt, _, ref := satellite.ECIToLLA(satellite.Vector3{X: pos[0], Y: pos[1], Z: pos[2]}, 0)
		deg := satellite.LatLongDeg(ref)

		if math.Abs(lat-deg.Latitude) > 1e-6 {
			t.Errorf("lat for %v = %.9f, go-satellite %.9f", pos, lat, deg.Latitude)
		}
		if math.Abs(normalizeLongitude(lon-deg.Longitude)) > 1e-6 {
			t.Errorf("lon for %v = %.9f, go-satellite %.9f", pos, lon, deg.Longitude)
		}
		if math.Abs(alt-refAlt) > 1e-3 {
			t.Errorf("alt for %v = %.6f, go-satellite %.6f", pos, alt, refAlt)
		}
	}
}

func TestToGeodeticRanges(t *testing.T) {
	tm := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 360; i += 7 {
		a := float64(i) * math.Pi / 180
		sv := propagation.StateVector{
			Position: [3]float64{7000 * math.Cos(a), 7000 * math.Sin(a), 3000 * math.Sin(3*a)},
		}
		p := ToGeodetic(sv, tm.Add(time.Duration(i)*time.Minute))
		if p.Latitude < -90 || p.Latitude > 90 {
			t.Errorf("latitude %v out of range", p.Latitude)
		}
		if p.Longitude < -180 || p.Longitude > 180 {
			t.Errorf("longitude %v out of range", p.Longitude)
		}
		if p.Altitude <= 0 {
			t.Errorf("altitude %v should be positive", p.Altitude)
		}
	}
}

func TestToGeodeticWithGMSTZero(t *testing.T) {
	tm := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	sv := propagation.StateVector{Position: [3]float64{6778, 0, 0}}
	p := ToGeodeticWithGMST(sv, tm, 0)
	if math.Abs(p.Latitude) > 1e-12 || math.Abs(p.Longitude) > 1e-12 {
		t.Errorf("sub-point = (%v, %v), want (0, 0)", p.Latitude, p.Longitude)
	}
	if math.Abs(p.Altitude-(6778-wgs84A)) > 1e-9 {
		t.Errorf("altitude = %v, want %v", p.Altitude, 6778-wgs84A)
	}
	if !p.Time.Equal(tm) {
		t.Errorf("Time = %v, want %v", p.Time, tm)
	}
}

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{180, 180},
		{-180, -180},
		{190, -170},
		{-190, 170},
		{540, 180},
		{-350, 10},
	}
	for _, tt := range tests {
		if got := normalizeLongitude(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("normalizeLongitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
