package propagation

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tle/tletest"
)

func newPropagator(t *testing.T, es tle.ElementSet) *Propagator {
	t.Helper()
	p, err := New(es)
	if err != nil {
		t.Fatalf("New(%s): %v", es.Name, err)
	}
	return p
}

func assertState(t *testing.T, label string, sv StateVector, want [6]float64, posTol, velTol float64) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if d := math.Abs(sv.Position[i] - want[i]); d > posTol {
			t.Errorf("%s: r[%d] = %.8f, want %.8f (diff=%.2e km)", label, i, sv.Position[i], want[i], d)
		}
		if d := math.Abs(sv.Velocity[i] - want[3+i]); d > velTol {
			t.Errorf("%s: v[%d] = %.9f, want %.9f (diff=%.2e km/s)", label, i, sv.Velocity[i], want[3+i], d)
		}
	}
}

// Vanguard 1 is the first case of the published SGP4 verification run.
func TestVanguardReferenceStates(t *testing.T) {
	p := newPropagator(t, tletest.Elements(t, tletest.VanguardName, tletest.VanguardLine1, tletest.VanguardLine2))
	if p.Model() != NearEarth {
		t.Fatalf("Model = %v, want near-earth", p.Model())
	}

	tests := []struct {
		minutes float64
		want    [6]float64
	}{
		{0, tletest.VanguardEpochState},
		{360, [6]float64{-7154.03120202, -3783.17682504, -3536.19412294, 4.741887409, -4.151817765, -2.093935425}},
		{720, [6]float64{-7134.59340119, 6531.68641334, 3260.27186483, -4.113793027, -2.911922039, -2.557327851}},
		{4320, [6]float64{-9060.47373569, 4658.70952502, 813.68673153, -2.232832783, -4.110453490, -3.157345433}},
	}
	for _, tt := range tests {
		sv, err := p.PropagateMinutes(tt.minutes)
		if err != nil {
			t.Fatalf("PropagateMinutes(%v): %v", tt.minutes, err)
		}
		assertState(t, "vanguard", sv, tt.want, 1e-6, 1e-9)
	}
}

func TestDeepSpaceSelection(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
		model        Model
		irez         resonance
	}{
		{tletest.ISSName, tletest.ISSLine1, tletest.ISSLine2, NearEarth, noResonance},
		{tletest.VanguardName, tletest.VanguardLine1, tletest.VanguardLine2, NearEarth, noResonance},
		{tletest.MolniyaName, tletest.MolniyaLine1, tletest.MolniyaLine2, DeepSpace, halfDay},
		{tletest.GEOName, tletest.GEOLine1, tletest.GEOLine2, DeepSpace, synchronous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPropagator(t, tletest.Elements(t, tt.name, tt.line1, tt.line2))
			if p.Model() != tt.model {
				t.Errorf("Model = %v, want %v", p.Model(), tt.model)
			}
			if tt.model == DeepSpace && p.sgp4.deep.irez != tt.irez {
				t.Errorf("resonance = %v, want %v", p.sgp4.deep.irez, tt.irez)
			}
		})
	}
}

func TestMolniyaEpochState(t *testing.T) {
	p := newPropagator(t, tletest.Elements(t, tletest.MolniyaName, tletest.MolniyaLine1, tletest.MolniyaLine2))
	sv, err := p.PropagateMinutes(0)
	if err != nil {
		t.Fatalf("PropagateMinutes: %v", err)
	}
	want := [6]float64{2349.89483350, -14785.93811562, 0.02119378, 2.721488096, -3.256811655, 4.498416672}
	assertState(t, "molniya", sv, want, 1e-6, 1e-9)
}

func TestMolniyaHalfDay(t *testing.T) {
	p := newPropagator(t, tletest.Elements(t, tletest.MolniyaName, tletest.MolniyaLine1, tletest.MolniyaLine2))
	sv, err := p.PropagateMinutes(720)
	if err != nil {
		t.Fatalf("PropagateMinutes: %v", err)
	}
	want := [3]float64{2622.132222, -15125.154649, 474.510484}
	for i := range want {
		if d := math.Abs(sv.Position[i] - want[i]); d > 1e-3 {
			t.Errorf("r[%d] = %.6f, want %.6f", i, sv.Position[i], want[i])
		}
	}
}

func TestGeostationaryState(t *testing.T) {
	p := newPropagator(t, tletest.Elements(t, tletest.GEOName, tletest.GEOLine1, tletest.GEOLine2))
	sv, err := p.PropagateMinutes(0)
	if err != nil {
		t.Fatalf("PropagateMinutes: %v", err)
	}
	want := [6]float64{42080.718522, -2646.863874, 0.818513, 0.193105, 3.068688, 0.000438}
	assertState(t, "geo", sv, want, 1e-3, 1e-6)

	// A day later it is still on the geostationary ring.
	for _, minutes := range []float64{360, 1440, 10 * 1440} {
		sv, err := p.PropagateMinutes(minutes)
		if err != nil {
			t.Fatalf("PropagateMinutes(%v): %v", minutes, err)
		}
		if r := norm3(sv.Position); math.Abs(r-42164) > 50 {
			t.Errorf("t=%v: |r| = %.1f km, want ~42164", minutes, r)
		}
		if v := norm3(sv.Velocity); math.Abs(v-3.0747) > 0.01 {
			t.Errorf("t=%v: |v| = %.4f km/s, want ~3.075", minutes, v)
		}
	}
}

// The in-house engine and go-satellite implement the same model. go-satellite
// drops the fractional seconds of the TLE epoch, so both sides are compared
// at the same minutes since epoch rather than the same wall-clock time.
func TestAgreesWithGoSatellite(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{tletest.ISSName, tletest.ISSLine1, tletest.ISSLine2},
		{tletest.StarlinkName, tletest.StarlinkLine1, tletest.StarlinkLine2},
		{tletest.VanguardName, tletest.VanguardLine1, tletest.VanguardLine2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := tletest.Elements(t, tt.name, tt.line1, tt.line2)
			p := newPropagator(t, es)
			ref := satellite.TLEToSat(tt.line1, tt.line2, satellite.GravityWGS72)

			refEpoch := es.Epoch.Truncate(time.Second)
			for _, off := range []time.Duration{time.Minute, 47 * time.Minute, 6 * time.Hour, 23 * time.Hour} {
				at := refEpoch.Add(off)
				sv, err := p.PropagateMinutes(off.Minutes())
				if err != nil {
					t.Fatalf("PropagateMinutes(%v): %v", off.Minutes(), err)
				}
				pos, vel := satellite.Propagate(ref, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())

				dr := norm3([3]float64{sv.Position[0] - pos.X, sv.Position[1] - pos.Y, sv.Position[2] - pos.Z})
				dv := norm3([3]float64{sv.Velocity[0] - vel.X, sv.Velocity[1] - vel.Y, sv.Velocity[2] - vel.Z})
				if dr > 1.0 {
					t.Errorf("%v: position differs from go-satellite by %.4f km", off, dr)
				}
				if dv > 1e-3 {
					t.Errorf("%v: velocity differs from go-satellite by %.6f km/s", off, dv)
				}
			}
		})
	}
}

func TestPropagateTimeAndIdempotence(t *testing.T) {
	es := tletest.ISS(t)
	p := newPropagator(t, es)

	at := es.Epoch.Add(90 * time.Minute)
	a, err := p.Propagate(at)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Propagate(at)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("repeated Propagate differs: %+v vs %+v", a, b)
	}
	if !a.Time.Equal(at) {
		t.Errorf("Time = %v, want %v", a.Time, at)
	}

	c, err := Propagate(es, at)
	if err != nil {
		t.Fatal(err)
	}
	if c != a {
		t.Errorf("package Propagate = %+v, want %+v", c, a)
	}

	// ISS sits at roughly 420 km.
	if r := norm3(a.Position); r < 6700 || r > 6850 {
		t.Errorf("|r| = %.1f km, want ISS altitude", r)
	}
	if v := norm3(a.Velocity); v < 7.5 || v > 7.8 {
		t.Errorf("|v| = %.3f km/s, want ~7.66", v)
	}
}

func TestPropagateBeforeEpoch(t *testing.T) {
	es := tletest.ISS(t)
	sv, err := Propagate(es, es.Epoch.Add(-3*24*time.Hour))
	if err != nil {
		t.Fatalf("Propagate before epoch: %v", err)
	}
	if r := norm3(sv.Position); r < 6700 || r > 6850 {
		t.Errorf("|r| = %.1f km", r)
	}
}

func TestConcurrentPropagation(t *testing.T) {
	es := tletest.Elements(t, tletest.MolniyaName, tletest.MolniyaLine1, tletest.MolniyaLine2)
	p := newPropagator(t, es)
	at := es.Epoch.Add(5 * 24 * time.Hour)
	want, err := p.Propagate(at)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := p.Propagate(at)
				if err != nil || got != want {
					errs <- "concurrent result differs"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestPeriod(t *testing.T) {
	p := newPropagator(t, tletest.ISS(t))
	got := p.Period().Minutes()
	if math.Abs(got-1440/15.49874301) > 1e-6 {
		t.Errorf("Period = %v min", got)
	}
}

func TestNewRejectsInvalidElements(t *testing.T) {
	base := tletest.ISS(t)
	tests := []struct {
		name   string
		mutate func(*tle.ElementSet)
		reason Reason
	}{
		{"eccentricity one", func(es *tle.ElementSet) { es.Eccentricity = 1 }, ReasonEccentricity},
		{"negative eccentricity", func(es *tle.ElementSet) { es.Eccentricity = -0.1 }, ReasonEccentricity},
		{"zero mean motion", func(es *tle.ElementSet) { es.MeanMotion = 0 }, ReasonMeanMotion},
		{"NaN mean motion", func(es *tle.ElementSet) { es.MeanMotion = math.NaN() }, ReasonMeanMotion},
		{"missing epoch", func(es *tle.ElementSet) { es.Epoch = time.Time{} }, ReasonInvalidElements},
		{"infinite bstar", func(es *tle.ElementSet) { es.BStar = math.Inf(1) }, ReasonInvalidElements},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := base
			tt.mutate(&es)
			_, err := New(es)
			var pe *PropagationError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *PropagationError", err)
			}
			if pe.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", pe.Reason, tt.reason)
			}
			if pe.CatalogNumber != 25544 {
				t.Errorf("CatalogNumber = %d, want 25544", pe.CatalogNumber)
			}
		})
	}
}

// A heavily dragged ISS decays below the surface within two months and
// its eccentricity blows up within a year.
func TestPropagationFailures(t *testing.T) {
	es := tletest.ISS(t)
	es.BStar = 0.01
	p := newPropagator(t, es)

	if _, err := p.PropagateMinutes(1440); err != nil {
		t.Fatalf("one day after epoch: %v", err)
	}

	tests := []struct {
		days   float64
		reason Reason
	}{
		{60, ReasonDecayed},
		{365, ReasonEccentricity},
	}
	for _, tt := range tests {
		_, err := p.PropagateMinutes(tt.days * 1440)
		var pe *PropagationError
		if !errors.As(err, &pe) {
			t.Fatalf("day %v: error = %v, want *PropagationError", tt.days, err)
		}
		if pe.Reason != tt.reason {
			t.Errorf("day %v: Reason = %q, want %q", tt.days, pe.Reason, tt.reason)
		}
		if pe.Minutes != tt.days*1440 {
			t.Errorf("day %v: Minutes = %v", tt.days, pe.Minutes)
		}
		if pe.CatalogNumber != es.CatalogNumber {
			t.Errorf("CatalogNumber = %d", pe.CatalogNumber)
		}
	}
}

func TestModelString(t *testing.T) {
	if NearEarth.String() != "near-earth" || DeepSpace.String() != "deep-space" {
		t.Errorf("unexpected model names %q %q", NearEarth, DeepSpace)
	}
	if Model(7).String() != "unknown" {
		t.Errorf("Model(7) = %q", Model(7))
	}
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
