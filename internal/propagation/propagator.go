package propagation

import (
	"math"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/tle"
)

const (
	deg2rad = math.Pi / 180.0

	// sgp4Epoch is the zero of the SGP4 epoch scale, 1949 December 31 00:00 UT.
	sgp4Epoch = 2433281.5
)

var sgp4EpochTime = time.Date(1949, time.December, 31, 0, 0, 0, 0, time.UTC)

// Propagator evaluates one element set. It is immutable after New and safe
// for concurrent use; identical inputs always produce identical outputs.
type Propagator struct {
	elements tle.ElementSet
	sgp4     *sgp4Model
}

// New initialises SGP4 for es, choosing the near-Earth or deep-space model
// from the orbital period.
func New(es tle.ElementSet) (*Propagator, error) {
	fail := func(reason Reason, detail string) (*Propagator, error) {
		return nil, &PropagationError{Reason: reason, CatalogNumber: es.CatalogNumber, Detail: detail}
	}

	switch {
	case es.Epoch.IsZero():
		return fail(ReasonInvalidElements, "missing epoch")
	case !(es.MeanMotion > 0) || math.IsInf(es.MeanMotion, 0):
		return fail(ReasonMeanMotion, "mean motion must be positive")
	case !(es.Eccentricity >= 0 && es.Eccentricity < 1):
		return fail(ReasonEccentricity, "eccentricity must be in [0,1)")
	}
	for _, v := range []float64{es.Inclination, es.RAAN, es.ArgPerigee, es.MeanAnomaly, es.BStar} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fail(ReasonInvalidElements, "non-finite element")
		}
	}

	model, code := newModel(meanElements{
		epoch: float64(es.Epoch.Sub(sgp4EpochTime)) / float64(24*time.Hour),
		bstar: es.BStar,
		ecco:  es.Eccentricity,
		argpo: es.ArgPerigee * deg2rad,
		inclo: es.Inclination * deg2rad,
		mo:    es.MeanAnomaly * deg2rad,
		no:    es.MeanMotion * twoPi / minutesPerDay,
		nodeo: es.RAAN * deg2rad,
	})
	if code != errNone {
		return fail(code.reason(), "initialisation")
	}
	return &Propagator{elements: es, sgp4: model}, nil
}

// Model reports which SGP4 branch this propagator runs.
func (p *Propagator) Model() Model {
	return p.sgp4.model
}

// Elements returns the element set the propagator was built from.
func (p *Propagator) Elements() tle.ElementSet {
	return p.elements
}

// Period is the nominal orbital period from the element set mean motion.
func (p *Propagator) Period() time.Duration {
	return time.Duration(p.elements.PeriodMinutes() * float64(time.Minute))
}

// Propagate returns the TEME state at t.
func (p *Propagator) Propagate(t time.Time) (StateVector, error) {
	sv, err := p.PropagateMinutes(minutesSince(p.elements.Epoch, t))
	if err != nil {
		return StateVector{}, err
	}
	sv.Time = t
	return sv, nil
}

// PropagateMinutes returns the TEME state tsince minutes after epoch.
func (p *Propagator) PropagateMinutes(tsince float64) (StateVector, error) {
	r, v, code := p.sgp4.propagate(tsince)
	if code != errNone {
		return StateVector{}, &PropagationError{
			Reason:        code.reason(),
			CatalogNumber: p.elements.CatalogNumber,
			Minutes:       tsince,
		}
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(r[i]) || math.IsInf(r[i], 0) || math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return StateVector{}, &PropagationError{
				Reason:        ReasonInvalidElements,
				CatalogNumber: p.elements.CatalogNumber,
				Minutes:       tsince,
				Detail:        "non-finite state",
			}
		}
	}
	return StateVector{
		Time:     p.elements.Epoch.Add(time.Duration(tsince * float64(time.Minute))),
		Position: r,
		Velocity: v,
	}, nil
}

// Propagate initialises a propagator for es and evaluates it at t.
func Propagate(es tle.ElementSet, t time.Time) (StateVector, error) {
	p, err := New(es)
	if err != nil {
		return StateVector{}, err
	}
	return p.Propagate(t)
}
