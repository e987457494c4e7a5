package tracking

import (
	"context"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riyagpt0251/SatTrackAI/internal/passes"
	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

var tracer = otel.Tracer("github.com/riyagpt0251/SatTrackAI/internal/tracking")

// Position is a satellite's sub-point and speed at one instant.
type Position struct {
	Name          string    `json:"name"`
	CatalogNumber int       `json:"catalog_number"`
	Time          time.Time `json:"time"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Altitude      float64   `json:"altitude_km"`
	Speed         float64   `json:"speed_km_s"`
}

func positionOf(name string, number int, sv propagation.StateVector, pt transform.GeodeticPoint) Position {
	v := sv.Velocity
	return Position{
		Name:          name,
		CatalogNumber: number,
		Time:          pt.Time,
		Latitude:      pt.Latitude,
		Longitude:     pt.Longitude,
		Altitude:      pt.Altitude,
		Speed:         math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]),
	}
}

// Position returns the geodetic position of name at t (zero t means now).
func (s *Service) Position(name string, t time.Time) (Position, error) {
	t = s.orNow(t)
	p, err := s.propagator(name)
	if err != nil {
		return Position{}, err
	}
	sv, err := p.Propagate(t)
	if err != nil {
		return Position{}, err
	}
	es := p.Elements()
	return positionOf(es.Name, es.CatalogNumber, sv, transform.ToGeodetic(sv, t)), nil
}

// Track samples the ground track of name: samples points, step apart,
// from start (zero start means now).
func (s *Service) Track(name string, start time.Time, samples int, step time.Duration) ([]Position, error) {
	if samples <= 0 {
		samples = s.config.TrackSamples
	}
	if step == 0 {
		step = s.config.TrackStep
	}
	switch {
	case samples > s.config.MaxTrackSamples:
		return nil, &RequestError{Field: "samples", Reason: "at most " + strconv.Itoa(s.config.MaxTrackSamples) + " points per request"}
	case step < 0:
		return nil, &RequestError{Field: "step", Reason: "must be positive"}
	}

	start = s.orNow(start)
	p, err := s.propagator(name)
	if err != nil {
		return nil, err
	}
	es := p.Elements()

	out := make([]Position, 0, samples)
	for i := 0; i < samples; i++ {
		t := start.Add(time.Duration(i) * step)
		sv, err := p.Propagate(t)
		if err != nil {
			return nil, err
		}
		out = append(out, positionOf(es.Name, es.CatalogNumber, sv, transform.ToGeodetic(sv, t)))
	}
	return out, nil
}

// Look is a topocentric view with its visibility classification.
type Look struct {
	Name          string       `json:"name"`
	CatalogNumber int          `json:"catalog_number"`
	Observer      ObserverInfo `json:"observer"`
	Time          time.Time    `json:"time"`
	Azimuth       float64      `json:"azimuth"`
	Elevation     float64      `json:"elevation"`
	Range         float64      `json:"range_km"`
	RangeRate     float64      `json:"range_rate_km_s"`
	MinElevation  float64      `json:"min_elevation"`
	Visible       bool         `json:"visible"`
}

// ObserverInfo echoes the observer back to clients.
type ObserverInfo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation_m"`
}

func observerOf(obs transform.Observer) ObserverInfo {
	return ObserverInfo{Latitude: obs.Latitude, Longitude: obs.Longitude, Elevation: obs.Elevation}
}

// Look computes the view of name from obs at t. Visible is true when the
// elevation exceeds minElevation.
func (s *Service) Look(name string, obs transform.Observer, t time.Time, minElevation float64) (Look, error) {
	t = s.orNow(t)
	p, err := s.propagator(name)
	if err != nil {
		return Look{}, err
	}
	sv, err := p.Propagate(t)
	if err != nil {
		return Look{}, err
	}
	view := transform.ToTopocentric(sv, obs, t)
	es := p.Elements()
	return Look{
		Name:          es.Name,
		CatalogNumber: es.CatalogNumber,
		Observer:      observerOf(obs),
		Time:          t,
		Azimuth:       view.Azimuth,
		Elevation:     view.Elevation,
		Range:         view.Range,
		RangeRate:     view.RangeRate,
		MinElevation:  minElevation,
		Visible:       transform.Visible(view, minElevation),
	}, nil
}

// PassReport is the result of a single-satellite pass search.
type PassReport struct {
	Name          string         `json:"name"`
	CatalogNumber int            `json:"catalog_number"`
	Observer      ObserverInfo   `json:"observer"`
	Start         time.Time      `json:"start"`
	End           time.Time      `json:"end"`
	MinElevation  float64        `json:"min_elevation"`
	Events        []passes.Event `json:"events"`
	Passes        []passes.Pass  `json:"passes"`
}

// Snapshot is every catalog satellite's position at one instant.
type Snapshot struct {
	Time      time.Time  `json:"time"`
	Count     int        `json:"count"`
	Failed    int        `json:"failed"`
	Positions []Position `json:"positions"`
}

// Find returns the position of name within the snapshot.
func (s *Snapshot) Find(name string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Name == name {
			return p, true
		}
	}
	return Position{}, false
}

// Snapshot propagates the whole catalog to t in parallel. Satellites that
// fail to propagate are counted and left out.
func (s *Service) Snapshot(ctx context.Context, t time.Time) (*Snapshot, error) {
	t = s.orNow(t)
	cat, err := s.catalog()
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "tracking.Snapshot")
	defer span.End()

	set := s.props.For(cat)
	results, _, failed := s.pool.PropagateBatch(ctx, set.Propagators(), t)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gmst := transform.GMST(t)
	positions := make([]Position, len(results))
	for i, r := range results {
		positions[i] = positionOf(r.Name, r.CatalogNumber, r.State, transform.ToGeodeticWithGMST(r.State, t, gmst))
	}
	failed += set.Failed()

	span.SetAttributes(attribute.Int("positions", len(positions)), attribute.Int("failed", failed))
	return &Snapshot{
		Time:      t,
		Count:     len(positions),
		Failed:    failed,
		Positions: positions,
	}, nil
}
