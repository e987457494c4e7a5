package passes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

var tracer = otel.Tracer("github.com/riyagpt0251/SatTrackAI/internal/passes")

const (
	DefaultStep      = 60 * time.Second
	DefaultTolerance = 500 * time.Millisecond

	// invPhi is 1/φ, the golden-section ratio.
	invPhi = 0.6180339887498949
)

// ErrInvalidWindow is returned when the search window ends before it starts.
var ErrInvalidWindow = errors.New("passes: end before start")

// Propagation is what the finder needs from a propagator.
type Propagation interface {
	Propagate(t time.Time) (propagation.StateVector, error)
	Period() time.Duration
}

// Options tune the search. Zero values select the defaults.
type Options struct {
	// Step is the coarse sampling interval. It is capped at a tenth of the
	// orbital period.
	Step time.Duration
	// Tolerance is the precision of refined event times.
	Tolerance time.Duration
}

func (o Options) withDefaults(period time.Duration) Options {
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	if period > 0 && o.Step > period/10 {
		o.Step = period / 10
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Tolerance > o.Step {
		o.Tolerance = o.Step
	}
	return o
}

// FindPassesForElements initialises a propagator for es and runs FindPasses.
func FindPassesForElements(ctx context.Context, es tle.ElementSet, obs transform.Observer, start, end time.Time, minElevation float64, opts Options) ([]Event, error) {
	p, err := propagation.New(es)
	if err != nil {
		return nil, err
	}
	return FindPasses(ctx, p, obs, start, end, minElevation, opts)
}

// FindPasses scans [start, end] for the times the satellite crosses
// minElevation (degrees) as seen from obs, and for the highest point of each
// segment above it. Events are strictly time ordered.
//
// The scan is truncated at both ends of the window: a pass already in
// progress at start has no Rise, a pass still in progress at end has no
// Set, and a Culminate is only reported when the maximum lies strictly
// inside the window. ctx is checked once per coarse step.
func FindPasses(ctx context.Context, p Propagation, obs transform.Observer, start, end time.Time, minElevation float64, opts Options) ([]Event, error) {
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}
	if math.IsNaN(minElevation) || minElevation < -90 || minElevation > 90 {
		return nil, fmt.Errorf("passes: minimum elevation %v outside [-90, 90]", minElevation)
	}

	ctx, span := tracer.Start(ctx, "passes.FindPasses")
	defer span.End()
	span.SetAttributes(
		attribute.String("window", end.Sub(start).String()),
		attribute.Float64("min_elevation", minElevation),
	)

	began := time.Now()
	s := &scanner{
		prop:      p,
		obs:       obs,
		threshold: minElevation,
		opts:      opts.withDefaults(p.Period()),
		start:     start,
		end:       end,
	}
	events, err := s.run(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	counts := make(map[string]int, 3)
	for _, e := range events {
		counts[e.Kind.String()]++
	}
	metrics.ObservePassSearch(time.Since(began), counts)
	span.SetAttributes(attribute.Int("events", len(events)))
	return events, nil
}

// sample is the elevation at one coarse step.
type sample struct {
	t  time.Time
	el float64
}

// segment is a run of coarse samples above the threshold.
type segment struct {
	from, to time.Time // rise/set time, or the window edge
	rose     bool      // from is a Rise crossing
	best     int       // index of the highest sample
	samples  []sample
}

type scanner struct {
	prop      Propagation
	obs       transform.Observer
	threshold float64
	opts      Options
	start     time.Time
	end       time.Time
}

func (s *scanner) elevation(t time.Time) (transform.TopocentricView, error) {
	sv, err := s.prop.Propagate(t)
	if err != nil {
		return transform.TopocentricView{}, err
	}
	return transform.ToTopocentric(sv, s.obs, t), nil
}

func (s *scanner) above(el float64) bool {
	return el > s.threshold
}

func (s *scanner) run(ctx context.Context) ([]Event, error) {
	var (
		events []Event
		seg    *segment
		prev   sample
	)

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t := s.start.Add(time.Duration(i) * s.opts.Step)
		last := !t.Before(s.end)
		if last {
			t = s.end
		}
		view, err := s.elevation(t)
		if err != nil {
			return nil, err
		}
		cur := sample{t: t, el: view.Elevation}

		switch {
		case i == 0:
			if s.above(cur.el) {
				seg = &segment{from: t}
			}
		case seg == nil && s.above(cur.el):
			rise, err := s.crossing(prev.t, cur.t, true)
			if err != nil {
				return nil, err
			}
			events = append(events, newEvent(Rise, rise))
			seg = &segment{from: rise.Time, rose: true}
		case seg != nil && !s.above(cur.el):
			set, err := s.crossing(prev.t, cur.t, false)
			if err != nil {
				return nil, err
			}
			seg.to = set.Time
			culm, ok, err := s.culmination(seg, true)
			if err != nil {
				return nil, err
			}
			if ok {
				events = append(events, culm)
			}
			events = append(events, newEvent(Set, set))
			seg = nil
		}

		if seg != nil {
			seg.samples = append(seg.samples, cur)
			if cur.el > seg.samples[seg.best].el {
				seg.best = len(seg.samples) - 1
			}
		}
		prev = cur
		if last {
			break
		}
	}

	if seg != nil {
		seg.to = s.end
		culm, ok, err := s.culmination(seg, false)
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, culm)
		}
	}
	return events, nil
}

// crossing bisects (lo, hi) for the threshold crossing. rising is true
// when lo is below and hi above.
func (s *scanner) crossing(lo, hi time.Time, rising bool) (transform.TopocentricView, error) {
	for hi.Sub(lo) > s.opts.Tolerance {
		mid := lo.Add(hi.Sub(lo) / 2)
		view, err := s.elevation(mid)
		if err != nil {
			return transform.TopocentricView{}, err
		}
		if s.above(view.Elevation) == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	return s.elevation(lo.Add(hi.Sub(lo) / 2))
}

// culmination refines the segment maximum by golden-section search over
// the samples either side of the highest one. set reports whether the
// segment ended with a Set crossing. The result is dropped when the
// maximum is pinned to a window edge.
func (s *scanner) culmination(seg *segment, set bool) (Event, bool, error) {
	lo, hi := seg.from, seg.to
	if seg.best > 0 {
		lo = seg.samples[seg.best-1].t
	}
	if seg.best < len(seg.samples)-1 {
		hi = seg.samples[seg.best+1].t
	}

	view, err := s.goldenMax(lo, hi)
	if err != nil {
		return Event{}, false, err
	}

	tol := s.opts.Tolerance
	switch {
	case !seg.rose && view.Time.Sub(seg.from) <= tol:
		return Event{}, false, nil
	case !set && seg.to.Sub(view.Time) <= tol:
		return Event{}, false, nil
	case !view.Time.After(seg.from) || !view.Time.Before(seg.to):
		return Event{}, false, nil
	}
	return newEvent(Culminate, view), true, nil
}

// goldenMax finds the time of maximum elevation in [lo, hi] to within the
// tolerance, assuming a single peak in the bracket.
func (s *scanner) goldenMax(lo, hi time.Time) (transform.TopocentricView, error) {
	a, b := 0.0, float64(hi.Sub(lo))
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)

	at := func(x float64) (float64, error) {
		view, err := s.elevation(lo.Add(time.Duration(x)))
		return view.Elevation, err
	}
	fc, err := at(c)
	if err != nil {
		return transform.TopocentricView{}, err
	}
	fd, err := at(d)
	if err != nil {
		return transform.TopocentricView{}, err
	}

	for b-a > float64(s.opts.Tolerance) {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			if fc, err = at(c); err != nil {
				return transform.TopocentricView{}, err
			}
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			if fd, err = at(d); err != nil {
				return transform.TopocentricView{}, err
			}
		}
	}

	best := lo.Add(time.Duration((a + b) / 2))
	view, err := s.elevation(best)
	if err != nil {
		return transform.TopocentricView{}, err
	}

	// The bracket ends can beat the interior when the peak sits on them.
	for _, edge := range []time.Time{lo, hi} {
		ev, err := s.elevation(edge)
		if err != nil {
			return transform.TopocentricView{}, err
		}
		if ev.Elevation > view.Elevation {
			view = ev
		}
	}
	return view, nil
}
