// Package tracking answers satellite queries against the current TLE
// catalog: element summaries, positions, ground tracks, look angles, passes
// and whole-catalog snapshots.
package tracking

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/clock"
	"github.com/riyagpt0251/SatTrackAI/internal/passes"
	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

// Config bounds and defaults the service's queries.
type Config struct {
	TrackSamples    int           // default ground track length
	TrackStep       time.Duration // default ground track spacing
	MaxTrackSamples int
	MaxPassWindow   time.Duration
	MinElevation    float64 // degrees, default visibility threshold
	PassOptions     passes.Options
	PartialPolicy   passes.PartialPolicy
	Workers         int // snapshot propagation workers
}

// DefaultConfig returns 30 one-minute track samples and a
// 10° visibility threshold.
func DefaultConfig() Config {
	return Config{
		TrackSamples:    30,
		TrackStep:       time.Minute,
		MaxTrackSamples: 10_000,
		MaxPassWindow:   7 * 24 * time.Hour,
		MinElevation:    transform.DefaultMinElevation,
		PassOptions: passes.Options{
			Step:      passes.DefaultStep,
			Tolerance: passes.DefaultTolerance,
		},
		PartialPolicy: passes.IncludePartial,
		Workers:       runtime.NumCPU(),
	}
}

// Service owns the catalog store and a time source; it holds no other
// mutable state besides the propagator cache.
type Service struct {
	store  *tle.Store
	clock  clock.Clock
	props  *propagation.Cache
	pool   *propagation.WorkerPool
	config Config
	logger *slog.Logger
}

func New(store *tle.Store, clk clock.Clock, config Config, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	def := DefaultConfig()
	if config.TrackSamples <= 0 {
		config.TrackSamples = def.TrackSamples
	}
	if config.TrackStep <= 0 {
		config.TrackStep = def.TrackStep
	}
	if config.MaxTrackSamples <= 0 {
		config.MaxTrackSamples = def.MaxTrackSamples
	}
	if config.MaxPassWindow <= 0 {
		config.MaxPassWindow = def.MaxPassWindow
	}
	return &Service{
		store:  store,
		clock:  clk,
		props:  propagation.NewCache(logger),
		pool:   propagation.NewWorkerPool(config.Workers, logger),
		config: config,
		logger: logger,
	}
}

// Now is the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

// Ready reports whether a catalog has been loaded.
func (s *Service) Ready() bool {
	return s.store.Catalog() != nil
}

func (s *Service) catalog() (*tle.Catalog, error) {
	cat := s.store.Catalog()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	return cat, nil
}

func (s *Service) propagator(name string) (*propagation.Propagator, error) {
	cat, err := s.catalog()
	if err != nil {
		return nil, err
	}
	return s.props.For(cat).Get(name)
}

// Summary describes one element set.
type Summary struct {
	Name           string    `json:"name"`
	CatalogNumber  int       `json:"catalog_number"`
	IntlDesignator string    `json:"international_designator,omitempty"`
	Classification string    `json:"classification,omitempty"`
	Epoch          time.Time `json:"epoch"`
	Inclination    float64   `json:"inclination_deg"`
	RAAN           float64   `json:"raan_deg"`
	Eccentricity   float64   `json:"eccentricity"`
	ArgPerigee     float64   `json:"arg_perigee_deg"`
	MeanAnomaly    float64   `json:"mean_anomaly_deg"`
	MeanMotion     float64   `json:"mean_motion_rev_per_day"`
	BStar          float64   `json:"bstar"`
	PeriodMinutes  float64   `json:"period_minutes"`
	Model          string    `json:"model,omitempty"`
	Line1          string    `json:"line1"`
	Line2          string    `json:"line2"`
}

func summarize(es tle.ElementSet) Summary {
	return Summary{
		Name:           es.Name,
		CatalogNumber:  es.CatalogNumber,
		IntlDesignator: es.IntlDesignator,
		Classification: es.Classification,
		Epoch:          es.Epoch,
		Inclination:    es.Inclination,
		RAAN:           es.RAAN,
		Eccentricity:   es.Eccentricity,
		ArgPerigee:     es.ArgPerigee,
		MeanAnomaly:    es.MeanAnomaly,
		MeanMotion:     es.MeanMotion,
		BStar:          es.BStar,
		PeriodMinutes:  es.PeriodMinutes(),
		Line1:          es.Line1,
		Line2:          es.Line2,
	}
}

// Elements returns the summary for name.
func (s *Service) Elements(name string) (Summary, error) {
	cat, err := s.catalog()
	if err != nil {
		return Summary{}, err
	}
	es, err := cat.Lookup(name)
	if err != nil {
		return Summary{}, err
	}
	sum := summarize(es)
	if p, err := s.props.For(cat).Get(name); err == nil {
		sum.Model = p.Model().String()
	}
	return sum, nil
}

// Listing is a short catalog entry.
type Listing struct {
	Name          string    `json:"name"`
	CatalogNumber int       `json:"catalog_number"`
	Epoch         time.Time `json:"epoch"`
}

// List returns every satellite in name order.
func (s *Service) List() ([]Listing, error) {
	cat, err := s.catalog()
	if err != nil {
		return nil, err
	}
	sets := cat.Sets()
	out := make([]Listing, len(sets))
	for i, es := range sets {
		out[i] = Listing{Name: es.Name, CatalogNumber: es.CatalogNumber, Epoch: es.Epoch}
	}
	return out, nil
}

// Metadata describes the loaded catalog.
type Metadata struct {
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	AgeSeconds float64   `json:"age_seconds"`
	Count      int       `json:"count"`
	Duplicates int       `json:"duplicates"`
	Rejected   int       `json:"rejected"`
	EpochMin   time.Time `json:"epoch_min"`
	EpochMax   time.Time `json:"epoch_max"`
}

func (s *Service) Metadata() (Metadata, error) {
	ds := s.store.Get()
	if ds == nil {
		return Metadata{}, ErrNoCatalog
	}
	er := ds.Catalog.EpochRange()
	return Metadata{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt.UTC(),
		AgeSeconds: s.store.Age(s.clock.Now()).Seconds(),
		Count:      ds.Catalog.Len(),
		Duplicates: ds.Catalog.Duplicates(),
		Rejected:   len(ds.Catalog.Rejected()),
		EpochMin:   er.Min,
		EpochMax:   er.Max,
	}, nil
}

// orNow substitutes the service clock for a zero time.
func (s *Service) orNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.Now()
	}
	return t.UTC()
}

// Passes finds pass events for name over [start, end]. A zero start means
// now; minElevation is in degrees.
func (s *Service) Passes(ctx context.Context, name string, obs transform.Observer, start, end time.Time, minElevation float64, policy passes.PartialPolicy) (PassReport, error) {
	start = s.orNow(start)
	if err := s.checkWindow(start, end, minElevation); err != nil {
		return PassReport{}, err
	}
	p, err := s.propagator(name)
	if err != nil {
		return PassReport{}, err
	}

	events, err := passes.FindPasses(ctx, p, obs, start, end, minElevation, s.config.PassOptions)
	if err != nil {
		return PassReport{}, err
	}
	es := p.Elements()
	return PassReport{
		Name:          es.Name,
		CatalogNumber: es.CatalogNumber,
		Observer:      observerOf(obs),
		Start:         start,
		End:           end,
		MinElevation:  minElevation,
		Events:        events,
		Passes:        passes.Group(events, start, end, policy),
	}, nil
}

// PassesFor runs pass searches for several satellites concurrently.
// Unknown names fail the whole request; per-satellite propagation failures
// are reported in the results.
func (s *Service) PassesFor(ctx context.Context, names []string, obs transform.Observer, start, end time.Time, minElevation float64, policy passes.PartialPolicy) ([]passes.SatellitePasses, error) {
	start = s.orNow(start)
	if err := s.checkWindow(start, end, minElevation); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, &RequestError{Field: "names", Reason: "at least one satellite name is required"}
	}
	cat, err := s.catalog()
	if err != nil {
		return nil, err
	}
	sats := make([]tle.ElementSet, 0, len(names))
	for _, name := range names {
		es, err := cat.Lookup(name)
		if err != nil {
			return nil, err
		}
		sats = append(sats, es)
	}

	return passes.Predict(ctx, passes.Request{
		Observer:     obs,
		Satellites:   sats,
		Start:        start,
		End:          end,
		MinElevation: minElevation,
		Options:      s.config.PassOptions,
		Policy:       policy,
	}), nil
}

func (s *Service) checkWindow(start, end time.Time, minElevation float64) error {
	switch {
	case math.IsNaN(minElevation) || minElevation < -90 || minElevation > 90:
		return &RequestError{Field: "min_elevation", Reason: "must be in [-90, 90]"}
	case end.Before(start):
		return &RequestError{Field: "window", Reason: "end before start"}
	case end.Sub(start) > s.config.MaxPassWindow:
		return &RequestError{Field: "window", Reason: "longer than " + s.config.MaxPassWindow.String()}
	}
	return nil
}
