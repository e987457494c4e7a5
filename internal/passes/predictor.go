package passes

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	Name          string  `json:"name"`
	CatalogNumber int     `json:"catalog_number"`
	Events        []Event `json:"events"`
	Passes        []Pass  `json:"passes"`
	Err           error   `json:"-"`
}

// Request holds the parameters for a multi-satellite pass prediction.
type Request struct {
	Observer     transform.Observer
	Satellites   []tle.ElementSet
	Start        time.Time
	End          time.Time
	MinElevation float64 // degrees
	Options      Options
	Policy       PartialPolicy
}

// Predict computes passes for every satellite in the request. Each
// satellite is processed in its own goroutine, bounded by a semaphore.
// Results are in request order; a failure is reported in that
// satellite's Err and does not affect the others.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	results := make([]SatellitePasses, len(req.Satellites))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, es := range req.Satellites {
		results[i] = SatellitePasses{Name: es.Name, CatalogNumber: es.CatalogNumber}

		wg.Add(1)
		go func(idx int, es tle.ElementSet) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Err = ctx.Err()
				return
			}

			events, err := FindPassesForElements(ctx, es, req.Observer, req.Start, req.End, req.MinElevation, req.Options)
			if err != nil {
				results[idx].Err = err
				return
			}
			results[idx].Events = events
			results[idx].Passes = Group(events, req.Start, req.End, req.Policy)
		}(i, es)
	}

	wg.Wait()
	return results
}
