package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/riyagpt0251/SatTrackAI/internal/clock"
	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
)

// ErrNoEntries is the ParseError reason when input held no usable element sets.
var ErrNoEntries = errors.New("no valid element sets")

// ErrFetchDisabled is returned by Refresh when no fetcher is configured.
var ErrFetchDisabled = errors.New("TLE fetching is disabled")

var tracer = otel.Tracer("github.com/riyagpt0251/SatTrackAI/internal/tle")

// Loader moves TLE data from the network or cache into a Store.
// Fetches are serialised; publication to the store is a single atomic swap.
type Loader struct {
	store   *Store
	fetcher *Fetcher
	cache   Cache
	clock   clock.Clock
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewLoader wires a loader. fetcher and cache may be nil to disable
// network fetches or persistence respectively.
func NewLoader(store *Store, fetcher *Fetcher, cache Cache, clk clock.Clock, logger *slog.Logger) *Loader {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Loader{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		clock:   clk,
		logger:  logger,
	}
}

// FetchEnabled reports whether the loader can download fresh data.
func (l *Loader) FetchEnabled() bool {
	return l.fetcher != nil
}

// LoadCached publishes the newest cached download, if any.
func (l *Loader) LoadCached(ctx context.Context) (*Dataset, error) {
	if l.cache == nil {
		return nil, ErrCacheEmpty
	}
	data, ts, err := l.cache.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}
	return l.Publish(data, "cache", ts)
}

// Refresh downloads, parses, caches and publishes a new catalog. On any
// failure the previously published catalog stays in place.
func (l *Loader) Refresh(ctx context.Context) (*Dataset, error) {
	if l.fetcher == nil {
		return nil, ErrFetchDisabled
	}

	ctx, span := tracer.Start(ctx, "tle.Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("tle.source", l.fetcher.SourceURL()))

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		metrics.RecordTLEFetch(false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	metrics.RecordTLEFetch(true)

	fetchedAt := l.clock.Now()
	ds, err := l.Publish(data, l.fetcher.SourceURL(), fetchedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Write(ctx, data, fetchedAt); err != nil {
			l.logger.Warn("failed to cache TLE data", "error", err)
		}
	}

	span.SetAttributes(attribute.Int("tle.satellites", ds.Catalog.Len()))
	l.logger.Info("TLE data refreshed",
		"source", ds.Source,
		"count", ds.Catalog.Len(),
		"rejected", len(ds.Catalog.Rejected()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

// Publish parses data and swaps it into the store. Data with no usable
// entries is rejected with a *ParseError.
func (l *Loader) Publish(data []byte, source string, fetchedAt time.Time) (*Dataset, error) {
	cat, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, err
	}
	if cat.Len() == 0 {
		if rej := cat.Rejected(); len(rej) > 0 {
			return nil, fmt.Errorf("%d malformed entries: %w", len(rej), rej[0])
		}
		return nil, &ParseError{Err: ErrNoEntries}
	}

	ds := &Dataset{
		Source:    source,
		FetchedAt: fetchedAt,
		Catalog:   cat,
	}
	l.store.Set(ds)
	metrics.SetCatalogSize(cat.Len())

	er := cat.EpochRange()
	l.logger.Info("TLE catalog published",
		"source", source,
		"count", cat.Len(),
		"fetched_at", fetchedAt.UTC().Format(time.RFC3339),
		"epoch_min", er.Min.Format(time.RFC3339),
		"epoch_max", er.Max.Format(time.RFC3339),
	)
	return ds, nil
}

// Run refreshes the catalog every interval until ctx is cancelled. It also
// keeps the catalog age gauge current.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	refresh := time.NewTicker(interval)
	defer refresh.Stop()
	age := time.NewTicker(10 * time.Second)
	defer age.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-age.C:
			if d := l.store.Age(l.clock.Now()); d >= 0 {
				metrics.SetCatalogAge(d.Seconds())
			}
		case <-refresh.C:
			if l.fetcher == nil {
				continue
			}
			if _, err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
				l.logger.Warn("scheduled TLE refresh failed", "error", err)
			}
		}
	}
}
