// Package cache keeps a rolling window of catalog snapshots ("keyframes").
//
// The window covers [now, now+horizon] at a fixed step. A background loop
// generates the leading edge and evicts the trailing edge. When the TLE store
// publishes a new dataset the whole window is rebuilt off to the side and
// swapped in, so readers always see a complete window from one catalog.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/riyagpt0251/SatTrackAI/internal/clock"
	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

// Config controls the window geometry.
type Config struct {
	Step        time.Duration // keyframe interval
	Horizon     time.Duration // how far ahead to cache
	GracePeriod time.Duration // upper bound on a cutover rebuild
	Buffer      time.Duration // keep entries this long after they pass
}

// DefaultConfig returns a 5 s step over a 10 minute horizon.
func DefaultConfig() Config {
	return Config{
		Step:        5 * time.Second,
		Horizon:     10 * time.Minute,
		GracePeriod: 30 * time.Second,
		Buffer:      time.Minute,
	}
}

// Generator produces the catalog snapshot for one instant.
type Generator interface {
	Snapshot(ctx context.Context, t time.Time) (*tracking.Snapshot, error)
}

// Entry is a cached keyframe with its generation time.
type Entry struct {
	Keyframe    *tracking.Snapshot
	GeneratedAt time.Time
}

// KeyframeCache is safe for concurrent use.
type KeyframeCache struct {
	mu      sync.RWMutex
	entries map[time.Time]*Entry

	config Config
	gen    Generator
	store  *tle.Store
	clock  clock.Clock
	logger *slog.Logger

	// Dataset the current window was built from.
	current *tle.Dataset

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	inGracePeriod atomic.Bool
}

func NewKeyframeCache(config Config, gen Generator, store *tle.Store, clk clock.Clock, logger *slog.Logger) *KeyframeCache {
	def := DefaultConfig()
	if config.Step <= 0 {
		config.Step = def.Step
	}
	if config.Horizon < 0 {
		config.Horizon = def.Horizon
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = def.GracePeriod
	}
	if clk == nil {
		clk = clock.Real{}
	}

	logger.Info("cache initialized",
		"step_seconds", config.Step.Seconds(),
		"horizon_seconds", config.Horizon.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"grace_period_seconds", config.GracePeriod.Seconds(),
	)

	return &KeyframeCache{
		entries: make(map[time.Time]*Entry),
		config:  config,
		gen:     gen,
		store:   store,
		clock:   clk,
		logger:  logger,
	}
}

// Step returns the keyframe interval.
func (c *KeyframeCache) Step() time.Duration {
	return c.config.Step
}

// RoundToStep rounds t down to a step boundary, in UTC.
func (c *KeyframeCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Get returns the keyframe for the step containing t, or nil.
func (c *KeyframeCache) Get(t time.Time) *tracking.Snapshot {
	key := c.RoundToStep(t)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry.Keyframe
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// GetRecent returns up to count keyframes ending at t, oldest first.
// Used to build trails.
func (c *KeyframeCache) GetRecent(t time.Time, count int) []*tracking.Snapshot {
	if count <= 0 {
		return nil
	}

	key := c.RoundToStep(t)

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*tracking.Snapshot, 0, count)
	for i := count - 1; i >= 0; i-- {
		ts := key.Add(-time.Duration(i) * c.config.Step)
		if entry, ok := c.entries[ts]; ok {
			result = append(result, entry.Keyframe)
		}
	}
	return result
}

// GetLatest returns the newest keyframe not after the current time,
// looking back at most ten steps.
func (c *KeyframeCache) GetLatest() *tracking.Snapshot {
	now := c.RoundToStep(c.clock.Now())

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < 10; i++ {
		key := now.Add(-time.Duration(i) * c.config.Step)
		if entry, ok := c.entries[key]; ok {
			c.hits.Add(1)
			metrics.IncCacheHits()
			return entry.Keyframe
		}
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

func (c *KeyframeCache) put(kf *tracking.Snapshot) {
	key := c.RoundToStep(kf.Time)
	entry := &Entry{
		Keyframe:    kf,
		GeneratedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	c.updateMetrics()
}

// evictExpired removes entries older than now - buffer.
func (c *KeyframeCache) evictExpired() int {
	cutoff := c.clock.Now().Add(-c.config.Buffer)
	var removed int

	c.mu.Lock()
	for ts := range c.entries {
		if ts.Before(cutoff) {
			delete(c.entries, ts)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}

	return removed
}

func (c *KeyframeCache) replaceAll(newEntries map[time.Time]*Entry) {
	c.mu.Lock()
	c.entries = newEntries
	c.mu.Unlock()
	c.updateMetrics()
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries         int       `json:"entries"`
	SizeBytes       int64     `json:"size_bytes"`
	OldestTimestamp time.Time `json:"oldest"`
	NewestTimestamp time.Time `json:"newest"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
	InGracePeriod   bool      `json:"in_grace_period"`
	Source          string    `json:"source,omitempty"`
}

func (c *KeyframeCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)

	var oldest, newest time.Time
	for ts := range c.entries {
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
	}
	c.mu.RUnlock()

	st := Stats{
		Entries:         count,
		SizeBytes:       c.estimateSizeBytes(),
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		InGracePeriod:   c.inGracePeriod.Load(),
	}
	if ds := c.dataset(); ds != nil {
		st.Source = ds.Source
	}
	return st
}

// estimateSizeBytes is a rough footprint: fixed-size position structs plus
// their name strings.
func (c *KeyframeCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	posSize := int64(unsafe.Sizeof(tracking.Position{}))
	var total int64
	for _, entry := range c.entries {
		if entry.Keyframe == nil {
			continue
		}
		for _, p := range entry.Keyframe.Positions {
			total += posSize + int64(len(p.Name))
		}
		// Snapshot header plus Entry.
		total += int64(unsafe.Sizeof(tracking.Snapshot{})) + int64(unsafe.Sizeof(Entry{}))
	}

	// Map overhead, roughly one word per bucket slot.
	total += int64(len(c.entries)) * 8

	return total
}

func (c *KeyframeCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
	metrics.SetCacheSizeBytes(c.estimateSizeBytes())
}
