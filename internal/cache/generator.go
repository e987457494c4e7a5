package cache

import (
	"context"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
)

// Start warms the window and then maintains it every step: leading edge
// generation, trailing edge eviction and cutover on a new dataset.
// Blocks until ctx is cancelled.
func (c *KeyframeCache) Start(ctx context.Context) {
	if !c.waitForTLEData(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := time.NewTicker(c.config.Step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache generator stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForTLEData polls the store every second until a dataset is
// published. Returns false if ctx is cancelled first.
func (c *KeyframeCache) waitForTLEData(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("cache waiting for TLE data")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("TLE data available, starting cache warmup")
				return true
			}
		}
	}
}

func (c *KeyframeCache) dataset() *tle.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *KeyframeCache) setDataset(ds *tle.Dataset) {
	c.mu.Lock()
	c.current = ds
	c.mu.Unlock()
}

func (c *KeyframeCache) frames() int {
	return int(c.config.Horizon/c.config.Step) + 1
}

// warmup fills [now, now+horizon].
func (c *KeyframeCache) warmup(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	c.setDataset(ds)

	now := c.RoundToStep(c.clock.Now())
	numFrames := c.frames()

	c.logger.Info("cache warmup starting",
		"frames", numFrames,
		"from", now.Format(time.RFC3339),
		"to", now.Add(c.config.Horizon).Format(time.RFC3339),
	)

	start := time.Now()
	generated := 0

	for i := 0; i < numFrames; i++ {
		if ctx.Err() != nil {
			return
		}

		target := now.Add(time.Duration(i) * c.config.Step)
		kf, err := c.gen.Snapshot(ctx, target)
		if err != nil {
			c.logger.Warn("warmup generation failed", "timestamp", target, "error", err)
			metrics.IncCacheRegenerationErrors()
			continue
		}

		c.put(kf)
		generated++
	}

	c.logger.Info("cache warmup complete",
		"generated", generated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *KeyframeCache) tick(ctx context.Context) {
	if c.tleChanged() {
		c.performCutover(ctx)
		return
	}

	c.generateLeadingEdge(ctx)
	c.evictExpired()
}

// generateLeadingEdge fills the window from its newest entry up to
// now+horizon, so a slow tick does not leave gaps.
func (c *KeyframeCache) generateLeadingEdge(ctx context.Context) {
	now := c.RoundToStep(c.clock.Now())
	target := c.RoundToStep(c.clock.Now().Add(c.config.Horizon))

	for ts := target; !ts.Before(now); ts = ts.Add(-c.config.Step) {
		if c.has(ts) {
			continue
		}
		c.generate(ctx, ts)
	}
}

func (c *KeyframeCache) has(ts time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[ts]
	return ok
}

func (c *KeyframeCache) generate(ctx context.Context, ts time.Time) {
	start := time.Now()
	kf, err := c.gen.Snapshot(ctx, ts)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("leading edge generation failed",
			"timestamp", ts.Format(time.RFC3339),
			"error", err,
		)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.put(kf)
	metrics.ObserveCacheRegenerationDuration(duration)

	c.logger.Debug("leading edge generated",
		"timestamp", ts.Format(time.RFC3339),
		"duration_ms", duration.Milliseconds(),
	)
}
