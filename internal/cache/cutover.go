package cache

import (
	"context"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
)

// tleChanged reports whether the store holds a different dataset than the
// one the window was built from.
func (c *KeyframeCache) tleChanged() bool {
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	return ds != c.dataset()
}

// performCutover rebuilds the window from the newly published dataset.
// Reads keep hitting the old window until the new one is swapped in. A
// rebuild that exceeds the grace period is abandoned and retried on the
// next tick.
func (c *KeyframeCache) performCutover(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	old := c.dataset()
	attrs := []any{"new_source", ds.Source, "new_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339)}
	if old != nil {
		attrs = append(attrs, "old_fetched_at", old.FetchedAt.UTC().Format(time.RFC3339))
	}
	c.logger.Info("TLE cutover starting", attrs...)

	c.inGracePeriod.Store(true)
	metrics.SetCacheGracePeriodActive(true)
	defer func() {
		c.inGracePeriod.Store(false)
		metrics.SetCacheGracePeriodActive(false)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.GracePeriod)
	defer cancel()

	start := time.Now()
	now := c.RoundToStep(c.clock.Now())
	numFrames := c.frames()

	newEntries := make(map[time.Time]*Entry, numFrames)
	generated := 0

	for i := 0; i < numFrames; i++ {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("cutover abandoned", "error", err, "generated", generated)
			return
		}

		target := now.Add(time.Duration(i) * c.config.Step)
		kf, err := c.gen.Snapshot(ctx, target)
		if err != nil {
			c.logger.Warn("cutover generation failed",
				"timestamp", target.Format(time.RFC3339),
				"error", err,
			)
			metrics.IncCacheRegenerationErrors()
			continue
		}

		newEntries[c.RoundToStep(kf.Time)] = &Entry{
			Keyframe:    kf,
			GeneratedAt: c.clock.Now(),
		}
		generated++
	}

	c.replaceAll(newEntries)
	c.setDataset(ds)

	duration := time.Since(start)
	c.logger.Info("TLE cutover complete",
		"duration_ms", duration.Milliseconds(),
		"entries_replaced", generated,
	)
	metrics.ObserveCacheRegenerationDuration(duration)
}
