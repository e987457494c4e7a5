package tle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps raw TLE downloads in Redis so that several service
// instances share one fetched catalog. Each download is stored under
// "<prefix>:data:<unix>" and indexed in the sorted set "<prefix>:index".
type RedisCache struct {
	client   redis.UniversalClient
	prefix   string
	maxFiles int
}

// NewRedisCache wraps an existing client. maxEntries bounds how many
// downloads are retained.
func NewRedisCache(client redis.UniversalClient, prefix string, maxEntries int) *RedisCache {
	if prefix == "" {
		prefix = "sattrack:tle"
	}
	if maxEntries <= 0 {
		maxEntries = 5
	}
	return &RedisCache{client: client, prefix: prefix, maxFiles: maxEntries}
}

func (c *RedisCache) indexKey() string { return c.prefix + ":index" }

func (c *RedisCache) dataKey(member string) string { return c.prefix + ":data:" + member }

// Write stores data under its timestamp and drops the oldest entries.
func (c *RedisCache) Write(ctx context.Context, data []byte, ts time.Time) error {
	member := strconv.FormatInt(ts.Unix(), 10)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.dataKey(member), data, 0)
		pipe.ZAdd(ctx, c.indexKey(), redis.Z{Score: float64(ts.Unix()), Member: member})
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing TLE data to redis: %w", err)
	}
	return c.prune(ctx)
}

// LoadLatest returns the newest stored download.
func (c *RedisCache) LoadLatest(ctx context.Context) ([]byte, time.Time, error) {
	latest, err := c.client.ZRevRangeWithScores(ctx, c.indexKey(), 0, 0).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading redis index: %w", err)
	}
	if len(latest) == 0 {
		return nil, time.Time{}, ErrCacheEmpty
	}

	member := fmt.Sprint(latest[0].Member)
	data, err := c.client.Get(ctx, c.dataKey(member)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, fmt.Errorf("redis index points at missing entry %s: %w", member, ErrCacheEmpty)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading redis entry %s: %w", member, err)
	}
	return data, time.Unix(int64(latest[0].Score), 0).UTC(), nil
}

func (c *RedisCache) prune(ctx context.Context) error {
	n, err := c.client.ZCard(ctx, c.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("counting redis entries: %w", err)
	}
	excess := n - int64(c.maxFiles)
	if excess <= 0 {
		return nil
	}

	old, err := c.client.ZRange(ctx, c.indexKey(), 0, excess-1).Result()
	if err != nil {
		return fmt.Errorf("listing old redis entries: %w", err)
	}
	keys := make([]string, 0, len(old))
	members := make([]interface{}, 0, len(old))
	for _, m := range old {
		keys = append(keys, c.dataKey(m))
		members = append(members, m)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("pruning redis entries: %w", err)
	}
	return c.client.ZRem(ctx, c.indexKey(), members...).Err()
}
