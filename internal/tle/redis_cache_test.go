package tle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T, maxEntries int) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, "", maxEntries), mr
}

func TestRedisCacheWriteAndLoad(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 5)

	if _, _, err := c.LoadLatest(ctx); !errors.Is(err, ErrCacheEmpty) {
		t.Fatalf("empty cache: expected ErrCacheEmpty, got %v", err)
	}

	older := time.Unix(1700000000, 0).UTC()
	newer := older.Add(time.Hour)
	if err := c.Write(ctx, []byte(sampleTLE), newer); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Write(ctx, []byte("old"), older); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, ts, err := c.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if string(data) != sampleTLE {
		t.Errorf("LoadLatest returned %q, want newest entry", data)
	}
	if !ts.Equal(newer) {
		t.Errorf("timestamp = %v, want %v", ts, newer)
	}

	if !mr.Exists("sattrack:tle:data:1700003600") {
		t.Error("expected data key under default prefix")
	}
}

func TestRedisCachePrunes(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 2)

	base := time.Unix(1700000000, 0)
	for i := 0; i < 4; i++ {
		if err := c.Write(ctx, []byte("x"), base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Write #%d: %v", i, err)
		}
	}

	members, err := mr.ZMembers("sattrack:tle:index")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Errorf("index holds %d members, want 2", len(members))
	}
	if mr.Exists("sattrack:tle:data:1700000000") {
		t.Error("oldest entry should have been pruned")
	}
	if !mr.Exists("sattrack:tle:data:1700000180") {
		t.Error("newest entry missing")
	}
}

func TestRedisCacheDanglingIndex(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 5)

	if err := c.Write(ctx, []byte("x"), time.Unix(1700000000, 0)); err != nil {
		t.Fatal(err)
	}
	mr.Del("sattrack:tle:data:1700000000")

	if _, _, err := c.LoadLatest(ctx); !errors.Is(err, ErrCacheEmpty) {
		t.Errorf("expected ErrCacheEmpty for dangling index, got %v", err)
	}
}

func TestRedisCacheUnavailable(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 5)
	mr.Close()

	if err := c.Write(ctx, []byte("x"), time.Now()); err == nil {
		t.Error("expected error writing to a closed server")
	}
}
