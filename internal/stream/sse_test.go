package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/cache"
	"github.com/riyagpt0251/SatTrackAI/internal/clock"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tle/tletest"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      100,
		KeepaliveInterval:  30 * time.Second,
	}
}

type fixture struct {
	handler *Handler
	cache   *cache.KeyframeCache
	store   *tle.Store
}

// newFixture builds a handler over the reference catalog. With warm set,
// the keyframe cache is filled before returning.
func newFixture(t *testing.T, cfg Config, warm bool) fixture {
	t.Helper()
	store := tle.NewStore()
	store.Set(&tle.Dataset{Source: "test", FetchedAt: t0.Add(-30 * time.Minute), Catalog: tletest.Catalog(t)})
	clk := clock.NewFixed(t0)
	svc := tracking.New(store, clk, tracking.Config{Workers: 2}, testLogger())
	kfCache := cache.NewKeyframeCache(cache.Config{
		Step:    5 * time.Second,
		Horizon: 10 * time.Second,
		Buffer:  10 * time.Second,
	}, svc, store, clk, testLogger())

	if warm {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go kfCache.Start(ctx)
		deadline := time.Now().Add(5 * time.Second)
		for kfCache.Stats().Entries < 3 {
			if time.Now().After(deadline) {
				t.Fatal("keyframe cache did not warm up")
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	return fixture{
		handler: NewHandler(kfCache, svc, cfg, testLogger()),
		cache:   kfCache,
		store:   store,
	}
}

// serve runs h until the request context expires and returns the recorder.
func serve(h http.HandlerFunc, req *http.Request, d time.Duration) *httptest.ResponseRecorder {
	ctx, cancel := context.WithTimeout(req.Context(), d)
	defer cancel()
	w := httptest.NewRecorder()
	h(w, req.WithContext(ctx))
	return w
}

// events decodes every "data:" line of an SSE body.
func events(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

func checkWireFormat(t *testing.T, body string) {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if line == "" || line == ":" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

func TestBuildBatchMessage(t *testing.T) {
	at := func(s int) time.Time { return t0.Add(time.Duration(s) * time.Second) }
	snap := func(s int, lat float64) *tracking.Snapshot {
		return &tracking.Snapshot{
			Time: at(s),
			Positions: []tracking.Position{
				{Name: "A", CatalogNumber: 1, Latitude: lat, Longitude: 10.123456, Altitude: 420.06},
				{Name: "B", CatalogNumber: 2, Latitude: -lat, Longitude: -170, Altitude: 35786},
			},
		}
	}

	kf := snap(10, 3)
	msg := buildBatchMessage(kf, []*tracking.Snapshot{snap(0, 1), snap(5, 2), kf})

	if msg.Type != "positions" || msg.T != "2025-03-01T12:00:10Z" {
		t.Errorf("header = %q/%q", msg.Type, msg.T)
	}
	if len(msg.Sat) != 2 {
		t.Fatalf("sat count = %d, want 2", len(msg.Sat))
	}
	a := msg.Sat[0]
	if a.Name != "A" || a.ID != 1 || a.Lon != 10.1235 || a.Alt != 420.1 {
		t.Errorf("sat[0] = %+v", a)
	}
	if len(a.Tr) != 3 || a.Tr[0] != [2]float64{1, 10.1235} || a.Tr[2] != [2]float64{3, 10.1235} {
		t.Errorf("sat[0] trail = %v", a.Tr)
	}
	if b := msg.Sat[1]; len(b.Tr) != 3 || b.Tr[1][0] != -2 {
		t.Errorf("sat[1] trail = %v", b.Tr)
	}

	if plain := buildBatchMessage(kf, nil); plain.Sat[0].Tr != nil {
		t.Error("trail present without trail keyframes")
	}
}

func TestPositionsStream(t *testing.T) {
	f := newFixture(t, testConfig(), true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/positions?trail=3", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := serve(f.handler.HandlePositions, req, 300*time.Millisecond)

	resp := w.Result()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: ") {
		t.Errorf("stream does not start with a retry hint: %q", body[:min(len(body), 40)])
	}
	checkWireFormat(t, body)

	msgs := events(t, body)
	if len(msgs) < 2 {
		t.Fatalf("got %d messages, want metadata and positions", len(msgs))
	}
	meta := msgs[0]
	if meta["type"] != "metadata" || meta["source"] != "test" {
		t.Errorf("first message = %v", meta)
	}
	if meta["count"].(float64) != 5 || meta["tle_age_seconds"].(float64) != 1800 {
		t.Errorf("metadata count/age = %v/%v", meta["count"], meta["tle_age_seconds"])
	}

	batch := msgs[1]
	if batch["type"] != "positions" || batch["t"] != "2025-03-01T12:00:00Z" {
		t.Errorf("batch header = %v/%v", batch["type"], batch["t"])
	}
	sats := batch["sat"].([]any)
	if len(sats) != 5 {
		t.Fatalf("batch has %d satellites, want 5", len(sats))
	}
	first := sats[0].(map[string]any)
	if first["name"] != tletest.ISSName {
		t.Errorf("first satellite = %v", first["name"])
	}
	if _, ok := first["tr"]; !ok {
		t.Error("trail missing with trail=3")
	}

	// The clock is frozen, so the same keyframe must not be resent.
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want exactly 2 with a frozen clock", len(msgs))
	}
}

func TestPositionsStreamCacheMiss(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/positions", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := serve(f.handler.HandlePositions, req, 100*time.Millisecond)

	msgs := events(t, w.Body.String())
	if len(msgs) != 1 || msgs[0]["type"] != "metadata" {
		t.Errorf("cold cache stream sent %v, want only metadata", msgs)
	}
}

func TestSatelliteStream(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/satellites/x/stream", nil)
	req.SetPathValue("name", tletest.ISSName)
	req.RemoteAddr = "127.0.0.1:12345"
	w := serve(f.handler.HandleSatellite, req, 100*time.Millisecond)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	checkWireFormat(t, w.Body.String())
	msgs := events(t, w.Body.String())
	if len(msgs) < 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	pos := msgs[1]
	if pos["type"] != "position" || pos["name"] != tletest.ISSName {
		t.Errorf("position message = %v", pos)
	}
	if pos["catalog_number"].(float64) != 25544 {
		t.Errorf("catalog_number = %v", pos["catalog_number"])
	}
	if alt := pos["altitude_km"].(float64); alt < 350 || alt > 450 {
		t.Errorf("altitude = %v", alt)
	}
}

func TestSatelliteStreamErrors(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	empty := NewHandler(f.cache, tracking.New(tle.NewStore(), clock.NewFixed(t0), tracking.Config{}, testLogger()), testConfig(), testLogger())

	tests := []struct {
		name    string
		handler *Handler
		sat     string
		status  int
		kind    string
	}{
		{"unknown satellite", f.handler, "NOPE", http.StatusNotFound, "not_found"},
		{"no catalog", empty, tletest.ISSName, http.StatusServiceUnavailable, "no_catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/satellites/x/stream", nil)
			req.SetPathValue("name", tt.sat)
			w := httptest.NewRecorder()
			tt.handler.HandleSatellite(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["kind"] != tt.kind {
				t.Errorf("kind = %q, want %q", body["kind"], tt.kind)
			}
			if n := tt.handler.limiter.active(); n != 0 {
				t.Errorf("%d connections still held", n)
			}
		})
	}
}

func TestKeepalive(t *testing.T) {
	cfg := testConfig()
	cfg.KeepaliveInterval = 20 * time.Millisecond
	f := newFixture(t, cfg, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/satellites/x/stream?step=60", nil)
	req.SetPathValue("name", tletest.ISSName)
	w := serve(f.handler.HandleSatellite, req, 150*time.Millisecond)

	if !strings.Contains(w.Body.String(), "\n:\n\n") {
		t.Error("no keep-alive comment on an idle stream")
	}
}

func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 5)

	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond per-IP limit should fail")
	}
	if !limiter.acquire("10.0.0.2") || !limiter.acquire("10.0.0.3") {
		t.Error("other IPs should not be limited")
	}
	if limiter.acquire("10.0.0.4") {
		t.Error("acquire beyond global limit should fail")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}
	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}

	// Releasing an unknown IP must not drive counts negative.
	limiter.release("192.0.2.1")
	if n := limiter.active(); n != 5 {
		t.Errorf("active = %d, want 5", n)
	}
}

func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		first      func(*http.Request)
		second     func(*http.Request)
	}{
		{
			name:   "same remote address",
			first:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:12345" },
			second: func(r *http.Request) { r.RemoteAddr = "10.0.0.1:54321" },
		},
		{
			name:       "same forwarded client behind proxy",
			trustProxy: true,
			first: func(r *http.Request) {
				r.RemoteAddr = "10.0.0.1:1"
				r.Header.Set("X-Forwarded-For", "203.0.113.7")
			},
			second: func(r *http.Request) {
				r.RemoteAddr = "10.0.0.2:2"
				r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxConcurrentPerIP = 1
			cfg.TrustProxy = tt.trustProxy
			f := newFixture(t, cfg, false)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				req := httptest.NewRequest(http.MethodGet, "/api/v1/satellites/x/stream?step=60", nil).WithContext(ctx)
				req.SetPathValue("name", tletest.ISSName)
				tt.first(req)
				f.handler.HandleSatellite(httptest.NewRecorder(), req)
			}()

			deadline := time.Now().Add(5 * time.Second)
			for f.handler.limiter.active() == 0 {
				if time.Now().After(deadline) {
					t.Fatal("first stream never connected")
				}
				time.Sleep(time.Millisecond)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/satellites/x/stream", nil)
			req.SetPathValue("name", tletest.ISSName)
			tt.second(req)
			w := httptest.NewRecorder()
			f.handler.HandleSatellite(w, req)

			if w.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
			}
			if w.Header().Get("Retry-After") == "" {
				t.Error("missing Retry-After header")
			}

			cancel()
			<-done
			if n := f.handler.limiter.active(); n != 0 {
				t.Errorf("%d connections still held after disconnect", n)
			}
		})
	}
}

func TestInvalidQueryParams(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		query   string
	}{
		{"positions step zero", f.handler.HandlePositions, "?step=0"},
		{"positions step too large", f.handler.HandlePositions, "?step=100"},
		{"positions step non-numeric", f.handler.HandlePositions, "?step=abc"},
		{"positions trail negative", f.handler.HandlePositions, "?trail=-1"},
		{"positions trail too large", f.handler.HandlePositions, "?trail=500"},
		{"satellite step zero", f.handler.HandleSatellite, "?step=0"},
		{"satellite step non-numeric", f.handler.HandleSatellite, "?step=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stream"+tt.query, nil)
			req.SetPathValue("name", tletest.ISSName)
			w := httptest.NewRecorder()
			tt.handler(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}
