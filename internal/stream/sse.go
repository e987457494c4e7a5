// Package stream serves live positions over Server-Sent Events.
//
// Two streams exist. GET /api/v1/stream/positions sends whole-catalog
// snapshots from the keyframe cache, optionally with short trails.
// GET /api/v1/satellites/{name}/stream sends one satellite's position,
// propagated on every tick.
//
// Message format:
//
//	data: {"type":"positions","t":"2025-03-01T12:00:00Z","sat":[...]}\n\n
//
// The first message on every connection is metadata:
//
//	data: {"type":"metadata","source":"...","fetched_at":"...","tle_age_seconds":1800,"count":11000}\n\n
//
// Keep-alive comments (:\n\n) are sent when nothing else was written for
// KeepaliveInterval.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/cache"
	"github.com/riyagpt0251/SatTrackAI/internal/httputil"
	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

// Config holds streaming limits.
type Config struct {
	MaxConcurrentPerIP int
	MaxConcurrent      int
	KeepaliveInterval  time.Duration
	TrustProxy         bool
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      1000,
		KeepaliveInterval:  30 * time.Second,
	}
}

// Tracker is the part of tracking.Service the streams need.
type Tracker interface {
	Now() time.Time
	Position(name string, t time.Time) (tracking.Position, error)
	Metadata() (tracking.Metadata, error)
}

// Handler manages SSE connections.
type Handler struct {
	cache   *cache.KeyframeCache
	tracker Tracker
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

func NewHandler(kfCache *cache.KeyframeCache, tracker Tracker, config Config, logger *slog.Logger) *Handler {
	def := DefaultConfig()
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = def.MaxConcurrentPerIP
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = def.KeepaliveInterval
	}
	return &Handler{
		cache:   kfCache,
		tracker: tracker,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// intParam parses an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %d-%d", name, lo, hi)
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}

// HandlePositions serves whole-catalog snapshots from the keyframe cache.
// GET /api/v1/stream/positions?step=5&trail=20
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	defStep := max(int(h.cache.Step()/time.Second), 1)
	step, err := intParam(r, "step", defStep, 1, 60)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	trail, err := intParam(r, "trail", 20, 0, 120)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	c, ok := h.open(w, r, "positions", step)
	if !ok {
		return
	}
	defer c.close()

	var last time.Time
	send := func() error {
		now := h.tracker.Now()
		kf := h.cache.Get(now)
		if kf == nil {
			metrics.IncStreamErrors("cache_miss")
			h.logger.Debug("stream cache miss",
				"timestamp", h.cache.RoundToStep(now).Format(time.RFC3339),
				"remote_ip", c.ip,
			)
			return nil
		}
		if kf.Time.Equal(last) {
			return nil
		}
		last = kf.Time

		var trailKFs []*tracking.Snapshot
		if trail > 0 {
			trailKFs = h.cache.GetRecent(kf.Time, trail)
		}
		return c.sendJSON(buildBatchMessage(kf, trailKFs))
	}

	h.loop(r, c, time.Duration(step)*time.Second, send)
}

// HandleSatellite streams one satellite's position.
// GET /api/v1/satellites/{name}/stream?step=1
func (h *Handler) HandleSatellite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	step, err := intParam(r, "step", 1, 1, 60)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	// Resolve the name before upgrading so clients get a proper status.
	if _, err := h.tracker.Position(name, time.Time{}); err != nil {
		var nf *tle.NotFoundError
		var pe *propagation.PropagationError
		switch {
		case errors.As(err, &nf):
			writeError(w, http.StatusNotFound, "not_found", err.Error())
		case errors.Is(err, tracking.ErrNoCatalog):
			writeError(w, http.StatusServiceUnavailable, "no_catalog", err.Error())
		case errors.As(err, &pe):
			writeError(w, http.StatusUnprocessableEntity, "propagation", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}

	c, ok := h.open(w, r, "satellite", step)
	if !ok {
		return
	}
	defer c.close()

	send := func() error {
		pos, err := h.tracker.Position(name, time.Time{})
		if err != nil {
			// The satellite can vanish on reload or decay mid-stream.
			metrics.IncStreamErrors("propagation")
			return c.sendJSON(errorMessage{Type: "error", Error: err.Error()})
		}
		return c.sendJSON(positionMessage{Type: "position", Position: pos})
	}

	h.loop(r, c, time.Duration(step)*time.Second, send)
}

// open applies the connection limit, writes SSE headers, the retry hint and
// the metadata message. The caller must close the returned client.
func (h *Handler) open(w http.ResponseWriter, r *http.Request, kind string, step int) (*client, bool) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "rate_limit", "too many concurrent streams")
		return nil, false
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.limiter.release(ip)
		writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return nil, false
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	h.logger.Info("stream connected",
		"stream", kind,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step", step,
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived stream: lift the server-wide write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
		started: time.Now(),
	}
	c.onClose = func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"stream", kind,
			"remote_ip", ip,
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
			"duration_seconds", int(time.Since(c.started).Seconds()),
		)
	}

	// Jittered reconnect delay (3-7 s) spreads reconnects after a restart.
	if err := c.sendRetry(3000 + rand.Intn(4000)); err != nil {
		c.close()
		return nil, false
	}

	if md, err := h.tracker.Metadata(); err == nil {
		meta := metadataMessage{
			Type:      "metadata",
			Source:    md.Source,
			FetchedAt: md.FetchedAt.Format(time.RFC3339),
			TLEAge:    int(md.AgeSeconds),
			Count:     md.Count,
		}
		if err := c.sendJSON(meta); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			c.close()
			return nil, false
		}
	}
	return c, true
}

// loop calls send immediately and then every step until the client goes
// away, writing keep-alives when idle.
func (h *Handler) loop(r *http.Request, c *client, step time.Duration, send func() error) {
	if err := send(); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "remote_ip", c.ip, "error", err)
		return
	}

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			sent := c.messagesSent
			if err := send(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", c.ip, "error", err)
				return
			}
			if c.messagesSent != sent {
				keepalive.Reset(h.config.KeepaliveInterval)
			}

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", c.ip, "error", err)
				return
			}
		}
	}
}

// buildBatchMessage formats a keyframe. With trail keyframes, each
// satellite carries its past sub-points, oldest first.
func buildBatchMessage(kf *tracking.Snapshot, trailKFs []*tracking.Snapshot) batchMessage {
	var trailIndex map[string][][2]float64
	if len(trailKFs) > 0 {
		trailIndex = make(map[string][][2]float64, len(kf.Positions))
		for _, tkf := range trailKFs {
			for _, p := range tkf.Positions {
				trailIndex[p.Name] = append(trailIndex[p.Name], [2]float64{round4(p.Latitude), round4(p.Longitude)})
			}
		}
	}

	sats := make([]satPayload, len(kf.Positions))
	for i, p := range kf.Positions {
		sats[i] = satPayload{
			Name: p.Name,
			ID:   p.CatalogNumber,
			Lat:  round4(p.Latitude),
			Lon:  round4(p.Longitude),
			Alt:  round1(p.Altitude),
		}
		if trailIndex != nil {
			sats[i].Tr = trailIndex[p.Name]
		}
	}
	return batchMessage{
		Type: "positions",
		T:    kf.Time.UTC().Format(time.RFC3339),
		Sat:  sats,
	}
}

// Payload precision: ~10 m horizontally, 100 m in altitude.
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }

type metadataMessage struct {
	Type      string `json:"type"`
	Source    string `json:"source"`
	FetchedAt string `json:"fetched_at"`
	TLEAge    int    `json:"tle_age_seconds"`
	Count     int    `json:"count"`
}

type batchMessage struct {
	Type string       `json:"type"`
	T    string       `json:"t"`
	Sat  []satPayload `json:"sat"`
}

type satPayload struct {
	Name string       `json:"name"`
	ID   int          `json:"id"`
	Lat  float64      `json:"lat"`
	Lon  float64      `json:"lon"`
	Alt  float64      `json:"alt"`
	Tr   [][2]float64 `json:"tr,omitempty"`
}

type positionMessage struct {
	Type string `json:"type"`
	tracking.Position
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
