package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riyagpt0251/SatTrackAI/internal/cache"
	"github.com/riyagpt0251/SatTrackAI/internal/passes"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

// Reloader replaces the published catalog.
type Reloader interface {
	Refresh(ctx context.Context) (*tle.Dataset, error)
	Publish(data []byte, source string, fetchedAt time.Time) (*tle.Dataset, error)
}

type handlers struct {
	svc       *tracking.Service
	loader    Reloader
	cache     *cache.KeyframeCache
	logger    *slog.Logger
	maxUpload int64
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

// GET /api/v1/satellites
func (h *handlers) listSatellites(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "satellites": list})
}

// GET /api/v1/satellites/{name}
func (h *handlers) satellite(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Elements(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/v1/satellites/{name}/position?t=
func (h *handlers) position(w http.ResponseWriter, r *http.Request) {
	at, err := queryTime(r.URL.Query(), "t")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pos, err := h.svc.Position(r.PathValue("name"), at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// GET /api/v1/satellites/{name}/track?start=&minutes=&step=
func (h *handlers) track(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := h.svc.Config()

	start, err := queryTime(q, "start")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	step, err := queryDuration(q, "step", cfg.TrackStep)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	minutes, err := queryFloat(q, "minutes", float64(cfg.TrackSamples)*cfg.TrackStep.Minutes())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if minutes <= 0 {
		h.fail(w, r, &paramError{name: "minutes", msg: "must be positive"})
		return
	}
	span := time.Duration(minutes * float64(time.Minute))
	samples := max(int(span/step), 1)

	points, err := h.svc.Track(r.PathValue("name"), start, samples, step)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   r.PathValue("name"),
		"step_s": step.Seconds(),
		"points": points,
	})
}

// GET /api/v1/satellites/{name}/look?lat=&lon=&elevation=&t=&min_elevation=
func (h *handlers) look(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, err := queryObserver(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	at, err := queryTime(q, "t")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	minEl, err := queryFloat(q, "min_elevation", h.svc.Config().MinElevation)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	look, err := h.svc.Look(r.PathValue("name"), obs, at, minEl)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, look)
}

// passWindow reads the shared pass-search parameters.
type passWindow struct {
	start, end time.Time
	minEl      float64
	policy     passes.PartialPolicy
}

func (h *handlers) passWindow(r *http.Request) (passWindow, error) {
	q := r.URL.Query()
	cfg := h.svc.Config()

	start, err := queryTime(q, "start")
	if err != nil {
		return passWindow{}, err
	}
	if start.IsZero() {
		start = h.svc.Now()
	}
	hours, err := queryFloat(q, "hours", 24)
	if err != nil {
		return passWindow{}, err
	}
	if hours <= 0 {
		return passWindow{}, &paramError{name: "hours", msg: "must be positive"}
	}
	if limit := cfg.MaxPassWindow.Hours(); hours > limit {
		return passWindow{}, &paramError{name: "hours", msg: fmt.Sprintf("must not exceed %g", limit)}
	}
	minEl, err := queryFloat(q, "min_elevation", cfg.MinElevation)
	if err != nil {
		return passWindow{}, err
	}
	policy := cfg.PartialPolicy
	if v := q.Get("partial"); v != "" {
		if policy, err = passes.ParsePartialPolicy(v); err != nil {
			return passWindow{}, &paramError{name: "partial", msg: err.Error()}
		}
	}
	return passWindow{
		start:  start,
		end:    start.Add(time.Duration(hours * float64(time.Hour))),
		minEl:  minEl,
		policy: policy,
	}, nil
}

// GET /api/v1/satellites/{name}/passes
func (h *handlers) satellitePasses(w http.ResponseWriter, r *http.Request) {
	obs, err := queryObserver(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pw, err := h.passWindow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.svc.Passes(r.Context(), r.PathValue("name"), obs, pw.start, pw.end, pw.minEl, pw.policy)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type satellitePassesBody struct {
	passes.SatellitePasses
	Error string `json:"error,omitempty"`
}

// GET /api/v1/passes?names=a,b
func (h *handlers) passes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, err := queryObserver(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pw, err := h.passWindow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	names := queryNames(q, "names")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("satellites", len(names)))

	results, err := h.svc.PassesFor(r.Context(), names, obs, pw.start, pw.end, pw.minEl, pw.policy)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body := make([]satellitePassesBody, len(results))
	for i, res := range results {
		body[i] = satellitePassesBody{SatellitePasses: res}
		if res.Err != nil {
			body[i].Error = res.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"start":         pw.start,
		"end":           pw.end,
		"min_elevation": pw.minEl,
		"results":       body,
	})
}

// GET /api/v1/positions?t=
func (h *handlers) positions(w http.ResponseWriter, r *http.Request) {
	at, err := queryTime(r.URL.Query(), "t")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// The current instant is usually already in the keyframe cache.
	if at.IsZero() && h.cache != nil {
		if kf := h.cache.Get(h.svc.Now()); kf != nil {
			writeJSON(w, http.StatusOK, kf)
			return
		}
	}

	snap, err := h.svc.Snapshot(r.Context(), at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /api/v1/tle/metadata
func (h *handlers) metadata(w http.ResponseWriter, r *http.Request) {
	md, err := h.svc.Metadata()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// POST /api/v1/tle/reload
//
// An empty body refreshes from the configured source. A non-empty body is
// parsed as TLE text and published as the new catalog.
func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error(), Kind: "too_large"})
			return
		}
		h.fail(w, r, err)
		return
	}

	var ds *tle.Dataset
	if len(data) > 0 {
		ds, err = h.loader.Publish(data, "upload", h.svc.Now())
	} else {
		ds, err = h.loader.Refresh(r.Context())
	}
	if err != nil {
		if status, _ := classify(err); status == http.StatusInternalServerError {
			h.logger.Warn("TLE reload failed", "component", "api", "error", err)
			writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Kind: "upstream"})
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("TLE catalog reloaded", "component", "api", "source", ds.Source, "count", ds.Catalog.Len())
	md, err := h.svc.Metadata()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// GET /api/v1/cache/stats
func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}
