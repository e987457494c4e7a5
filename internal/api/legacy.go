package api

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/tle"
)

// legacyTimeLayout is the timestamp format the map page expects from /track.
const legacyTimeLayout = "2006-01-02 15:04:05"

// legacyHandlers serve the map page and its /track feed.
type legacyHandlers struct {
	*handlers
	satellite string
	page      *template.Template
}

func (l *legacyHandlers) loadIndex(web fs.FS) error {
	page, err := template.ParseFS(web, "index.html")
	if err != nil {
		return err
	}
	l.page = page
	return nil
}

type indexData struct {
	Satellite string
}

// GET /
func (l *legacyHandlers) index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := l.page.Execute(&buf, indexData{Satellite: l.satellite}); err != nil {
		l.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

type legacyTrack struct {
	Satellite  string    `json:"satellite"`
	Latitudes  []float64 `json:"latitudes"`
	Longitudes []float64 `json:"longitudes"`
	Timestamps []string  `json:"timestamps"`
}

// GET /track?satellite=
//
// The next 30 minutes of ground track at one-minute spacing, as parallel
// arrays.
func (l *legacyHandlers) track(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("satellite")
	if name == "" {
		name = l.satellite
	}

	cfg := l.svc.Config()
	points, err := l.svc.Track(name, time.Time{}, cfg.TrackSamples, cfg.TrackStep)
	if err != nil {
		var nf *tle.NotFoundError
		if errors.As(err, &nf) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Satellite not found", Kind: "not_found"})
			return
		}
		l.fail(w, r, err)
		return
	}

	out := legacyTrack{
		Satellite:  name,
		Latitudes:  make([]float64, len(points)),
		Longitudes: make([]float64, len(points)),
		Timestamps: make([]string, len(points)),
	}
	for i, p := range points {
		out.Latitudes[i] = p.Latitude
		out.Longitudes[i] = p.Longitude
		out.Timestamps[i] = p.Time.Format(legacyTimeLayout)
	}
	writeJSON(w, http.StatusOK, out)
}
