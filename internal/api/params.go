package api

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

// queryTime parses an RFC 3339 timestamp or Unix seconds. A missing value
// yields the zero time, which the service reads as "now".
func queryTime(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		sec, frac := math.Modf(secs)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}
	return time.Time{}, &paramError{name: name, msg: "want RFC 3339 time or Unix seconds"}
}

// queryFloat parses an optional finite float.
func queryFloat(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &paramError{name: name, msg: "want a number"}
	}
	return f, nil
}

// queryDuration accepts Go duration syntax ("30s", "2m") or plain seconds.
func queryDuration(q url.Values, name string, def time.Duration) (time.Duration, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 && !math.IsInf(secs, 0) {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, &paramError{name: name, msg: "want a positive duration"}
}

// queryObserver reads lat, lon and elevation (metres, default 0).
func queryObserver(q url.Values) (transform.Observer, error) {
	for _, name := range []string{"lat", "lon"} {
		if q.Get(name) == "" {
			return transform.Observer{}, &paramError{name: name, msg: "required"}
		}
	}
	lat, err := queryFloat(q, "lat", 0)
	if err != nil {
		return transform.Observer{}, err
	}
	lon, err := queryFloat(q, "lon", 0)
	if err != nil {
		return transform.Observer{}, err
	}
	elev, err := queryFloat(q, "elevation", 0)
	if err != nil {
		return transform.Observer{}, err
	}
	return transform.NewObserver(lat, lon, elev)
}

// queryNames splits a comma-separated list, dropping empty items.
func queryNames(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
