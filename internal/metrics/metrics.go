package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sattrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_propagations_total",
			Help: "Total number of satellite propagations by outcome.",
		},
		[]string{"result"},
	)

	propagationBatchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sattrack_propagation_batch_duration_seconds",
			Help:    "Time to propagate a whole catalog snapshot.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	propagationWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_propagation_workers",
			Help: "Number of propagation workers.",
		},
	)

	passSearchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sattrack_pass_search_duration_seconds",
			Help:    "Time to search one satellite for pass events.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	passEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_pass_events_total",
			Help: "Pass events found, by kind.",
		},
		[]string{"kind"},
	)

	catalogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_tle_catalog_size",
			Help: "Number of satellites in the published TLE catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_tle_catalog_age_seconds",
			Help: "Seconds since the published TLE catalog was fetched.",
		},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_tle_fetches_total",
			Help: "TLE download attempts by outcome.",
		},
		[]string{"result"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_streams_active",
			Help: "Number of open position streams.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_stream_connections_total",
			Help: "Stream connection lifecycle events.",
		},
		[]string{"event"},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattrack_stream_messages_total",
			Help: "Total SSE messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattrack_stream_bytes_total",
			Help: "Total bytes written to SSE clients.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_stream_errors_total",
			Help: "Stream errors by reason.",
		},
		[]string{"reason"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_keyframe_cache_lookups_total",
			Help: "Keyframe cache lookups by result.",
		},
		[]string{"result"},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattrack_keyframe_cache_evictions_total",
			Help: "Keyframes evicted from the trailing edge.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_keyframe_cache_entries",
			Help: "Number of cached keyframes.",
		},
	)

	cacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_keyframe_cache_size_bytes",
			Help: "Estimated memory held by cached keyframes.",
		},
	)

	cacheRegenerationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattrack_keyframe_cache_regeneration_errors_total",
			Help: "Keyframes that could not be generated.",
		},
	)

	cacheRegenerationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sattrack_keyframe_cache_regeneration_seconds",
			Help:    "Time to generate a keyframe or rebuild the window.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	cacheGracePeriod = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_keyframe_cache_cutover_active",
			Help: "1 while the cache is rebuilt for a new TLE catalog.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationsTotal,
		propagationBatchSeconds,
		propagationWorkers,
		passSearchSeconds,
		passEventsTotal,
		catalogSize,
		catalogAgeSeconds,
		tleFetchesTotal,
		streamsActive,
		streamConnectionsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		cacheLookupsTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheSizeBytes,
		cacheRegenerationErrors,
		cacheRegenerationSeconds,
		cacheGracePeriod,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one catalog batch: its duration and how many
// satellites succeeded or failed.
func RecordPropagation(d time.Duration, succeeded, failed int) {
	propagationBatchSeconds.Observe(d.Seconds())
	propagationsTotal.WithLabelValues("success").Add(float64(succeeded))
	propagationsTotal.WithLabelValues("error").Add(float64(failed))
}

// IncPropagation counts a single propagation outside a batch.
func IncPropagation(success bool) {
	propagationsTotal.WithLabelValues(result(success)).Inc()
}

func SetPropagationWorkers(n int) {
	propagationWorkers.Set(float64(n))
}

// ObservePassSearch records the duration of one pass search and the events it produced.
func ObservePassSearch(d time.Duration, events map[string]int) {
	passSearchSeconds.Observe(d.Seconds())
	for kind, n := range events {
		passEventsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func SetCatalogSize(n int) {
	catalogSize.Set(float64(n))
}

func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

func RecordTLEFetch(success bool) {
	tleFetchesTotal.WithLabelValues(result(success)).Inc()
}

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamConnections counts "connect" and "disconnect" events.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

func IncStreamMessages() { streamMessagesTotal.Inc() }

func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

func IncCacheHits()   { cacheLookupsTotal.WithLabelValues("hit").Inc() }
func IncCacheMisses() { cacheLookupsTotal.WithLabelValues("miss").Inc() }

func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }

func SetCacheEntries(n int)       { cacheEntries.Set(float64(n)) }
func SetCacheSizeBytes(n int64)   { cacheSizeBytes.Set(float64(n)) }
func IncCacheRegenerationErrors() { cacheRegenerationErrors.Inc() }

func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenerationSeconds.Observe(d.Seconds())
}

func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGracePeriod.Set(1)
		return
	}
	cacheGracePeriod.Set(0)
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

var exactRoutes = map[string]bool{
	"/":                        true,
	"/track":                   true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/satellites":       true,
	"/api/v1/positions":        true,
	"/api/v1/passes":           true,
	"/api/v1/tle/metadata":     true,
	"/api/v1/tle/reload":       true,
	"/api/v1/cache/stats":      true,
	"/api/v1/stream/positions": true,
}

var satelliteSubroutes = map[string]bool{
	"position": true,
	"track":    true,
	"look":     true,
	"passes":   true,
	"stream":   true,
}

// Route returns the bounded route label for path, for use outside this
// package (span names).
func Route(path string) string {
	return normalizeRoute(path)
}

// normalizeRoute maps a request path to a bounded set of labels so that
// satellite names and bot probes cannot blow up label cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/static/") && len(path) > len("/static/") {
		return "/static/{file}"
	}

	rest, ok := strings.CutPrefix(path, "/api/v1/satellites/")
	if !ok || rest == "" {
		return "other"
	}
	name, sub, hasSub := strings.Cut(rest, "/")
	if name == "" {
		return "other"
	}
	if !hasSub {
		return "/api/v1/satellites/{name}"
	}
	if satelliteSubroutes[sub] {
		return "/api/v1/satellites/{name}/" + sub
	}
	return "other"
}
