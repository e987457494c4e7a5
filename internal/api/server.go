// Package api exposes the tracking service over HTTP.
package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riyagpt0251/SatTrackAI/internal/auth"
	"github.com/riyagpt0251/SatTrackAI/internal/cache"
	"github.com/riyagpt0251/SatTrackAI/internal/health"
	"github.com/riyagpt0251/SatTrackAI/internal/httputil"
	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
	"github.com/riyagpt0251/SatTrackAI/internal/stream"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

// Config holds HTTP-level settings.
type Config struct {
	Addr             string
	Auth             auth.Config
	TrustProxy       bool
	DefaultSatellite string
	MaxUploadBytes   int64
}

// Deps are the components the routes are served from. Cache, Streams and
// Web may be nil; their routes are then not registered.
type Deps struct {
	Service *tracking.Service
	Loader  Reloader
	Cache   *cache.KeyframeCache
	Streams *stream.Handler
	Web     fs.FS
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if cfg.DefaultSatellite == "" {
		cfg.DefaultSatellite = "ISS (ZARYA)"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}

	h := &handlers{
		svc:       deps.Service,
		loader:    deps.Loader,
		cache:     deps.Cache,
		logger:    logger,
		maxUpload: cfg.MaxUploadBytes,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() error {
		if !deps.Service.Ready() {
			return tracking.ErrNoCatalog
		}
		return nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/satellites", h.listSatellites)
	mux.HandleFunc("GET /api/v1/satellites/{name}", h.satellite)
	mux.HandleFunc("GET /api/v1/satellites/{name}/position", h.position)
	mux.HandleFunc("GET /api/v1/satellites/{name}/track", h.track)
	mux.HandleFunc("GET /api/v1/satellites/{name}/look", h.look)
	mux.HandleFunc("GET /api/v1/satellites/{name}/passes", h.satellitePasses)
	mux.HandleFunc("GET /api/v1/positions", h.positions)
	mux.HandleFunc("GET /api/v1/passes", h.passes)
	mux.HandleFunc("GET /api/v1/tle/metadata", h.metadata)
	if deps.Loader != nil {
		mux.HandleFunc("POST /api/v1/tle/reload", h.reload)
	}
	if deps.Cache != nil {
		mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)
	}
	if deps.Streams != nil {
		mux.HandleFunc("GET /api/v1/satellites/{name}/stream", deps.Streams.HandleSatellite)
		if deps.Cache != nil {
			mux.HandleFunc("GET /api/v1/stream/positions", deps.Streams.HandlePositions)
		}
	}

	legacy := &legacyHandlers{handlers: h, satellite: cfg.DefaultSatellite}
	mux.HandleFunc("GET /track", legacy.track)
	if deps.Web != nil {
		if err := legacy.loadIndex(deps.Web); err != nil {
			return nil, err
		}
		mux.HandleFunc("GET /{$}", legacy.index)
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(deps.Web)))
	}

	// Middleware chain: metrics -> tracing -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = tracingMiddleware(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}, nil
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// probePath reports health/readiness probe paths, which are logged at DEBUG.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

var tracer = otel.Tracer("github.com/riyagpt0251/SatTrackAI/internal/api")

// tracingMiddleware opens a server span per request, named by the
// normalised route so span names stay bounded.
func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := metrics.Route(r.URL.Path)
		ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", sr.statusCode))
		if sr.statusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sr.statusCode))
		}
	})
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
