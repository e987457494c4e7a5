package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/riyagpt0251/SatTrackAI/internal/api"
	"github.com/riyagpt0251/SatTrackAI/internal/cache"
	"github.com/riyagpt0251/SatTrackAI/internal/clock"
	"github.com/riyagpt0251/SatTrackAI/internal/config"
	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
	"github.com/riyagpt0251/SatTrackAI/internal/observability"
	"github.com/riyagpt0251/SatTrackAI/internal/stream"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
	"github.com/riyagpt0251/SatTrackAI/web"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sattrack",
	Short: "Satellite tracking HTTP service",
	Long: `sattrack serves satellite positions, ground tracks, look angles and
pass predictions computed from TLE data, plus a live map page.

Settings come from defaults, an optional config file (--config or
$SATTRACK_CONFIG) and SATTRACK_* environment variables.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (yaml, toml or json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sattrack: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	shutdownTracing, err := observability.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.Shutdown(context.Background(), shutdownTracing, logger)

	tleCache, closeCache, err := newTLECache(ctx, cfg.TLE, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var fetcher *tle.Fetcher
	if cfg.TLE.FetchEnabled {
		fetcher = tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
	}

	clk := clock.Real{}
	store := tle.NewStore()
	loader := tle.NewLoader(store, fetcher, tleCache, clk, logger)

	if err := loadInitial(ctx, loader, cfg.TLE, logger); err != nil {
		return err
	}

	svc := tracking.New(store, clk, cfg.Tracking, logger)
	metrics.SetPropagationWorkers(cfg.Tracking.Workers)

	var kfCache *cache.KeyframeCache
	if cfg.Keyframes.Enabled {
		kfCache = cache.NewKeyframeCache(cfg.Keyframes.Config, svc, store, clk, logger)
		go kfCache.Start(ctx)
	}
	streams := stream.NewHandler(kfCache, svc, cfg.Stream, logger)

	srv, err := api.NewServer(cfg.HTTP, api.Deps{
		Service: svc,
		Loader:  loader,
		Cache:   kfCache,
		Streams: streams,
		Web:     web.Content,
	}, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	// Refresh immediately, then on the configured interval. Without a
	// fetcher the loop only keeps the catalog age gauge current.
	go func() {
		if fetcher != nil {
			if _, err := loader.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("initial TLE fetch failed", "error", err)
			}
		}
		interval := cfg.TLE.RefreshInterval
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		loader.Run(ctx, interval)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.HTTP.Auth.Enabled,
			"tle_fetch_enabled", cfg.TLE.FetchEnabled,
			"tle_cache", cfg.TLE.CacheBackend,
			"keyframes_enabled", cfg.Keyframes.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newTLECache builds the configured download cache. The returned close
// function is always non-nil.
func newTLECache(ctx context.Context, cfg config.TLEConfig, logger *slog.Logger) (tle.Cache, func(), error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Redis may come up later; each cache call reports its own error.
			logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close failed", "error", err)
			}
		}
		return tle.NewRedisCache(client, cfg.RedisPrefix, cfg.MaxEntries), closeFn, nil
	case config.BackendFile:
		return tle.NewFileCache(cfg.CacheDir, cfg.MaxEntries), func() {}, nil
	case config.BackendNone:
		return nil, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown TLE cache backend %q", cfg.CacheBackend)
}

// loadInitial publishes a local TLE file when one is configured, otherwise
// the newest cached download. Starting without data is allowed; the
// service reports 503 until a catalog arrives.
func loadInitial(ctx context.Context, loader *tle.Loader, cfg config.TLEConfig, logger *slog.Logger) error {
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return fmt.Errorf("read TLE file: %w", err)
		}
		if _, err := loader.Publish(data, "file:"+cfg.File, time.Now()); err != nil {
			return fmt.Errorf("load TLE file %s: %w", cfg.File, err)
		}
		return nil
	}

	if _, err := loader.LoadCached(ctx); err != nil {
		logger.Info("no usable TLE cache, starting without TLE data", "error", err)
	}
	return nil
}
