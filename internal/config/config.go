// Package config loads service settings from defaults, an optional config
// file and SATTRACK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/riyagpt0251/SatTrackAI/internal/api"
	"github.com/riyagpt0251/SatTrackAI/internal/auth"
	"github.com/riyagpt0251/SatTrackAI/internal/cache"
	"github.com/riyagpt0251/SatTrackAI/internal/observability"
	"github.com/riyagpt0251/SatTrackAI/internal/passes"
	"github.com/riyagpt0251/SatTrackAI/internal/stream"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

// EnvPrefix prefixes every environment override, e.g. SATTRACK_HTTP_ADDR
// for the key http.addr.
const EnvPrefix = "SATTRACK"

// EnvConfigFile names a config file when --config is not given.
const EnvConfigFile = EnvPrefix + "_CONFIG"

// TLE cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// TLEConfig controls where catalogs come from and where downloads are kept.
type TLEConfig struct {
	FetchEnabled    bool
	SourceURL       string
	ExtraURLs       []string
	RefreshInterval time.Duration
	File            string // local TLE file published at startup

	CacheBackend string
	CacheDir     string
	MaxEntries   int
	RedisAddr    string
	RedisPrefix  string
}

// KeyframeConfig enables and shapes the snapshot cache behind the streams.
type KeyframeConfig struct {
	Enabled bool
	cache.Config
}

// Config is the complete service configuration.
type Config struct {
	HTTP      api.Config
	TLE       TLEConfig
	Tracking  tracking.Config
	Keyframes KeyframeConfig
	Stream    stream.Config
	LogLevel  slog.Level
	Tracing   observability.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("http.default_satellite", "ISS (ZARYA)")
	v.SetDefault("http.max_upload_bytes", 50<<20)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")

	v.SetDefault("tle.fetch_enabled", true)
	v.SetDefault("tle.source_url", "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle")
	v.SetDefault("tle.extra_urls", []string{})
	v.SetDefault("tle.refresh_interval", 6*time.Hour)
	v.SetDefault("tle.file", "")
	v.SetDefault("tle.cache.backend", BackendFile)
	v.SetDefault("tle.cache.dir", "/tmp/sattrack/tle")
	v.SetDefault("tle.cache.max_entries", 5)
	v.SetDefault("tle.cache.redis_addr", "")
	v.SetDefault("tle.cache.redis_prefix", "sattrack:tle")

	def := tracking.DefaultConfig()
	v.SetDefault("tracking.track_samples", def.TrackSamples)
	v.SetDefault("tracking.track_step", def.TrackStep)
	v.SetDefault("tracking.max_track_samples", def.MaxTrackSamples)
	v.SetDefault("tracking.max_pass_window", def.MaxPassWindow)
	v.SetDefault("tracking.min_elevation", def.MinElevation)
	v.SetDefault("tracking.workers", def.Workers)

	v.SetDefault("passes.step", def.PassOptions.Step)
	v.SetDefault("passes.tolerance", def.PassOptions.Tolerance)
	v.SetDefault("passes.partial_policy", def.PartialPolicy.String())

	kf := cache.DefaultConfig()
	v.SetDefault("keyframes.enabled", true)
	v.SetDefault("keyframes.step", kf.Step)
	v.SetDefault("keyframes.horizon", kf.Horizon)
	v.SetDefault("keyframes.grace_period", kf.GracePeriod)
	v.SetDefault("keyframes.buffer", kf.Buffer)

	st := stream.DefaultConfig()
	v.SetDefault("stream.max_concurrent_per_ip", st.MaxConcurrentPerIP)
	v.SetDefault("stream.max_concurrent", st.MaxConcurrent)
	v.SetDefault("stream.keepalive_interval", st.KeepaliveInterval)

	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "sattrack")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load reads configuration. path names a YAML, TOML or JSON file; when
// empty, $SATTRACK_CONFIG is consulted and a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	policy, err := passes.ParsePartialPolicy(v.GetString("passes.partial_policy"))
	if err != nil {
		return Config{}, fmt.Errorf("passes.partial_policy: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("log.level: %w", err)
	}

	trustProxy := v.GetBool("http.trust_proxy")

	cfg := Config{
		HTTP: api.Config{
			Addr: v.GetString("http.addr"),
			Auth: auth.Config{
				Enabled: v.GetBool("auth.enabled"),
				Token:   v.GetString("auth.token"),
			},
			TrustProxy:       trustProxy,
			DefaultSatellite: v.GetString("http.default_satellite"),
			MaxUploadBytes:   v.GetInt64("http.max_upload_bytes"),
		},
		TLE: TLEConfig{
			FetchEnabled:    v.GetBool("tle.fetch_enabled"),
			SourceURL:       v.GetString("tle.source_url"),
			ExtraURLs:       splitList(v.GetStringSlice("tle.extra_urls")),
			RefreshInterval: v.GetDuration("tle.refresh_interval"),
			File:            v.GetString("tle.file"),
			CacheBackend:    strings.ToLower(v.GetString("tle.cache.backend")),
			CacheDir:        v.GetString("tle.cache.dir"),
			MaxEntries:      v.GetInt("tle.cache.max_entries"),
			RedisAddr:       v.GetString("tle.cache.redis_addr"),
			RedisPrefix:     v.GetString("tle.cache.redis_prefix"),
		},
		Tracking: tracking.Config{
			TrackSamples:    v.GetInt("tracking.track_samples"),
			TrackStep:       v.GetDuration("tracking.track_step"),
			MaxTrackSamples: v.GetInt("tracking.max_track_samples"),
			MaxPassWindow:   v.GetDuration("tracking.max_pass_window"),
			MinElevation:    v.GetFloat64("tracking.min_elevation"),
			PassOptions: passes.Options{
				Step:      v.GetDuration("passes.step"),
				Tolerance: v.GetDuration("passes.tolerance"),
			},
			PartialPolicy: policy,
			Workers:       v.GetInt("tracking.workers"),
		},
		Keyframes: KeyframeConfig{
			Enabled: v.GetBool("keyframes.enabled"),
			Config: cache.Config{
				Step:        v.GetDuration("keyframes.step"),
				Horizon:     v.GetDuration("keyframes.horizon"),
				GracePeriod: v.GetDuration("keyframes.grace_period"),
				Buffer:      v.GetDuration("keyframes.buffer"),
			},
		},
		Stream: stream.Config{
			MaxConcurrentPerIP: v.GetInt("stream.max_concurrent_per_ip"),
			MaxConcurrent:      v.GetInt("stream.max_concurrent"),
			KeepaliveInterval:  v.GetDuration("stream.keepalive_interval"),
			TrustProxy:         trustProxy,
		},
		LogLevel: level,
		Tracing: observability.Config{
			Enabled:     v.GetBool("tracing.enabled"),
			ServiceName: v.GetString("tracing.service_name"),
			Exporter:    strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:    v.GetString("tracing.endpoint"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
	}
	return cfg, cfg.Validate()
}

// splitList flattens comma separated entries, as produced by an
// environment variable, and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(key, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{key}, args...)...))
	}

	if c.HTTP.Addr == "" {
		bad("http.addr", "must not be empty")
	}
	if c.HTTP.MaxUploadBytes < 1 {
		bad("http.max_upload_bytes", "must be positive")
	}
	if c.HTTP.Auth.Enabled && c.HTTP.Auth.Token == "" {
		bad("auth.token", "required when auth is enabled")
	}

	if c.TLE.FetchEnabled && c.TLE.RefreshInterval <= 0 {
		bad("tle.refresh_interval", "must be positive when fetching is enabled")
	}
	switch c.TLE.CacheBackend {
	case BackendFile:
		if c.TLE.CacheDir == "" {
			bad("tle.cache.dir", "required for the file backend")
		}
	case BackendRedis:
		if c.TLE.RedisAddr == "" {
			bad("tle.cache.redis_addr", "required for the redis backend")
		}
	case BackendNone:
	default:
		bad("tle.cache.backend", "unknown backend %q", c.TLE.CacheBackend)
	}
	if c.TLE.CacheBackend != BackendNone && c.TLE.MaxEntries < 1 {
		bad("tle.cache.max_entries", "must be at least 1")
	}

	t := c.Tracking
	if t.TrackSamples < 1 || t.TrackSamples > t.MaxTrackSamples {
		bad("tracking.track_samples", "must be in [1, tracking.max_track_samples]")
	}
	if t.TrackStep <= 0 {
		bad("tracking.track_step", "must be positive")
	}
	if t.MaxPassWindow <= 0 {
		bad("tracking.max_pass_window", "must be positive")
	}
	if t.MinElevation < -90 || t.MinElevation > 90 {
		bad("tracking.min_elevation", "must be in [-90, 90]")
	}
	if t.Workers < 1 {
		bad("tracking.workers", "must be at least 1")
	}
	if t.PassOptions.Step <= 0 || t.PassOptions.Tolerance <= 0 {
		bad("passes.step", "step and tolerance must be positive")
	}

	if c.Keyframes.Enabled {
		k := c.Keyframes.Config
		if k.Step <= 0 {
			bad("keyframes.step", "must be positive")
		}
		if k.Horizon < k.Step {
			bad("keyframes.horizon", "must be at least one step")
		}
		if k.GracePeriod <= 0 {
			bad("keyframes.grace_period", "must be positive")
		}
		if k.Buffer < 0 {
			bad("keyframes.buffer", "must not be negative")
		}
	}

	if c.Stream.MaxConcurrentPerIP < 1 || c.Stream.MaxConcurrent < c.Stream.MaxConcurrentPerIP {
		bad("stream.max_concurrent", "need 1 <= max_concurrent_per_ip <= max_concurrent")
	}
	if c.Stream.KeepaliveInterval <= 0 {
		bad("stream.keepalive_interval", "must be positive")
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			bad("tracing.exporter", "unknown exporter %q", c.Tracing.Exporter)
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		bad("tracing.sample_ratio", "must be in [0, 1]")
	}

	return errors.Join(errs...)
}
