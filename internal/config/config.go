package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/shapectx/internal/batch"
	"github.com/MeKo-Tech/shapectx/internal/cache"
	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/report"
	"github.com/MeKo-Tech/shapectx/internal/utils"
)

// Cache backends.
const (
	CacheNone   = cache.BackendNone
	CacheMemory = cache.BackendMemory
	CacheRedis  = cache.BackendRedis
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	constraints := utils.DefaultImageConstraints()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Analysis: AnalysisConfig{
			Invert:    false,
			Threshold: -1,
			MinPoints: 1,
			Workers:   runtime.NumCPU(),
			MaxPixels: constraints.MaxPixels,
		},
		Output: OutputConfig{
			Format:             report.FormatXML,
			Precision:          report.DefaultPrecision,
			OverlayRectColor:   "#ffd700",
			OverlayAxisColor:   "#00e5ff",
			OverlayFailedColor: "#ff1744",
		},
		Batch: BatchConfig{
			Workers:         runtime.NumCPU(),
			ContinueOnError: true,
			Recursive:       true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
				MaxDataPerDayMB:   1024,
			},
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			TTLSec:     3600,
			MaxEntries: 256,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "shapectx:",
			},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !report.ValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(report.Formats(), ", "))
	}
	if c.Output.Precision < 1 || c.Output.Precision > report.DefaultPrecision {
		return fmt.Errorf("invalid output precision: %d (must be between 1 and %d)",
			c.Output.Precision, report.DefaultPrecision)
	}
	if _, err := c.OverlayStyle(); err != nil {
		return fmt.Errorf("invalid overlay style: %w", err)
	}

	if c.Analysis.Threshold > 255 {
		return fmt.Errorf("invalid analysis threshold: %d (must be at most 255, negative selects Otsu)", c.Analysis.Threshold)
	}
	if c.Analysis.MinPoints < 1 {
		return fmt.Errorf("invalid analysis min points: %d (must be positive)", c.Analysis.MinPoints)
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("invalid analysis workers: %d (must be positive)", c.Analysis.Workers)
	}
	if c.Analysis.MaxPixels < 0 {
		return fmt.Errorf("invalid analysis max pixels: %d (must not be negative)", c.Analysis.MaxPixels)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit: limits must not be negative")
	}

	validBackends := []string{CacheNone, CacheMemory, CacheRedis}
	if !slices.Contains(validBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend: %s (must be one of: %s)", c.Cache.Backend, strings.Join(validBackends, ", "))
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("invalid cache ttl: %d (must not be negative)", c.Cache.TTLSec)
	}
	if c.Cache.Backend == CacheMemory && c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("invalid cache max entries: %d (must be positive)", c.Cache.MaxEntries)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("redis cache requires cache.redis.addr")
	}

	return nil
}

// OverlayStyle parses the configured overlay colors.
func (c *Config) OverlayStyle() (pipeline.OverlayStyle, error) {
	return pipeline.ParseOverlayStyle(
		c.Output.OverlayContourColor,
		c.Output.OverlayRectColor,
		c.Output.OverlayAxisColor,
		c.Output.OverlayFailedColor,
	)
}

// ToPipelineBuilder returns a pipeline builder carrying the analysis settings.
func (c *Config) ToPipelineBuilder() *pipeline.Builder {
	constraints := utils.DefaultImageConstraints()
	if c.Analysis.MaxPixels > 0 {
		constraints.MaxPixels = c.Analysis.MaxPixels
	}
	return pipeline.NewBuilder().
		WithInvert(c.Analysis.Invert).
		WithThreshold(c.Analysis.Threshold).
		WithMinPoints(c.Analysis.MinPoints).
		WithWorkers(c.Analysis.Workers).
		WithConstraints(constraints)
}

// ToBatchConfig converts the config to the batch processing configuration.
// Command flags are applied on top of the returned value.
func (c *Config) ToBatchConfig() *batch.Config {
	bc := batch.DefaultConfig()
	bc.Invert = c.Analysis.Invert
	bc.Threshold = c.Analysis.Threshold
	bc.MinPoints = c.Analysis.MinPoints
	bc.Format = c.Output.Format
	bc.Precision = c.Output.Precision
	bc.OutputFile = c.Output.File
	bc.OverlayDir = c.Output.OverlayDir
	if style, err := c.OverlayStyle(); err == nil {
		bc.Overlay = style
	}
	bc.OutputDir = c.Batch.OutputDir
	bc.Force = c.Batch.Force
	bc.Workers = c.Batch.Workers
	bc.ContinueOnError = c.Batch.ContinueOnError
	bc.Recursive = c.Batch.Recursive
	return bc
}

// CacheTTL returns the cache entry lifetime; zero means no expiry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// ToCacheOptions converts the cache section for cache.New.
func (c *Config) ToCacheOptions() cache.Options {
	return cache.Options{
		Backend:    c.Cache.Backend,
		TTL:        c.CacheTTL(),
		MaxEntries: c.Cache.MaxEntries,
		Redis: cache.RedisOptions{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
			Prefix:   c.Cache.Redis.Prefix,
		},
	}
}
