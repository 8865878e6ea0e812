//nolint:lll
package config

// Config represents the complete configuration for shapectx. It covers all
// commands (contour, batch, serve) and is loaded from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Silhouette analysis
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis" json:"analysis"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Result cache used by the server
	Cache CacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`
}

// AnalysisConfig contains binarization and contour analysis settings.
type AnalysisConfig struct {
	Invert    bool `mapstructure:"invert" yaml:"invert" json:"invert"`
	Threshold int  `mapstructure:"threshold" yaml:"threshold" json:"threshold"` // -1 selects Otsu
	MinPoints int  `mapstructure:"min_points" yaml:"min_points" json:"min_points"`
	Workers   int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	MaxPixels int  `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format              string `mapstructure:"format" yaml:"format" json:"format"`
	File                string `mapstructure:"file" yaml:"file" json:"file"`
	Precision           int    `mapstructure:"precision" yaml:"precision" json:"precision"`
	OverlayDir          string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayContourColor string `mapstructure:"overlay_contour_color" yaml:"overlay_contour_color" json:"overlay_contour_color"`
	OverlayRectColor    string `mapstructure:"overlay_rect_color" yaml:"overlay_rect_color" json:"overlay_rect_color"`
	OverlayAxisColor    string `mapstructure:"overlay_axis_color" yaml:"overlay_axis_color" json:"overlay_axis_color"`
	OverlayFailedColor  string `mapstructure:"overlay_failed_color" yaml:"overlay_failed_color" json:"overlay_failed_color"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Force           bool   `mapstructure:"force" yaml:"force" json:"force"`
	Recursive       bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// CacheConfig selects and tunes the analysis result cache.
type CacheConfig struct {
	Backend    string      `mapstructure:"backend" yaml:"backend" json:"backend"` // none, memory, redis
	TTLSec     int         `mapstructure:"ttl_sec" yaml:"ttl_sec" json:"ttl_sec"`
	MaxEntries int         `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	Redis      RedisConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// RedisConfig contains the Redis connection used by the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
}
