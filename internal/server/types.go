package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/shapectx/internal/cache"
	"github.com/MeKo-Tech/shapectx/internal/descriptor"
	"github.com/MeKo-Tech/shapectx/internal/pipeline"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       *pipeline.Pipeline
	cache          cache.Cache
	rateLimiter    *RateLimiter
	corsOrigin     string
	maxUploadMB    int64
	timeout        time.Duration
	precision      int
	overlayEnabled bool
	overlayStyle   pipeline.OverlayStyle
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config // zero value selects pipeline.DefaultConfig()
	Precision      int
	OverlayEnabled bool
	OverlayStyle   pipeline.OverlayStyle
	RateLimit      RateLimitConfig
	Cache          cache.Cache // nil disables caching
}

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ContourRequest is the body of POST /v1/contour. Either Points or Chain
// must be given.
type ContourRequest struct {
	Points [][2]int `json:"points,omitempty"`
	Chain  string   `json:"chain,omitempty"`
}

// ContourResponse carries the descriptor of a single contour.
type ContourResponse struct {
	Success    bool                   `json:"success"`
	Vertices   int                    `json:"vertices"`
	Chain      string                 `json:"chain,omitempty"`
	ChainError string                 `json:"chain_error,omitempty"`
	Descriptor *descriptor.Descriptor `json:"descriptor"`
}

// NewServer creates a new analysis server instance.
func NewServer(config Config) (*Server, error) {
	if config.PipelineConfig == (pipeline.Config{}) {
		config.PipelineConfig = pipeline.DefaultConfig()
	}
	pl, err := pipeline.NewBuilderWithConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}

	s := &Server{
		pipeline:       pl,
		cache:          config.Cache,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		precision:      config.Precision,
		overlayEnabled: config.OverlayEnabled,
		overlayStyle:   config.OverlayStyle,
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// PruneRateLimits drops rate limit state of clients idle for longer than
// idle. It returns the number of removed clients.
func (s *Server) PruneRateLimits(idle time.Duration) int {
	if s.rateLimiter == nil {
		return 0
	}
	return s.rateLimiter.Prune(idle)
}

// SetupRoutes configures the HTTP routes. The websocket endpoint is not
// wrapped because the metrics response writer cannot be hijacked.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/analyze", s.corsMiddleware(s.rateLimitMiddleware(s.analyzeHandler)))
	mux.HandleFunc("/v1/contour", s.corsMiddleware(s.rateLimitMiddleware(s.contourHandler)))
	mux.HandleFunc("/v1/ws", s.rateLimitMiddleware(s.analyzeWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
