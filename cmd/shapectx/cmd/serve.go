package cmd

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

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/shapectx/internal/cache"
	"github.com/MeKo-Tech/shapectx/internal/config"
	"github.com/MeKo-Tech/shapectx/internal/server"
)

// rateLimitPruneInterval is how often idle rate limit clients are dropped.
const rateLimitPruneInterval = 10 * time.Minute

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for shape analysis",
	Long: `Start an HTTP server that provides REST and websocket endpoints for shape analysis.

The server provides the following endpoints:
  POST /v1/analyze - Analyze an uploaded silhouette image
  POST /v1/contour - Describe a single contour given as points or chain code
  GET  /v1/ws      - Stream per-contour results over a websocket
  GET  /health     - Health check endpoint
  GET  /metrics    - Prometheus metrics

Examples:
  shapectx serve
  shapectx serve --port 8080
  shapectx serve --host 0.0.0.0 --port 3000 --cache-backend redis`,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

// configToServeConfig applies the serve flags to the loaded configuration.
func configToServeConfig(cfg *config.Config, cmd *cobra.Command) *config.Config {
	out := *cfg
	f := cmd.Flags()

	if f.Changed("host") {
		out.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		out.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		out.Server.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		out.Server.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		out.Server.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		out.Server.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("overlay-enable") {
		out.Server.OverlayEnabled, _ = f.GetBool("overlay-enable")
	}
	if f.Changed("invert") {
		out.Analysis.Invert, _ = f.GetBool("invert")
	}
	if f.Changed("min-points") {
		out.Analysis.MinPoints, _ = f.GetInt("min-points")
	}

	// Rate limiting
	if f.Changed("rate-limit-enabled") {
		out.Server.RateLimit.Enabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		out.Server.RateLimit.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		out.Server.RateLimit.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		out.Server.RateLimit.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		out.Server.RateLimit.MaxDataPerDayMB, _ = f.GetInt64("max-data-per-day")
	}

	// Result cache
	if f.Changed("cache-backend") {
		out.Cache.Backend, _ = f.GetString("cache-backend")
	}
	if f.Changed("cache-ttl") {
		out.Cache.TTLSec, _ = f.GetInt("cache-ttl")
	}
	if f.Changed("redis-addr") {
		out.Cache.Redis.Addr, _ = f.GetString("redis-addr")
	}
	return &out
}

// serverConfig builds the server configuration around an opened cache.
func serverConfig(cfg *config.Config, c cache.Cache) (server.Config, error) {
	pb := cfg.ToPipelineBuilder()
	if err := pb.Validate(); err != nil {
		return server.Config{}, err
	}
	style, err := cfg.OverlayStyle()
	if err != nil {
		return server.Config{}, err
	}
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		PipelineConfig: pb.Config(),
		Precision:      cfg.Output.Precision,
		OverlayEnabled: cfg.Server.OverlayEnabled,
		OverlayStyle:   style,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDayMB * 1024 * 1024,
		},
		Cache: c,
	}, nil
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := configToServeConfig(GetConfig(), cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	resultCache, err := cache.New(ctx, cfg.ToCacheOptions())
	if err != nil {
		return fmt.Errorf("failed to open result cache: %w", err)
	}

	srvCfg, err := serverConfig(cfg, resultCache)
	if err != nil {
		_ = resultCache.Close()
		return err
	}
	shapeServer, err := server.NewServer(srvCfg)
	if err != nil {
		_ = resultCache.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	shapeServer.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	go func() {
		slog.Info("Starting shape server", "host", cfg.Server.Host, "port", cfg.Server.Port,
			"cache", cfg.Cache.Backend, "rate_limit", cfg.Server.RateLimit.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	if cfg.Server.RateLimit.Enabled {
		go pruneRateLimits(ctx, shapeServer)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if err := shapeServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

// pruneRateLimits periodically forgets clients that stopped sending requests.
func pruneRateLimits(ctx context.Context, s *server.Server) {
	ticker := time.NewTicker(rateLimitPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneRateLimits(24 * time.Hour); n > 0 {
				slog.Debug("Pruned idle rate limit clients", "count", n)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("overlay-enable", true, "enable overlay image responses")
	// Default analysis settings of the server
	serveCmd.Flags().Bool("invert", false, "treat dark pixels as the silhouette by default")
	serveCmd.Flags().Int("min-points", 1, "contours with fewer points are reported as failed")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 10000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 1024, "maximum data uploaded per day per client (MB)")
	// Cache flags
	serveCmd.Flags().String("cache-backend", cache.BackendMemory, "result cache backend: none, memory, redis")
	serveCmd.Flags().Int("cache-ttl", 3600, "result cache entry lifetime in seconds")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "redis address for the redis cache backend")
}
