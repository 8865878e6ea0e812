package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/cache"
	"github.com/MeKo-Tech/shapectx/internal/config"
)

func TestServeCommand(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	assert.Contains(t, serveCmd.Long, "/v1/analyze")
	for _, name := range []string{"host", "port", "cors-origin", "rate-limit-enabled", "cache-backend", "redis-addr"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), name)
	}
}

func TestConfigToServeConfig(t *testing.T) {
	resetFlags(serveCmd)
	t.Cleanup(func() { resetFlags(serveCmd) })
	base := config.DefaultConfig()

	cfg := configToServeConfig(&base, serveCmd)
	assert.Equal(t, base.Server, cfg.Server)
	assert.Equal(t, base.Cache, cfg.Cache)

	flags := map[string]string{
		"host":                "0.0.0.0",
		"port":                "9000",
		"max-upload-size":     "5",
		"rate-limit-enabled":  "true",
		"requests-per-minute": "7",
		"max-data-per-day":    "2",
		"cache-backend":       "none",
		"cache-ttl":           "60",
		"invert":              "true",
	}
	for k, v := range flags {
		require.NoError(t, serveCmd.Flags().Set(k, v), k)
	}
	cfg = configToServeConfig(&base, serveCmd)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.MaxUploadMB)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 7, cfg.Server.RateLimit.RequestsPerMinute)
	assert.Equal(t, cache.BackendNone, cfg.Cache.Backend)
	assert.Equal(t, 60, cfg.Cache.TTLSec)
	assert.True(t, cfg.Analysis.Invert)
	require.NoError(t, cfg.Validate())

	// The base configuration is not modified.
	assert.Equal(t, "localhost", base.Server.Host)

	srv, err := serverConfig(cfg, cache.Noop{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), srv.MaxUploadMB)
	assert.Equal(t, int64(2*1024*1024), srv.RateLimit.MaxDataPerDay)
	assert.True(t, srv.PipelineConfig.Binarize.Invert)
	assert.Equal(t, cache.Noop{}, srv.Cache)
}

func TestServerConfig_InvalidOverlayColor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.OverlayRectColor = "not-a-color"
	_, err := serverConfig(&cfg, nil)
	require.Error(t, err)
}

func TestServeCommand_InvalidPort(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}
