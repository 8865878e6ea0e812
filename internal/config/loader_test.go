package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	return NewLoaderWithViper(viper.New())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shapectx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.GetViper())
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := newTestLoader(t).Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, -1, cfg.Analysis.Threshold)
	assert.Equal(t, "xml", cfg.Output.Format)
}

func TestLoad_FileInWorkingDirectory(t *testing.T) {
	loader := newTestLoader(t)
	require.NoError(t, os.WriteFile("shapectx.yaml", []byte("log_level: debug\n"), 0o600))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "shapectx.yaml", filepath.Base(loader.GetConfigFileUsed()))
}

func TestLoadWithFile(t *testing.T) {
	path := writeConfig(t, `
log_level: warn
analysis:
  invert: true
  min_points: 5
output:
  format: json
  precision: 8
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 5
cache:
  backend: redis
  redis:
    addr: cache:6379
    db: 2
`)

	cfg, err := newTestLoader(t).LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Analysis.Invert)
	assert.Equal(t, 5, cfg.Analysis.MinPoints)
	assert.Equal(t, -1, cfg.Analysis.Threshold, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 8, cfg.Output.Precision)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.Server.RateLimit.RequestsPerMinute)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
}

func TestLoadWithFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := newTestLoader(t).LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "server: [port\n")
		_, err := newTestLoader(t).LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("validation failure", func(t *testing.T) {
		path := writeConfig(t, "log_level: loud\n")
		_, err := newTestLoader(t).LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")

		cfg, err := newTestLoader(t).LoadWithFileWithoutValidation(path)
		require.NoError(t, err)
		assert.Equal(t, "loud", cfg.LogLevel)
	})
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	loader := newTestLoader(t)
	t.Setenv("SHAPECTX_SERVER_PORT", "9191")
	t.Setenv("SHAPECTX_OUTPUT_FORMAT", "yaml")
	t.Setenv("SHAPECTX_CACHE_BACKEND", "none")

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
}

func TestLoaderAccessors(t *testing.T) {
	loader := newTestLoader(t)
	_, err := loader.Load()
	require.NoError(t, err)

	loader.Set("output.file", "report.csv")
	assert.Equal(t, "report.csv", loader.GetString("output.file"))
	assert.Equal(t, "report.csv", loader.Get("output.file"))
	assert.Contains(t, loader.GetResolvedConfig(), "server")

	var buf bytes.Buffer
	loader.PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: SHAPECTX")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := newTestLoader(t).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
	assert.Equal(t, DefaultConfig().Cache, cfg.Cache)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	paths := GetConfigSearchPaths()

	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/tmp/xdg", "shapectx"))
	assert.Equal(t, filepath.Join("/etc", "shapectx"), paths[len(paths)-1])
}
