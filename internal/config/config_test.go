package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, slog.LevelInfo, cfg.Server.LogLevel)
	assert.Equal(t, []string{".asp", ".aspx"}, cfg.Server.ForbiddenExtensions)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Storage.OpenRetries)
	assert.Equal(t, int64(2*1024*1024*1024), cfg.Cache.MaxFileSize)
	assert.True(t, cfg.Cache.Revalidate)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "assets")
	t.Setenv("MAX_FILE_SIZE", "10MB")
	t.Setenv("CACHE_CLEANUP_INTERVAL", "30s")
	t.Setenv("CACHE_SINGLE_FLIGHT", "false")
	t.Setenv("FORBIDDEN_EXTENSIONS", ".php, .cgi,")
	t.Setenv("RATE_LIMIT_RPS", "12.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.Server.LogLevel)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "assets", cfg.Storage.Bucket)
	assert.Equal(t, int64(10_000_000), cfg.Cache.MaxFileSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.CleanupInterval)
	assert.False(t, cfg.Cache.SingleFlight)
	assert.Equal(t, []string{".php", ".cgi"}, cfg.Server.ForbiddenExtensions)
	assert.Equal(t, 12.5, cfg.Server.RateLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "ftp")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("size", func(t *testing.T) {
		t.Setenv("MAX_FILE_SIZE", "huge")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestInvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("OPEN_RETRIES", "many")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Storage.OpenRetries)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
}
