package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "plexsource", cfg.AppName)
	assert.Equal(t, BackendModeAPI, cfg.Backend.Mode)
	assert.Equal(t, time.Second, cfg.Plex.PollInterval)
	assert.Equal(t, 300, cfg.Plex.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Plex.Timeout)
	assert.Equal(t, 550, cfg.Plex.WindowWidth)
	assert.Equal(t, 700, cfg.Plex.WindowHeight)
	assert.False(t, cfg.IsLocal())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plexsource.yaml")
	content := []byte(`
backend:
  mode: local
database:
  driver: sqlite
  dsn: "file::memory:"
plex:
  poll_interval: 250ms
  max_attempts: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("PLEXSOURCE_PLEX_PRODUCT", "acme")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Plex.PollInterval)
	assert.Equal(t, 10, cfg.Plex.MaxAttempts)
	assert.Equal(t, "acme", cfg.Plex.Product)
}

func TestValidateRejectsLocalWithoutDSN(t *testing.T) {
	t.Setenv("PLEXSOURCE_BACKEND_MODE", "local")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	t.Setenv("PLEXSOURCE_BACKEND_MODE", "carrier-pigeon")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsUnboundedPolling(t *testing.T) {
	t.Setenv("PLEXSOURCE_PLEX_MAX_ATTEMPTS", "0")
	t.Setenv("PLEXSOURCE_PLEX_TIMEOUT", "0s")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateAcceptsSingleBound(t *testing.T) {
	t.Setenv("PLEXSOURCE_PLEX_MAX_ATTEMPTS", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Plex.Timeout)
}
