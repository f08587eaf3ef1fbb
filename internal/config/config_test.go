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
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "http://localhost:8000", cfg.API.PrimaryHost)
	assert.Equal(t, "https://api.wellnest.app", cfg.API.SecondaryHost)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 720*time.Hour, cfg.Session.DefaultTTL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 8000, cfg.DevServer.Port)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "custom.yaml")
	body := []byte(`
environment: staging
api:
  primaryhost: http://10.0.2.2:8000
  timeout: 3s
storage:
  driver: memory
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("WELLNEST_API_SECONDARYHOST", "https://prod.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "http://10.0.2.2:8000", cfg.API.PrimaryHost)
	assert.Equal(t, "https://prod.example.com", cfg.API.SecondaryHost)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WELLNEST_API_TIMEOUT", "0s")

	_, err := Load("")
	assert.ErrorContains(t, err, "api.timeout")
}
