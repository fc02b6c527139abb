package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/pipefitter/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.ClusterType)
	assert.True(t, cfg.Cache)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipefitter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_path: s3://bucket/artifacts
components_dir: ./components
cluster_type: gpu
cache: false
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/artifacts", cfg.BasePath)
	assert.Equal(t, "./components", cfg.ComponentsDir)
	assert.Equal(t, "gpu", cfg.ClusterType)
	assert.False(t, cfg.Cache)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PIPEFITTER_BASE_PATH", "gs://other/artifacts")
	t.Setenv("PIPEFITTER_LOG_FORMAT", "json")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "gs://other/artifacts", cfg.BasePath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	// base_path and components_dir are required
	assert.Error(t, cfg.Validate())

	cfg.BasePath = "s3://bucket"
	cfg.ComponentsDir = "./components"
	assert.NoError(t, cfg.Validate())

	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
}
