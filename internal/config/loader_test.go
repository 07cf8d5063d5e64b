package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upscale.yaml")
	content := `
models_dir: /opt/models
log_level: debug
pipeline:
  model: realesrgan-x2plus
  tile_size: 192
  overlap: 8
output:
  format: jpg
  jpeg_quality: 85
server:
  port: 9090
gpu:
  enabled: true
  memory_limit: 1GB
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/models", cfg.ModelsDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "realesrgan-x2plus", cfg.Pipeline.Model)
	assert.Equal(t, 192, cfg.Pipeline.TileSize)
	assert.Equal(t, 8, cfg.Pipeline.Overlap)
	assert.Equal(t, "jpg", cfg.Output.Format)
	assert.Equal(t, 85, cfg.Output.JPEGQuality)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.GPU.Enabled)
	assert.Equal(t, "1GB", cfg.GPU.MemoryLimit)
}

func TestLoader_LoadWithFile_DefaultsFillGaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upscale.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	cfg, err := NewIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, defaults.Pipeline.Model, cfg.Pipeline.Model)
	assert.Equal(t, defaults.Pipeline.TileSize, cfg.Pipeline.TileSize)
	assert.Equal(t, defaults.Server.Port, cfg.Server.Port)
}

func TestLoader_LoadWithFile_Missing(t *testing.T) {
	_, err := NewIsolatedLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoader_LoadWithFile_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upscale.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: trace\n"), 0o644))

	_, err := NewIsolatedLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoader_EnvironmentOverride(t *testing.T) {
	t.Setenv("UPSCALE_LOG_LEVEL", "error")

	cfg, err := NewIsolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().LogLevel, cfg.LogLevel)
}
