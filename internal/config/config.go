// Package config defines the application configuration and its loading
// from files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/MeKo-Tech/upscale/internal/pipeline"
	"github.com/MeKo-Tech/upscale/internal/tiler"
)

// Config represents the complete configuration for the upscale
// application. It covers all commands (image, serve, models) and loads
// from configuration files, environment variables, and flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level"  yaml:"log_level"  json:"log_level"`
	Verbose   bool   `mapstructure:"verbose"    yaml:"verbose"    json:"verbose"`

	// Enhancement pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// PipelineConfig contains enhancement pipeline settings.
type PipelineConfig struct {
	Model           string `mapstructure:"model"             yaml:"model"             json:"model"`
	TileSize        int    `mapstructure:"tile_size"         yaml:"tile_size"         json:"tile_size"`
	Overlap         int    `mapstructure:"overlap"           yaml:"overlap"           json:"overlap"`
	NumThreads      int    `mapstructure:"num_threads"       yaml:"num_threads"       json:"num_threads"`
	MaxOutputPixels int64  `mapstructure:"max_output_pixels" yaml:"max_output_pixels" json:"max_output_pixels"`
	DisableFallback bool   `mapstructure:"disable_fallback"  yaml:"disable_fallback"  json:"disable_fallback"`
	Warmup          bool   `mapstructure:"warmup"            yaml:"warmup"            json:"warmup"`
}

// OutputConfig contains output encoding settings.
type OutputConfig struct {
	Format      string `mapstructure:"format"       yaml:"format"       json:"format"`
	Dir         string `mapstructure:"dir"          yaml:"dir"          json:"dir"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host"             yaml:"host"             json:"host"`
	Port            int    `mapstructure:"port"             yaml:"port"             json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin"      yaml:"cors_origin"      json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb"    yaml:"max_upload_mb"    json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec"      yaml:"timeout_sec"      json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled"      yaml:"enabled"      json:"enabled"`
	Device      int    `mapstructure:"device"       yaml:"device"       json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	tiling := tiler.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Pipeline: PipelineConfig{
			Model:           models.DefaultModel,
			TileSize:        tiling.TileSize,
			Overlap:         tiling.Overlap,
			NumThreads:      0,
			MaxOutputPixels: pipeline.DefaultMaxOutputPixels,
			DisableFallback: false,
			Warmup:          false,
		},
		Output: OutputConfig{
			Format:      "png",
			JPEGQuality: pipeline.DefaultJPEGQuality,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"png", "jpg", "jpeg", "bmp", "tiff"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Output.JPEGQuality)
	}

	tiling := tiler.Config{TileSize: c.Pipeline.TileSize, Overlap: c.Pipeline.Overlap}
	if err := tiling.Validate(); err != nil {
		return err
	}
	if c.Pipeline.MaxOutputPixels < 0 {
		return fmt.Errorf("invalid max output pixels: %d (must be non-negative)", c.Pipeline.MaxOutputPixels)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must be non-negative)", c.GPU.Device)
	}
	if c.GPU.MemoryLimit != "" && c.GPU.MemoryLimit != "auto" {
		if _, err := ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
			return fmt.Errorf("invalid GPU memory limit: %w", err)
		}
	}

	return nil
}

// ToPipelineConfig converts the config to the internal pipeline
// configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = c.ModelsDir
	cfg.Model = c.Pipeline.Model
	cfg.Tiling = tiler.Config{TileSize: c.Pipeline.TileSize, Overlap: c.Pipeline.Overlap}
	cfg.NumThreads = c.Pipeline.NumThreads
	cfg.MaxOutputPixels = c.Pipeline.MaxOutputPixels
	cfg.DisableFallback = c.Pipeline.DisableFallback
	cfg.Warmup = c.Pipeline.Warmup
	cfg.JPEGQuality = c.Output.JPEGQuality

	cfg.GPU.UseGPU = c.GPU.Enabled
	cfg.GPU.DeviceID = c.GPU.Device
	if limit, err := ParseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPU.GPUMemLimit = limit
	}
	return cfg
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// ParseMemoryLimit parses a human-readable memory limit like "1GB" or
// "512MB" into bytes. "auto" and "" mean no limit and return 0.
func ParseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(limit))
	units := []struct {
		suffix     string
		multiplier uint64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			numStr := strings.TrimSuffix(upper, u.suffix)
			n, err := strconv.ParseFloat(numStr, 64)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
			}
			return uint64(n * float64(u.multiplier)), nil
		}
	}

	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
