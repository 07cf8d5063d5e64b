// Package pipeline orchestrates the full enhancement flow: decode,
// feasibility check, tiled neural inference, composition, and the
// classical fallback path when inference is unavailable.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/MeKo-Tech/upscale/internal/onnx"
	"github.com/MeKo-Tech/upscale/internal/tiler"
	"github.com/MeKo-Tech/upscale/internal/upscaler"
)

// Config holds the complete pipeline configuration.
type Config struct {
	ModelsDir       string       // directory holding ONNX model artifacts
	Model           string       // model family name from the registry
	Tiling          tiler.Config // tile geometry
	NumThreads      int          // CPU threads for inference (0 for auto)
	GPU             onnx.GPUConfig
	JPEGQuality     int   // quality for JPEG output (1-100)
	DisableFallback bool  // fail instead of degrading to classical resize
	MaxOutputPixels int64 // feasibility ceiling (0 for default)
	Warmup          bool  // run a warmup inference after session creation
	Progress        ProgressFunc
}

// DefaultJPEGQuality is used when no output quality is configured.
const DefaultJPEGQuality = 95

// DefaultConfig returns a pipeline configuration with the default model
// family and tile geometry.
func DefaultConfig() Config {
	return Config{
		Model:           models.DefaultModel,
		Tiling:          tiler.DefaultConfig(),
		GPU:             onnx.DefaultGPUConfig(),
		JPEGQuality:     DefaultJPEGQuality,
		MaxOutputPixels: DefaultMaxOutputPixels,
	}
}

// Builder provides a fluent interface for configuring a pipeline.
type Builder struct {
	config Config
}

// NewBuilder creates a pipeline builder with default configuration.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithModelsDir sets the directory searched for model artifacts.
func (b *Builder) WithModelsDir(dir string) *Builder {
	b.config.ModelsDir = dir
	return b
}

// WithModel selects the model family by registry name.
func (b *Builder) WithModel(name string) *Builder {
	b.config.Model = name
	return b
}

// WithTileSize sets the nominal square tile edge.
func (b *Builder) WithTileSize(size int) *Builder {
	b.config.Tiling.TileSize = size
	return b
}

// WithOverlap sets the tile overlap border.
func (b *Builder) WithOverlap(overlap int) *Builder {
	b.config.Tiling.Overlap = overlap
	return b
}

// WithGPU enables or disables GPU acceleration.
func (b *Builder) WithGPU(useGPU bool) *Builder {
	b.config.GPU.UseGPU = useGPU
	return b
}

// WithGPUDevice selects the GPU device ID.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.config.GPU.DeviceID = deviceID
	return b
}

// WithThreads sets the number of CPU threads for inference.
func (b *Builder) WithThreads(n int) *Builder {
	b.config.NumThreads = n
	return b
}

// WithJPEGQuality sets the output JPEG quality.
func (b *Builder) WithJPEGQuality(q int) *Builder {
	b.config.JPEGQuality = q
	return b
}

// WithMaxOutputPixels sets the feasibility ceiling.
func (b *Builder) WithMaxOutputPixels(n int64) *Builder {
	b.config.MaxOutputPixels = n
	return b
}

// WithFallbackDisabled makes the pipeline fail instead of degrading to
// the classical resize path.
func (b *Builder) WithFallbackDisabled(disabled bool) *Builder {
	b.config.DisableFallback = disabled
	return b
}

// WithWarmup enables a warmup inference after session creation.
func (b *Builder) WithWarmup(warmup bool) *Builder {
	b.config.Warmup = warmup
	return b
}

// WithProgress sets the progress callback.
func (b *Builder) WithProgress(f ProgressFunc) *Builder {
	b.config.Progress = f
	return b
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// Build validates the configuration and constructs the pipeline. The
// inference session itself is created lazily on first use, so Build
// succeeds even when the model artifact is absent; the availability
// state decides at processing time whether to fall back.
func (b *Builder) Build() (*Pipeline, error) {
	cfg := b.config

	if n, err := models.LoadManifestFromDir(cfg.ModelsDir); err != nil {
		return nil, fmt.Errorf("loading model manifest: %w", err)
	} else if n > 0 {
		slog.Debug("Loaded model manifest overlay", "entries", n)
	}

	desc, ok := models.Lookup(cfg.Model)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", cfg.Model)
	}

	if err := cfg.Tiling.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tile geometry: %w", err)
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.MaxOutputPixels <= 0 {
		cfg.MaxOutputPixels = DefaultMaxOutputPixels
	}

	p := &Pipeline{
		config: cfg,
		desc:   desc,
	}

	slog.Debug("Pipeline configured",
		"model", desc.Name,
		"scale", desc.Scale,
		"tile_size", cfg.Tiling.TileSize,
		"overlap", cfg.Tiling.Overlap,
		"gpu", cfg.GPU.UseGPU)
	return p, nil
}

// Pipeline runs tiled super-resolution with automatic fallback.
type Pipeline struct {
	config Config
	desc   models.Descriptor

	mu    sync.Mutex
	up    *upscaler.Upscaler
	avail Availability
}

// Config returns a copy of the pipeline's configuration.
func (p *Pipeline) Config() Config { return p.config }

// Descriptor returns the selected model family's metadata.
func (p *Pipeline) Descriptor() models.Descriptor { return p.desc }

// Scale returns the integer enlargement factor.
func (p *Pipeline) Scale() int { return p.desc.Scale }

// Unavailable reports whether inference has been marked unusable for
// this pipeline, along with the recorded reason.
func (p *Pipeline) Unavailable() (bool, error) {
	return p.avail.Unavailable()
}

// ResetAvailability clears a cached unavailable state so the next
// request retries engine construction.
func (p *Pipeline) ResetAvailability() {
	p.avail.Reset()
}

// markUnavailable records the failure and releases the failed session,
// so later requests cannot be handed the known-bad engine.
func (p *Pipeline) markUnavailable(reason error) {
	slog.Warn("Inference backend unavailable, using fallback for remaining requests", "reason", reason)
	p.avail.MarkUnavailable(reason)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.up != nil {
		if err := p.up.Close(); err != nil {
			slog.Warn("Failed to close inference session", "error", err)
		}
		p.up = nil
	}
}

// Close releases the inference session, if one was created.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.up != nil {
		if err := p.up.Close(); err != nil {
			return err
		}
		p.up = nil
	}
	return nil
}
