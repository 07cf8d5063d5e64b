package upscaler

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/MeKo-Tech/upscale/internal/onnx"
)

// Config holds configuration for the neural upscaler.
type Config struct {
	ModelPath  string            // Path to the ONNX super-resolution model
	Model      models.Descriptor // Model family metadata (shape, scale, normalization)
	NumThreads int               // Number of CPU threads (0 for auto)
	GPU        onnx.GPUConfig    // GPU acceleration configuration
}

// DefaultConfig returns a default upscaler configuration using the
// default model family.
func DefaultConfig() Config {
	d, _ := models.Lookup(models.DefaultModel)
	return Config{
		ModelPath:  models.ResolveModelPath("", d),
		Model:      d,
		NumThreads: 0,
		GPU:        onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath updates ModelPath based on modelsDir and the selected model.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.ResolveModelPath(modelsDir, c.Model)
}

// validateConfig validates the upscaler configuration.
func validateConfig(config Config) error {
	if config.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if err := config.Model.Validate(); err != nil {
		return fmt.Errorf("invalid model descriptor: %w", err)
	}
	return onnx.ValidateGPUConfig(config.GPU)
}

// validateModelFile checks if the model file exists.
func validateModelFile(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
