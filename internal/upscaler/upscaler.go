package upscaler

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/upscale/internal/mempool"
	"github.com/MeKo-Tech/upscale/internal/onnx"
	"github.com/disintegration/imaging"
	"github.com/yalue/onnxruntime_go"
)

// ErrInference marks failures of the inference call itself, as opposed
// to tile pre/post-processing. Callers treat these as an unusable
// engine rather than a single bad tile.
var ErrInference = errors.New("inference failed")

// Upscaler performs super-resolution inference using ONNX Runtime. It
// wraps one loaded model with fixed input/output shapes; callers feed it
// tiles and receive the enlarged tile back.
type Upscaler struct {
	config     Config
	session    *onnxruntime_go.DynamicAdvancedSession
	inputInfo  onnxruntime_go.InputOutputInfo
	outputInfo onnxruntime_go.InputOutputInfo
	mu         sync.RWMutex
}

// NewUpscaler creates a new upscaler with the given configuration.
func NewUpscaler(config Config) (*Upscaler, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	if err := validateModelFile(config.ModelPath); err != nil {
		return nil, err
	}

	slog.Debug("Initializing upscaler",
		"model", config.Model.Name,
		"model_path", config.ModelPath,
		"scale", config.Model.Scale,
		"input_size", config.Model.InputSize,
		"gpu_enabled", config.GPU.UseGPU)

	if err := setupEnvironment(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := validateModelInfo(config.ModelPath)
	if err != nil {
		return nil, err
	}

	session, err := createSession(config.ModelPath, inputInfo, outputInfo, config)
	if err != nil {
		return nil, err
	}

	u := &Upscaler{
		config:     config,
		session:    session,
		inputInfo:  inputInfo,
		outputInfo: outputInfo,
	}

	slog.Debug("Upscaler initialized successfully")
	return u, nil
}

// Close releases resources used by the upscaler. Safe to call on error
// paths and more than once.
func (u *Upscaler) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.session != nil {
		if err := u.session.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to destroy upscaler session: %v\n", err)
		}
		u.session = nil
	}

	// The shared ONNX environment stays alive; it is torn down only at
	// application shutdown.
	return nil
}

// Scale returns the integer enlargement factor of the loaded model.
func (u *Upscaler) Scale() int { return u.config.Model.Scale }

// GetConfig returns a copy of the upscaler's configuration.
func (u *Upscaler) GetConfig() Config {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.config
}

// EnhanceTile runs one tile through the network and returns the enlarged
// tile sized tileW*scale × tileH*scale.
func (u *Upscaler) EnhanceTile(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("input tile is nil")
	}

	bounds := img.Bounds()
	tileW := bounds.Dx()
	tileH := bounds.Dy()
	if tileW <= 0 || tileH <= 0 {
		return nil, fmt.Errorf("invalid tile dimensions %dx%d", tileW, tileH)
	}

	start := time.Now()

	tensor, err := EncodeTile(img, u.config.Model)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	defer mempool.PutFloat32(tensor.Data)

	outputData, err := u.runInference(tensor)
	if err != nil {
		return nil, err
	}

	result, err := DecodeTile(outputData, u.config.Model, tileW, tileH)
	if err != nil {
		return nil, fmt.Errorf("postprocessing failed: %w", err)
	}

	slog.Debug("Tile enhanced",
		"tile_width", tileW, "tile_height", tileH,
		"duration", time.Since(start).Round(time.Microsecond))
	return result, nil
}

// runInference feeds the prepared tensor through the session and returns
// the raw output values.
func (u *Upscaler) runInference(tensor onnx.Tensor) ([]float32, error) {
	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return nil, fmt.Errorf("invalid tensor: %w", err)
	}

	u.mu.RLock()
	session := u.session
	u.mu.RUnlock()

	if session == nil {
		return nil, fmt.Errorf("%w: upscaler session is nil", ErrInference)
	}

	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", ErrInference, err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying input tensor: %v\n", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil}
	if err := session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	outputTensor := outputs[0]
	defer func() {
		if err := outputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying output tensor: %v\n", err)
		}
	}()

	floatTensor, ok := outputTensor.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: expected float32 tensor, got %T", ErrInference, outputTensor)
	}

	shape := outputTensor.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("%w: expected 4D output tensor, got %dD", ErrInference, len(shape))
	}
	out := int64(u.config.Model.OutputSize())
	if shape[2] != out || shape[3] != out {
		return nil, fmt.Errorf("%w: unexpected output shape %v, want [1 3 %d %d]", ErrInference, shape, out, out)
	}

	// Copy out of the ONNX-owned buffer before it is destroyed.
	src := floatTensor.GetData()
	data := make([]float32, len(src))
	copy(data, src)
	return data, nil
}

// Warmup runs a single inference on a neutral gray tile to absorb
// first-call latency before real work starts.
func (u *Upscaler) Warmup() error {
	size := u.config.Model.InputSize
	tile := imaging.New(size, size, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	_, err := u.EnhanceTile(tile)
	return err
}

// ModelInfo returns information about the loaded model.
func (u *Upscaler) ModelInfo() map[string]interface{} {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return map[string]interface{}{
		"model":         u.config.Model.Name,
		"model_path":    u.config.ModelPath,
		"scale":         u.config.Model.Scale,
		"input_name":    u.inputInfo.Name,
		"output_name":   u.outputInfo.Name,
		"input_shape":   u.inputInfo.Dimensions,
		"output_shape":  u.outputInfo.Dimensions,
		"normalization": u.config.Model.Normalization,
		"num_threads":   u.config.NumThreads,
		"gpu_enabled":   u.config.GPU.UseGPU,
	}
}
