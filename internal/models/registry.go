package models

import (
	"fmt"
	"sort"
	"sync"
)

// Model name constants to avoid typos and ensure consistency.
const (
	RealESRGANx4       = "realesrgan-x4plus"
	RealESRGANx4Anime  = "realesrgan-x4plus-anime"
	RealESRGeneralx4v3 = "realesr-general-x4v3"
	RealESRGANx2       = "realesrgan-x2plus"
	ESRGANLegacyx4     = "esrgan-x4-legacy"
)

// Range describes the numeric interval a model expects its pixel
// intensities mapped into before inference. Real-ESRGAN family models
// use [0,1]; older ESRGAN exports use [-1,1].
type Range struct {
	Lo float32 `yaml:"lo"`
	Hi float32 `yaml:"hi"`
}

// Unit is the [0,1] normalization range used by the Real-ESRGAN family.
var Unit = Range{Lo: 0, Hi: 1}

// Symmetric is the [-1,1] normalization range used by legacy ESRGAN exports.
var Symmetric = Range{Lo: -1, Hi: 1}

// Descriptor holds the static metadata for one model family: artifact
// name, fixed tensor geometry, scale factor and normalization range.
// All dispatch on model identity goes through this struct rather than
// per-property switches.
type Descriptor struct {
	Name          string `yaml:"name"`
	Filename      string `yaml:"filename"`
	Description   string `yaml:"description"`
	Scale         int    `yaml:"scale"`      // integer enlargement factor (2, 3 or 4)
	InputSize     int    `yaml:"input_size"` // fixed square input edge in pixels
	Channels      int    `yaml:"channels"`
	Normalization Range  `yaml:"normalization"`
}

// OutputSize returns the fixed square output edge dictated by the model.
func (d Descriptor) OutputSize() int { return d.InputSize * d.Scale }

// Validate checks a descriptor for internally consistent geometry.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has empty name")
	}
	if d.Filename == "" {
		return fmt.Errorf("descriptor %q has empty filename", d.Name)
	}
	if d.Scale < 2 || d.Scale > 4 {
		return fmt.Errorf("descriptor %q has unsupported scale %d (must be 2, 3 or 4)", d.Name, d.Scale)
	}
	if d.InputSize <= 0 {
		return fmt.Errorf("descriptor %q has invalid input size %d", d.Name, d.InputSize)
	}
	if d.Channels != 3 {
		return fmt.Errorf("descriptor %q has unsupported channel count %d", d.Name, d.Channels)
	}
	if d.Normalization.Hi <= d.Normalization.Lo {
		return fmt.Errorf("descriptor %q has empty normalization range [%g,%g]",
			d.Name, d.Normalization.Lo, d.Normalization.Hi)
	}
	return nil
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Descriptor{
		RealESRGANx4: {
			Name:          RealESRGANx4,
			Filename:      "RealESRGAN_x4plus.onnx",
			Description:   "Real-ESRGAN x4 general purpose upscaler",
			Scale:         4,
			InputSize:     128,
			Channels:      3,
			Normalization: Unit,
		},
		RealESRGANx4Anime: {
			Name:          RealESRGANx4Anime,
			Filename:      "RealESRGAN_x4plus_anime_6B.onnx",
			Description:   "Real-ESRGAN x4 tuned for line art and animation",
			Scale:         4,
			InputSize:     128,
			Channels:      3,
			Normalization: Unit,
		},
		RealESRGeneralx4v3: {
			Name:          RealESRGeneralx4v3,
			Filename:      "realesr-general-x4v3.onnx",
			Description:   "Real-ESRGAN general x4 v3 (small, fast)",
			Scale:         4,
			InputSize:     128,
			Channels:      3,
			Normalization: Unit,
		},
		RealESRGANx2: {
			Name:          RealESRGANx2,
			Filename:      "RealESRGAN_x2plus.onnx",
			Description:   "Real-ESRGAN x2 general purpose upscaler",
			Scale:         2,
			InputSize:     192,
			Channels:      3,
			Normalization: Unit,
		},
		ESRGANLegacyx4: {
			Name:          ESRGANLegacyx4,
			Filename:      "ESRGAN_x4_legacy.onnx",
			Description:   "Legacy ESRGAN x4 export with symmetric input range",
			Scale:         4,
			InputSize:     128,
			Channels:      3,
			Normalization: Symmetric,
		},
	}
)

// DefaultModel is the model used when the caller does not pick one.
const DefaultModel = RealESRGANx4

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// Register adds or replaces a descriptor. The descriptor must validate.
func Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Name] = d
	return nil
}

// List returns all registered descriptors sorted by name.
func List() []Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
