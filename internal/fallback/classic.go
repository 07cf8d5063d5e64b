// Package fallback produces an enlarged image via classical
// interpolation when neural inference is unavailable. It is the
// guaranteed terminal path: bicubic resampling cannot fail on a valid
// image.
package fallback

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Fixed post-processing constants. The sequence and values are part of
// the output contract: contrast first, then the sharpening convolution,
// brightness last.
const (
	contrastBoost  = 10.0 // percent
	brightnessLift = 5.0  // percent
)

// sharpenKernel is a 3x3 sharpening convolution with center weight 9
// and ring weight -1 (weights sum to 1, preserving overall luminance).
var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// Upscale enlarges img by the integer scale factor using CatmullRom
// (bicubic) resampling, then applies the fixed contrast/sharpen/
// brightness sequence for perceptual sharpness.
func Upscale(img image.Image, scale int) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if scale < 1 {
		return nil, fmt.Errorf("invalid scale factor %d", scale)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	resized := imaging.Resize(img, width*scale, height*scale, imaging.CatmullRom)
	boosted := imaging.AdjustContrast(resized, contrastBoost)
	sharpened := imaging.Convolve3x3(boosted, sharpenKernel, nil)
	return imaging.AdjustBrightness(sharpened, brightnessLift), nil
}
