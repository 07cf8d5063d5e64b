package upscaler

import (
	"errors"

	"image"

	"github.com/MeKo-Tech/upscale/internal/mempool"
	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/MeKo-Tech/upscale/internal/onnx"
	"github.com/disintegration/imaging"
)

// EncodeTile converts a cropped tile into the model's fixed input tensor.
//
// The tile is resized to the descriptor's square input shape with
// CatmullRom (bicubic) resampling, then each pixel is mapped from 8-bit
// RGB into the descriptor's normalization range and laid out as NCHW
// float32. The returned tensor's buffer comes from the shared pool; the
// caller must release it via mempool.PutFloat32 once inference is done.
func EncodeTile(img image.Image, d models.Descriptor) (onnx.Tensor, error) {
	if img == nil {
		return onnx.Tensor{}, errors.New("input tile is nil")
	}
	if err := d.Validate(); err != nil {
		return onnx.Tensor{}, err
	}

	size := d.InputSize
	resized := imaging.Resize(img, size, size, imaging.CatmullRom)

	lo := d.Normalization.Lo
	span := d.Normalization.Hi - d.Normalization.Lo

	plane := size * size
	data := mempool.GetFloat32(3 * plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := resized.NRGBAAt(x, y)
			idx := y*size + x
			data[idx] = lo + float32(c.R)/255.0*span
			data[plane+idx] = lo + float32(c.G)/255.0*span
			data[2*plane+idx] = lo + float32(c.B)/255.0*span
		}
	}

	return onnx.NewImageTensor(data, 3, size, size)
}
