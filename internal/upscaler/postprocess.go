package upscaler

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/upscale/internal/mempool"
	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/disintegration/imaging"
)

// clamp01 clamps v into [0,1]. NaN fails both comparisons and lands on
// zero, so malformed model output degrades to black rather than a fault.
func clamp01(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v >= 0 {
		return v
	}
	return 0
}

// DecodeTile converts the model's fixed-shape output back into an image
// sized for this specific tile.
//
// data holds NCHW float32 values in the descriptor's normalization range
// for the descriptor's square output shape. Values are inverted to 8-bit
// RGB with clamping, then the result is resized with CatmullRom to
// tileW*scale × tileH*scale, the output size implied by the tile's true
// input size.
func DecodeTile(data []float32, d models.Descriptor, tileW, tileH int) (*image.NRGBA, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if tileW <= 0 || tileH <= 0 {
		return nil, fmt.Errorf("invalid tile dimensions %dx%d", tileW, tileH)
	}

	out := d.OutputSize()
	plane := out * out
	if len(data) != 3*plane {
		return nil, fmt.Errorf("unexpected output length: got %d, want %d", len(data), 3*plane)
	}

	lo := d.Normalization.Lo
	span := d.Normalization.Hi - d.Normalization.Lo

	targetW := tileW * d.Scale
	targetH := tileH * d.Scale

	// When a resize follows, the square canvas is scratch: back it with
	// a pooled buffer. Every byte is written below, so stale contents
	// cannot leak through.
	needResize := targetW != out || targetH != out
	var img *image.NRGBA
	if needResize {
		img = &image.NRGBA{
			Pix:    mempool.GetUint8(4 * plane),
			Stride: 4 * out,
			Rect:   image.Rect(0, 0, out, out),
		}
		defer mempool.PutUint8(img.Pix)
	} else {
		img = image.NewNRGBA(image.Rect(0, 0, out, out))
	}
	for y := 0; y < out; y++ {
		for x := 0; x < out; x++ {
			idx := y*out + x
			r := clamp01((data[idx] - lo) / span)
			g := clamp01((data[plane+idx] - lo) / span)
			b := clamp01((data[2*plane+idx] - lo) / span)
			off := img.PixOffset(x, y)
			img.Pix[off] = uint8(r*255 + 0.5)
			img.Pix[off+1] = uint8(g*255 + 0.5)
			img.Pix[off+2] = uint8(b*255 + 0.5)
			img.Pix[off+3] = 0xff
		}
	}

	if !needResize {
		return img, nil
	}
	return imaging.Resize(img, targetW, targetH, imaging.CatmullRom), nil
}
