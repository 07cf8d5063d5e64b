// Package testutil provides synthetic images and comparison helpers
// shared by package tests.
package testutil

import (
	"image"
	"image/color"
	"math"
)

// GradientImage builds a two-axis color ramp. Every pixel is distinct
// for reasonable sizes, which makes placement and orientation mistakes
// visible in comparisons.
func GradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 96,
				A: 255,
			})
		}
	}
	return img
}

// Checkerboard builds a black and white checkerboard with the given
// cell edge. High-contrast edges exercise resampling paths harder than
// flat fills.
func Checkerboard(w, h, cell int) *image.NRGBA {
	if cell < 1 {
		cell = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if ((x/cell)+(y/cell))%2 == 0 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// MeanAbsDiff returns the mean absolute per-channel difference between
// two images in 8-bit units. Images with different bounds compare as
// maximally different.
func MeanAbsDiff(a, b image.Image) float64 {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return 255
	}

	var total float64
	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			r1, g1, b1, _ := a.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			total += math.Abs(float64(r1)-float64(r2)) +
				math.Abs(float64(g1)-float64(g2)) +
				math.Abs(float64(b1)-float64(b2))
		}
	}

	pixels := float64(ba.Dx() * ba.Dy())
	return total / (pixels * 3 * 257)
}
