package tiler

import (
	"fmt"
	"image"
)

// Compositor assembles processed tiles into the full-resolution output
// canvas. Each tile contributes only its footprint, scaled; the overlap
// border is discarded so no output pixel is written twice.
type Compositor struct {
	dst   *image.NRGBA
	scale int
}

// NewCompositor allocates the output canvas for a width×height source
// image enlarged by scale.
func NewCompositor(width, height, scale int) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid source dimensions %dx%d", width, height)
	}
	if scale < 1 {
		return nil, fmt.Errorf("invalid scale factor %d", scale)
	}
	return &Compositor{
		dst:   image.NewNRGBA(image.Rect(0, 0, width*scale, height*scale)),
		scale: scale,
	}, nil
}

// Place writes the upscaled tile into the canvas. tileImg must be the
// tile's Region enlarged by the compositor's scale, so tile-local pixel
// (x, y) corresponds to source pixel (Region.Min.X + x/s, Region.Min.Y + y/s).
// The left/top overlap is skipped via the footprint offset; destination
// coordinates falling outside the canvas are silently dropped.
func (c *Compositor) Place(t Tile, tileImg *image.NRGBA) {
	if tileImg == nil {
		return
	}
	s := c.scale
	srcB := tileImg.Bounds()

	offX := (t.Footprint.Min.X - t.Region.Min.X) * s
	offY := (t.Footprint.Min.Y - t.Region.Min.Y) * s
	dstX0 := t.Footprint.Min.X * s
	dstY0 := t.Footprint.Min.Y * s
	w := t.Footprint.Dx() * s
	h := t.Footprint.Dy() * s

	for r := 0; r < h; r++ {
		dy := dstY0 + r
		if dy < 0 || dy >= c.dst.Rect.Max.Y {
			continue
		}
		sy := srcB.Min.Y + offY + r
		if sy < srcB.Min.Y || sy >= srcB.Max.Y {
			continue
		}

		copyW := w
		if dstX0+copyW > c.dst.Rect.Max.X {
			copyW = c.dst.Rect.Max.X - dstX0
		}
		if offX+copyW > srcB.Dx() {
			copyW = srcB.Dx() - offX
		}
		if copyW <= 0 || dstX0 < 0 || offX < 0 {
			continue
		}

		si := tileImg.PixOffset(srcB.Min.X+offX, sy)
		di := c.dst.PixOffset(dstX0, dy)
		copy(c.dst.Pix[di:di+copyW*4], tileImg.Pix[si:si+copyW*4])
	}
}

// Result returns the assembled output canvas.
func (c *Compositor) Result() *image.NRGBA { return c.dst }

// Bounds returns the output canvas bounds.
func (c *Compositor) Bounds() image.Rectangle { return c.dst.Rect }
