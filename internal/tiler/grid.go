package tiler

import (
	"fmt"
	"image"
	"log/slog"
)

// Config holds the tile geometry used to partition an image.
type Config struct {
	TileSize int // nominal square tile edge in source pixels
	Overlap  int // extra border included around each tile to avoid seams
}

// DefaultConfig returns the tile geometry used for Real-ESRGAN class models.
func DefaultConfig() Config {
	return Config{
		TileSize: 256,
		Overlap:  16,
	}
}

// Validate checks the tile geometry.
func (c Config) Validate() error {
	if c.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", c.TileSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.TileSize {
		return fmt.Errorf("overlap %d must be smaller than tile size %d", c.Overlap, c.TileSize)
	}
	return nil
}

// Tile describes one grid cell of a partitioned image.
//
// Region is the source rectangle cropped for inference: the nominal
// TileSize cell expanded by Overlap on every side, clamped to the image.
// Footprint is the effective region the tile owns in the output: the
// nominal cell, shrunk at the last row/column to whatever remains within
// bounds. Footprints of all tiles partition the image exactly.
type Tile struct {
	TX, TY    int
	Region    image.Rectangle
	Footprint image.Rectangle
}

// Grid is a deterministic row-major enumeration of tiles covering an image.
type Grid struct {
	Tiles  []Tile
	NumX   int
	NumY   int
	Width  int
	Height int
}

// Total returns the number of tiles in the grid.
func (g *Grid) Total() int { return len(g.Tiles) }

// Plan partitions a width×height image into overlapping tiles.
// Tiles are emitted in row-major order; enumeration is deterministic so
// progress fractions and output are reproducible. Degenerate cells whose
// computed width or height is not positive are skipped with a log entry
// rather than failing the run.
func Plan(width, height int, cfg Config) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	t, o := cfg.TileSize, cfg.Overlap
	numX := (width + t - 1) / t
	numY := (height + t - 1) / t

	grid := &Grid{
		Tiles:  make([]Tile, 0, numX*numY),
		NumX:   numX,
		NumY:   numY,
		Width:  width,
		Height: height,
	}

	for ty := 0; ty < numY; ty++ {
		for tx := 0; tx < numX; tx++ {
			x0 := tx*t - o
			y0 := ty*t - o
			x1 := min((tx+1)*t+o, width)
			y1 := min((ty+1)*t+o, height)
			if x0 < 0 {
				x0 = 0
			}
			if y0 < 0 {
				y0 = 0
			}

			if x1-x0 <= 0 || y1-y0 <= 0 {
				slog.Debug("skipping degenerate tile",
					"tx", tx, "ty", ty, "width", x1-x0, "height", y1-y0)
				continue
			}

			effW := t
			if tx == numX-1 {
				effW = width - tx*t
			}
			effH := t
			if ty == numY-1 {
				effH = height - ty*t
			}

			grid.Tiles = append(grid.Tiles, Tile{
				TX:        tx,
				TY:        ty,
				Region:    image.Rect(x0, y0, x1, y1),
				Footprint: image.Rect(tx*t, ty*t, tx*t+effW, ty*t+effH),
			})
		}
	}

	return grid, nil
}
