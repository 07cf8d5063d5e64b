package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/upscale/internal/fallback"
	"github.com/MeKo-Tech/upscale/internal/tiler"
	"github.com/MeKo-Tech/upscale/internal/upscaler"
	"github.com/disintegration/imaging"
)

// Result describes one completed enhancement.
type Result struct {
	Image        *image.NRGBA  // the enlarged output
	Model        string        // model family that was selected
	Scale        int           // enlargement factor applied
	UsedFallback bool          // true when the classical path produced the output
	TileCount    int           // tiles processed (0 on the fallback path)
	Duration     time.Duration // wall time for the whole enhancement
}

// Process enlarges img by the configured model's scale factor. Inference
// failures degrade to the classical fallback unless fallback is
// disabled; the output always has dimensions (W*scale, H*scale).
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*Result, error) {
	return p.ProcessWithProgress(ctx, img, p.config.Progress)
}

// ProcessWithProgress is Process with a per-call progress callback,
// for callers that stream progress per request instead of sharing the
// pipeline-wide one.
func (p *Pipeline) ProcessWithProgress(ctx context.Context, img image.Image, progress ProgressFunc) (*Result, error) {
	progress.report(fracStart, StageStart)
	result, err := p.process(ctx, img, progress)
	if err != nil {
		return nil, err
	}
	progress.report(fracDone, StageDone)
	return result, nil
}

// process runs the enhancement without emitting the start or terminal
// progress milestones; the entry points report those around their own
// decode and save steps.
func (p *Pipeline) process(ctx context.Context, img image.Image, progress ProgressFunc) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scale := p.desc.Scale

	if !CheckFeasibility(width, height, scale, p.config.MaxOutputPixels) {
		return nil, fmt.Errorf("%w: %dx%d at %dx exceeds %d output pixels",
			ErrImageTooLarge, width, height, scale, p.config.MaxOutputPixels)
	}

	up, err := p.ensureUpscaler()
	if err != nil {
		if p.config.DisableFallback {
			return nil, err
		}
		slog.Info("Using classical fallback", "reason", err)
		return p.runFallback(ctx, img, scale, start, progress)
	}
	progress.report(fracModelLoad, StageModelLoad)

	out, tiles, err := p.processTiled(ctx, img, up, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if p.config.DisableFallback {
			return nil, err
		}
		slog.Warn("Tiled inference failed, using classical fallback", "error", err)
		return p.runFallback(ctx, img, scale, start, progress)
	}

	return &Result{
		Image:     out,
		Model:     p.desc.Name,
		Scale:     scale,
		TileCount: tiles,
		Duration:  time.Since(start),
	}, nil
}

// processTiled runs the tile loop: crop each region, enhance it, and
// composite the footprint into the output canvas. A failure of the
// inference engine itself aborts the loop so the caller can fall back
// on the whole image; a failure confined to one tile degrades that tile
// to a plain resize and continues.
func (p *Pipeline) processTiled(
	ctx context.Context, img image.Image, up *upscaler.Upscaler, progress ProgressFunc,
) (*image.NRGBA, int, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scale := p.desc.Scale

	grid, err := tiler.Plan(width, height, p.config.Tiling)
	if err != nil {
		return nil, 0, err
	}

	comp, err := tiler.NewCompositor(width, height, scale)
	if err != nil {
		return nil, 0, err
	}

	// Crop coordinates below are image-local, so normalize to a
	// zero-origin copy once instead of offsetting every region.
	src := imaging.Clone(img)

	total := grid.Total()
	slog.Debug("Processing tile grid",
		"tiles", total, "grid_x", grid.NumX, "grid_y", grid.NumY,
		"tile_size", p.config.Tiling.TileSize, "overlap", p.config.Tiling.Overlap)

	for i, t := range grid.Tiles {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		tileImg := imaging.Crop(src, t.Region)

		enhanced, err := up.EnhanceTile(tileImg)
		if err != nil {
			if errors.Is(err, upscaler.ErrInference) {
				p.markUnavailable(err)
				return nil, 0, fmt.Errorf("%w: %v", ErrInferenceBackend, err)
			}
			// Tile-local failure: degrade this tile to a plain resize
			// so the output stays complete.
			slog.Warn("Tile enhancement failed, resizing tile instead",
				"tx", t.TX, "ty", t.TY, "error", err)
			enhanced = imaging.Resize(tileImg,
				t.Region.Dx()*scale, t.Region.Dy()*scale, imaging.CatmullRom)
		}

		comp.Place(t, enhanced)
		progress.report(tileFraction(i+1, total), StageTiles)
	}

	return comp.Result(), total, nil
}

// ensureUpscaler returns the lazily-created inference session. A cached
// unavailable state short-circuits; construction failures try a
// CPU-only retry when GPU was requested, and only then mark the
// backend unavailable for the rest of the session.
func (p *Pipeline) ensureUpscaler() (*upscaler.Upscaler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Availability wins over the cached session: a session that failed
	// mid-run must never be handed out again.
	if down, reason := p.avail.Unavailable(); down {
		return nil, fmt.Errorf("%w: %v", ErrInferenceBackend, reason)
	}

	if p.up != nil {
		return p.up, nil
	}

	cfg := upscaler.Config{
		Model:      p.desc,
		NumThreads: p.config.NumThreads,
		GPU:        p.config.GPU,
	}
	cfg.UpdateModelPath(p.config.ModelsDir)

	// A missing artifact is cheap to detect and may be provisioned
	// later, so it is reported but never cached as unavailable.
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelMissing, cfg.ModelPath)
	}

	up, err := upscaler.NewUpscaler(cfg)
	if err != nil && cfg.GPU.UseGPU {
		slog.Warn("GPU session creation failed, retrying on CPU", "error", err)
		cfg.GPU.UseGPU = false
		up, err = upscaler.NewUpscaler(cfg)
	}
	if err != nil {
		p.avail.MarkUnavailable(err)
		return nil, fmt.Errorf("%w: %v", ErrInferenceBackend, err)
	}

	if p.config.Warmup {
		if err := up.Warmup(); err != nil {
			slog.Warn("Warmup inference failed", "error", err)
		}
	}

	p.up = up
	return up, nil
}

// runFallback produces the output via classical interpolation. This is
// the terminal path: it cannot itself fall back, so its errors surface
// directly.
func (p *Pipeline) runFallback(
	ctx context.Context, img image.Image, scale int, start time.Time, progress ProgressFunc,
) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress.report(tileRangeLo, StageFallback)

	out, err := fallback.Upscale(img, scale)
	if err != nil {
		return nil, fmt.Errorf("fallback upscale failed: %w", err)
	}

	progress.report(tileRangeHi, StageFallback)
	return &Result{
		Image:        out,
		Model:        p.desc.Name,
		Scale:        scale,
		UsedFallback: true,
		Duration:     time.Since(start),
	}, nil
}

// ProcessFile enhances the image at inputPath and writes the result to
// outputPath, with format chosen by the output extension.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	progress := p.config.Progress
	progress.report(fracStart, StageStart)

	img, err := DecodeImage(inputPath)
	if err != nil {
		return nil, err
	}
	progress.report(fracDecode, StageDecode)

	result, err := p.process(ctx, img, progress)
	if err != nil {
		return nil, err
	}

	progress.report(fracSave, StageSave)
	if err := SaveImage(result.Image, outputPath, p.config.JPEGQuality); err != nil {
		return nil, err
	}
	progress.report(fracDone, StageDone)

	slog.Info("Image enhanced",
		"input", inputPath, "output", outputPath,
		"model", result.Model, "scale", result.Scale,
		"fallback", result.UsedFallback, "tiles", result.TileCount,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}
