package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/MeKo-Tech/upscale/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// timePrecision is the rounding applied to reported durations.
const timePrecision = 10 * time.Millisecond

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [flags] <image-files...>",
	Short: "Upscale image files",
	Long: `Enlarge one or more images with a super-resolution model.

Large images are processed tile by tile so memory use stays bounded
regardless of input size. When the model or inference runtime is
unavailable the image is enlarged with classical interpolation instead,
unless --no-fallback is given.

Supported formats: PNG, JPEG, BMP, TIFF.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImage,
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath != "" && len(args) > 1 && !isDirectory(outputPath) {
		return fmt.Errorf("--output must be a directory when processing multiple images")
	}

	pcfg := cfg.ToPipelineConfig()
	if cfg.Verbose {
		pcfg.Progress = pipeline.LogProgress(slog.Default())
	}

	p, err := pipeline.NewBuilder().WithConfig(pcfg).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			slog.Warn("failed to close pipeline", "error", cerr)
		}
	}()

	var failed int
	for _, input := range args {
		out := outputFileFor(input, outputPath, cfg.Output.Dir, cfg.Output.Format, p.Scale())

		result, err := p.ProcessFile(cmd.Context(), input, out)
		if err != nil {
			slog.Error("failed to upscale image", "input", input, "error", err)
			failed++
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx, model=%s", input, out, result.Scale, result.Model)
		if result.UsedFallback {
			fmt.Fprint(cmd.OutOrStdout(), ", fallback")
		}
		fmt.Fprintf(cmd.OutOrStdout(), ", %s)\n", result.Duration.Round(timePrecision))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}

// outputFileFor derives the output path for an input image. An explicit
// --output wins; a file path is used as-is, a directory gets a derived
// file name. Otherwise the configured output dir (or the input's own
// directory) receives "<name>_x<scale>.<format>".
func outputFileFor(input, explicit, outputDir, format string, scale int) string {
	if explicit != "" && !isDirectory(explicit) {
		return explicit
	}

	dir := filepath.Dir(input)
	if explicit != "" {
		dir = explicit
	} else if outputDir != "" {
		dir = outputDir
	}

	ext := format
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(input), ".")
		if ext == "" {
			ext = "png"
		}
	}
	if ext == "jpeg" {
		ext = "jpg"
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, fmt.Sprintf("%s_x%d.%s", base, scale, ext))
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func init() {
	rootCmd.AddCommand(imageCmd)
	addImageFlags(imageCmd)
	bindImageFlags(imageCmd)
}

// addImageFlags adds image-specific flags to the command.
func addImageFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "output file (single input) or directory")
	cmd.Flags().StringP("model", "m", models.DefaultModel, "model to use for enlargement")
	cmd.Flags().StringP("format", "f", "png", "output format (png, jpg, bmp, tiff)")
	cmd.Flags().Int("jpeg-quality", pipeline.DefaultJPEGQuality, "quality for JPEG output (1-100)")
	cmd.Flags().Int("tile-size", 256, "tile edge length in pixels")
	cmd.Flags().Int("overlap", 16, "tile overlap in pixels")
	cmd.Flags().Int("threads", 0, "CPU threads for inference (0 = auto)")
	cmd.Flags().Int64("max-output-pixels", pipeline.DefaultMaxOutputPixels,
		"reject inputs whose output would exceed this many pixels")
	cmd.Flags().Bool("no-fallback", false, "fail instead of degrading to classical interpolation")
	cmd.Flags().Bool("warmup", false, "run a warmup inference before the first image")
	cmd.Flags().Bool("gpu", false, "use GPU acceleration if available")
	cmd.Flags().Int("gpu-device", 0, "GPU device ID")
	cmd.Flags().String("gpu-mem-limit", "auto", "GPU memory limit (e.g. 2GB, 512MB, auto)")
}

// bindImageFlags binds image command flags to viper keys.
func bindImageFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"pipeline.model", "model"},
		{"pipeline.tile_size", "tile-size"},
		{"pipeline.overlap", "overlap"},
		{"pipeline.num_threads", "threads"},
		{"pipeline.max_output_pixels", "max-output-pixels"},
		{"pipeline.disable_fallback", "no-fallback"},
		{"pipeline.warmup", "warmup"},
		{"output.format", "format"},
		{"output.jpeg_quality", "jpeg-quality"},
		{"gpu.enabled", "gpu"},
		{"gpu.device", "gpu-device"},
		{"gpu.memory_limit", "gpu-mem-limit"},
	}

	for _, b := range flagBindings {
		_ = viper.BindPFlag(b.key, cmd.Flags().Lookup(b.flag))
	}
}
