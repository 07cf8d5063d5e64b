package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// Register decoders beyond the imaging defaults so BMP and TIFF
	// inputs decode through image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DecodeImage reads and decodes the image at path.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, path, err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory image, returning the detected format
// name alongside the pixels.
func DecodeBytes(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return img, format, nil
}

// SaveImage writes img to path, choosing the format from the file
// extension. JPEG output uses the given quality.
func SaveImage(img image.Image, path string, jpegQuality int) error {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating output directory: %v", ErrIOFailure, err)
		}
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("%w: saving %s: %v", ErrIOFailure, path, err)
	}
	return nil
}

// EncodeTo writes img to w in the named format ("png", "jpeg", "bmp",
// "gif", or "tiff"). Unknown formats default to PNG.
func EncodeTo(w io.Writer, img image.Image, format string, jpegQuality int) error {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}

	f, err := imaging.FormatFromExtension(normalizeFormat(format))
	if err != nil {
		f = imaging.PNG
	}
	if err := imaging.Encode(w, img, f, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrIOFailure, format, err)
	}
	return nil
}

// normalizeFormat maps a format name or extension to an extension
// imaging understands.
func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
