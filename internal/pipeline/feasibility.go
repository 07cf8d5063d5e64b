package pipeline

// DefaultMaxOutputPixels is the output pixel ceiling used when none is
// configured. Tiling keeps per-tile memory flat, but the full-resolution
// output canvas is still allocated up front; this cheap pre-flight check
// avoids starting work destined to exhaust memory. It is a heuristic on
// pixel count, not a live memory probe.
const DefaultMaxOutputPixels = int64(25_000_000)

// OutputPixels returns the output pixel count for a width×height image
// enlarged by scale.
func OutputPixels(width, height, scale int) int64 {
	return int64(width) * int64(height) * int64(scale) * int64(scale)
}

// CheckFeasibility reports whether the enlarged output stays within the
// pixel ceiling. An output exactly at the ceiling is accepted. It never
// fails; the decision is advisory.
func CheckFeasibility(width, height, scale int, maxOutputPixels int64) bool {
	if maxOutputPixels <= 0 {
		maxOutputPixels = DefaultMaxOutputPixels
	}
	if width <= 0 || height <= 0 || scale <= 0 {
		return false
	}
	return OutputPixels(width, height, scale) <= maxOutputPixels
}
