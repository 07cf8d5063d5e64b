package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// Stage labels reported alongside progress fractions.
const (
	StageStart     = "start"
	StageDecode    = "decode"
	StageModelLoad = "model-load"
	StageTiles     = "tiles"
	StageFallback  = "fallback"
	StageSave      = "save"
	StageDone      = "done"
)

// Milestone fractions for the overall progress range. Tiling occupies
// the bulk of the range; the scheduler itself is range-agnostic and the
// linear tile fraction is mapped into [tileRangeLo, tileRangeHi].
const (
	fracStart     = 0.0
	fracDecode    = 0.05
	fracModelLoad = 0.15
	tileRangeLo   = 0.20
	tileRangeHi   = 0.90
	fracSave      = 0.95
	fracDone      = 1.0
)

// ProgressFunc receives progress updates at defined milestones. The
// fraction is monotonically non-decreasing in [0,1]. Callbacks are
// invoked inline from the processing goroutine; implementations that
// need to hop threads do so themselves.
type ProgressFunc func(fraction float64, stage string)

// report invokes the callback if one is set.
func (f ProgressFunc) report(fraction float64, stage string) {
	if f != nil {
		f(fraction, stage)
	}
}

// tileFraction maps completed/total tiles into the tile sub-range of the
// overall progress.
func tileFraction(completed, total int) float64 {
	if total <= 0 {
		return tileRangeHi
	}
	return tileRangeLo + (tileRangeHi-tileRangeLo)*float64(completed)/float64(total)
}

// LogProgress returns a ProgressFunc that logs milestones via slog.
func LogProgress(logger *slog.Logger) ProgressFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(fraction float64, stage string) {
		logger.Debug("enhancement progress", "fraction", fraction, "stage", stage)
	}
}

// Throttled wraps a ProgressFunc so it fires at most once per interval.
// Terminal updates (fraction >= 1) are always delivered.
func Throttled(f ProgressFunc, minInterval time.Duration) ProgressFunc {
	if f == nil {
		return nil
	}
	var mu sync.Mutex
	var last time.Time
	return func(fraction float64, stage string) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if fraction < 1 && !last.IsZero() && now.Sub(last) < minInterval {
			return
		}
		last = now
		f(fraction, stage)
	}
}
