package goicon

import (
	"fmt"
	"math"
)

// Resolution defaults. The export resolution is chosen independently of the
// preview resolution so downloads are re-rendered at higher quality rather
// than upscaled from the preview.
const (
	DefaultPreviewSize = 256
	DefaultExportSize  = 1024

	// DefaultCornerRadiusFraction is the rounded-square corner radius as a
	// fraction of the canvas edge.
	DefaultCornerRadiusFraction = 0.1
)

// ScaleLimits bounds the user-controlled scale percentage.
type ScaleLimits struct {
	Min  int
	Max  int
	Step int
}

// DefaultScaleLimits is the canonical 10-150% range in 5% steps.
var DefaultScaleLimits = ScaleLimits{Min: 10, Max: 150, Step: 5}

// Clamp restricts percent to [Min, Max].
func (l ScaleLimits) Clamp(percent int) int {
	if percent < l.Min {
		return l.Min
	}
	if percent > l.Max {
		return l.Max
	}
	return percent
}

// Snap rounds percent to the nearest step (anchored at Min) and clamps it.
func (l ScaleLimits) Snap(percent int) int {
	if l.Step <= 0 {
		return l.Clamp(percent)
	}
	steps := math.Round(float64(percent-l.Min) / float64(l.Step))
	return l.Clamp(l.Min + int(steps)*l.Step)
}

// Validate reports whether the limits describe a usable range.
func (l ScaleLimits) Validate() error {
	if l.Min < 0 {
		return fmt.Errorf("scale min must not be negative, got %d", l.Min)
	}
	if l.Max < l.Min {
		return fmt.Errorf("scale max %d is below min %d", l.Max, l.Min)
	}
	if l.Step < 0 {
		return fmt.Errorf("scale step must not be negative, got %d", l.Step)
	}
	return nil
}

// ComputeScaledSize returns the pixel edge of content scaled to percent of
// canvasSize. It does not clamp; callers pass a validated percentage.
func ComputeScaledSize(canvasSize, scalePercent int) int {
	return int(math.Round(float64(canvasSize) * float64(scalePercent) / 100))
}

// ComputeCenteredOrigin returns the top-left corner that centers content of
// contentSize inside canvasSize. The result is negative when the content
// overflows the canvas.
func ComputeCenteredOrigin(canvasSize, contentSize int) (x, y float64) {
	o := float64(canvasSize-contentSize) / 2
	return o, o
}

// CornerRadius returns the rounded-square corner radius for canvasSize.
func CornerRadius(canvasSize int, fraction float64) float64 {
	return float64(canvasSize) * fraction
}
