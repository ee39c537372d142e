package ranging

import (
	"fmt"
	"math"
	"sort"

	"github.com/rangelab/camranger/server/models"
)

const (
	minDepthDistanceM = 0.5
	maxDepthDistanceM = 2000.0

	// Sample window edge in frame pixels: tight around a detected target,
	// wider when probing the bare frame center.
	targetWindowPx = 50
	centerWindowPx = 100

	// Every 4th raster pixel inside the window; dense sampling buys little
	// once the median is taken.
	sampleStride = 4

	// Absolute scale from monocular depth is approximate, so depth
	// components carry fixed, deliberately modest confidence and weight.
	depthConfidence   = 0.5
	depthFusionWeight = 0.3
)

// RangeByDepth samples the inverse-depth raster around the target (or the
// frame center when no target exists) and converts the median sample into a
// distance using the calibrated scale factor. Returns false when the raster
// is missing, no sample is usable, or the distance leaves the sanity band.
func RangeByDepth(depth *models.DepthMap, target *models.Detection, frameWidth, frameHeight int, scale float64) (models.RangeComponent, bool) {
	if !depth.Valid() || frameWidth <= 0 || frameHeight <= 0 || scale <= 0 {
		return models.RangeComponent{}, false
	}

	cx, cy := float64(frameWidth)/2, float64(frameHeight)/2
	window := float64(centerWindowPx)
	if target != nil {
		cx, cy = target.Box.CenterX(), target.Box.CenterY()
		window = float64(targetWindowPx)
	}

	median, n := medianDepthSample(depth, cx, cy, window, frameWidth, frameHeight)
	if n == 0 || median <= 0 {
		return models.RangeComponent{}, false
	}

	// Inverse depth: larger raster values are closer.
	distance := scale / median
	if distance < minDepthDistanceM || distance > maxDepthDistanceM {
		return models.RangeComponent{}, false
	}

	return models.RangeComponent{
		Method:     models.MethodDepth,
		DistanceM:  distance,
		Confidence: depthConfidence,
		Weight:     depthFusionWeight,
		Source:     "depth_map",
		Rationale:  fmt.Sprintf("median of %d inverse-depth samples = %.4f, scale %.2f", n, median, scale),
	}, true
}

// medianDepthSample rescales a frame-pixel window into raster coordinates,
// strides across it, and returns the median of the finite positive samples
// plus how many were collected. The median shrugs off holes and edge
// artifacts that would wreck a mean.
func medianDepthSample(depth *models.DepthMap, cx, cy, window float64, frameWidth, frameHeight int) (float64, int) {
	// Per-axis rescale: the raster is co-registered with the frame but not
	// necessarily at the same resolution.
	sx := float64(depth.Width) / float64(frameWidth)
	sy := float64(depth.Height) / float64(frameHeight)

	x0 := clampInt(int((cx-window/2)*sx), 0, depth.Width-1)
	x1 := clampInt(int((cx+window/2)*sx), 0, depth.Width-1)
	y0 := clampInt(int((cy-window/2)*sy), 0, depth.Height-1)
	y1 := clampInt(int((cy+window/2)*sy), 0, depth.Height-1)

	var samples []float64
	for y := y0; y <= y1; y += sampleStride {
		for x := x0; x <= x1; x += sampleStride {
			v, ok := depth.At(x, y)
			if !ok || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
				continue
			}
			samples = append(samples, v)
		}
	}
	if len(samples) == 0 {
		return 0, 0
	}

	sort.Float64s(samples)
	mid := len(samples) / 2
	if len(samples)%2 == 0 {
		return (samples[mid-1] + samples[mid]) / 2, len(samples)
	}
	return samples[mid], len(samples)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
