package ranging

import (
	"fmt"
	"math"

	"github.com/rangelab/camranger/server/models"
)

// Sanity bands and penalty knees for size-based ranging. Distances outside
// the band are never materialized as components.
const (
	minSizePixels = 5.0

	minSizeDistanceM = 1.0
	maxSizeDistanceM = 2000.0

	// Pixel sizes below smallTargetPixels scale confidence linearly;
	// between smallTargetPixels and fullTargetPixels the penalty eases off.
	smallTargetPixels = 50.0
	fullTargetPixels  = 100.0

	// Beyond this range the angular size budget gets thin and confidence
	// decays hyperbolically.
	longRangeKneeM = 500.0
)

// RangeBySize converts one detection plus its known real-world size into a
// candidate distance via the pinhole model: realSize/distance =
// pixelSize/focalLength. Returns false when the measurement is too coarse or
// the resulting distance falls outside the sanity band.
func RangeBySize(det models.Detection, size models.KnownObjectSize, intr models.CameraIntrinsics) (models.RangeComponent, bool) {
	pixels, focal := measurementFor(det, size.Axis, intr)
	if pixels < minSizePixels || focal <= 0 || size.SizeMeters <= 0 {
		return models.RangeComponent{}, false
	}

	distance := size.SizeMeters * focal / pixels
	if distance < minSizeDistanceM || distance > maxSizeDistanceM {
		return models.RangeComponent{}, false
	}

	conf := det.Confidence
	conf *= sizePenalty(pixels)
	conf *= 1 - size.Variability*0.5
	conf *= aspectPenalty(det.Box.AspectRatio(), size.AspectWH)
	conf *= distancePenalty(distance)
	conf = clamp01(conf)

	return models.RangeComponent{
		Method:     models.SizeMethodFor(size.Category),
		DistanceM:  distance,
		Confidence: conf,
		Weight:     clamp01(conf * size.Reliability),
		Source:     det.Label,
		Rationale: fmt.Sprintf("%s %s %.2fm over %.0fpx at f=%.0fpx",
			det.Label, size.Axis, size.SizeMeters, pixels, focal),
	}, true
}

// measurementFor picks the pixel dimension matching the catalog's
// measurement axis, and the focal length along the same image axis.
func measurementFor(det models.Detection, axis models.MeasurementAxis, intr models.CameraIntrinsics) (pixels, focal float64) {
	switch axis {
	case models.AxisHeight, models.AxisShoulderHeight:
		return det.Box.Height, intr.FocalY
	case models.AxisWidth:
		return det.Box.Width, intr.FocalX
	case models.AxisDiagonal:
		// Focal lengths rarely differ much between axes; the mean keeps
		// the diagonal measurement symmetric.
		return det.Box.Diagonal(), (intr.FocalX + intr.FocalY) / 2
	}
	return 0, 0
}

func sizePenalty(pixels float64) float64 {
	switch {
	case pixels < smallTargetPixels:
		return pixels / smallTargetPixels
	case pixels < fullTargetPixels:
		return 0.8 + (pixels-smallTargetPixels)/250
	}
	return 1.0
}

func aspectPenalty(actual, expected float64) float64 {
	deviation := math.Abs(actual-expected) / math.Max(expected, 0.1)
	switch {
	case deviation > 0.5:
		return 0.6
	case deviation > 0.3:
		return 0.8
	}
	return 1.0
}

func distancePenalty(distance float64) float64 {
	if distance > longRangeKneeM {
		return longRangeKneeM / distance
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
