package ranging

import "math"

// Defaults for the 1-D distance filter. The initial variance is deliberately
// uninformative so the first measurement dominates.
const (
	defaultProcessNoiseVar     = 0.5
	defaultMeasurementNoiseVar = 2.0
	initialEstimateVar         = 100.0
)

// DistanceFilter is a scalar Kalman filter smoothing fused distances across
// frames. It holds the only cross-frame state in the core besides the
// calibration scale; the owner resets it when the tracked target changes,
// since the filter itself has no change detection.
type DistanceFilter struct {
	estimate float64
	variance float64

	processNoiseVar     float64
	measurementNoiseVar float64
}

// NewDistanceFilter builds a filter with the given noise variances;
// non-positive arguments fall back to the defaults.
func NewDistanceFilter(processNoiseVar, measurementNoiseVar float64) *DistanceFilter {
	if processNoiseVar <= 0 {
		processNoiseVar = defaultProcessNoiseVar
	}
	if measurementNoiseVar <= 0 {
		measurementNoiseVar = defaultMeasurementNoiseVar
	}
	return &DistanceFilter{
		variance:            initialEstimateVar,
		processNoiseVar:     processNoiseVar,
		measurementNoiseVar: measurementNoiseVar,
	}
}

// Update folds measurement z into the state and returns the new smoothed
// estimate. noiseVar overrides the measurement-noise variance for this
// update when positive; pass 0 (or negative) to use the default.
func (f *DistanceFilter) Update(z, noiseVar float64) float64 {
	r := f.measurementNoiseVar
	if noiseVar > 0 {
		r = noiseVar
	}

	predicted := f.variance + f.processNoiseVar
	gain := predicted / (predicted + r)
	f.estimate += gain * (z - f.estimate)
	f.variance = (1 - gain) * predicted
	return f.estimate
}

// Reset returns the filter to its uninformative prior.
func (f *DistanceFilter) Reset() {
	f.estimate = 0
	f.variance = initialEstimateVar
}

// Estimate is the current smoothed distance.
func (f *DistanceFilter) Estimate() float64 { return f.estimate }

// Uncertainty is the standard deviation of the current state.
func (f *DistanceFilter) Uncertainty() float64 { return math.Sqrt(f.variance) }
