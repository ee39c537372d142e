package ranging

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rangelab/camranger/server/models"
)

const (
	// Single-method uncertainty scales with how unsure that method is.
	soloUncertaintyFactor = 0.2

	// Even perfectly agreeing methods don't justify uncertainty below 3%
	// of the fused distance.
	uncertaintyFloorRatio = 0.03
)

// Fuse combines candidate components into one estimate. The ok return is the
// signal discriminator: false means no component contributed anything and
// the estimate is the wire sentinel, which must not be confused with a real
// low-confidence measurement.
func Fuse(components []models.RangeComponent, ts time.Time) (models.RangeEstimate, bool) {
	switch len(components) {
	case 0:
		return models.NoEstimate(ts), false
	case 1:
		c := components[0]
		return models.RangeEstimate{
			DistanceM:    c.DistanceM,
			Confidence:   c.Confidence,
			Method:       c.Method,
			UncertaintyM: c.DistanceM * (1 - c.Confidence) * soloUncertaintyFactor,
			Components:   components,
			Timestamp:    ts,
		}, true
	}

	distances := make([]float64, len(components))
	weights := make([]float64, len(components))
	var weightSum float64
	for i, c := range components {
		distances[i] = c.DistanceM
		weights[i] = c.Weight
		weightSum += c.Weight
	}
	if weightSum == 0 {
		return models.NoEstimate(ts), false
	}

	mean := stat.Mean(distances, weights)

	// Population-weighted spread around the fused mean. The components are
	// the whole population here, not a sample, so no bias correction.
	var variance float64
	for i, d := range distances {
		variance += weights[i] * (d - mean) * (d - mean)
	}
	variance /= weightSum

	uncertainty := math.Max(math.Sqrt(variance), mean*uncertaintyFloorRatio)

	// Balance the best single method against the weighted typical case.
	var maxConf, confWeighted float64
	for _, c := range components {
		if c.Confidence > maxConf {
			maxConf = c.Confidence
		}
		confWeighted += c.Confidence * c.Weight
	}
	confidence := (maxConf + confWeighted/weightSum) / 2

	return models.RangeEstimate{
		DistanceM:    mean,
		Confidence:   clamp01(confidence),
		Method:       models.MethodFused,
		UncertaintyM: uncertainty,
		Components:   components,
		Timestamp:    ts,
	}, true
}
