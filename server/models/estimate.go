package models

import "time"

// RangeMethod tags which measurement path produced a component or estimate.
type RangeMethod string

const (
	MethodHumanSize     RangeMethod = "human_size"
	MethodVehicleSize   RangeMethod = "vehicle_size"
	MethodWildlifeSize  RangeMethod = "wildlife_size"
	MethodStructureSize RangeMethod = "structure_size"
	MethodSignSize      RangeMethod = "sign_size"
	MethodDepth         RangeMethod = "depth"
	MethodFused         RangeMethod = "fused"
	MethodNone          RangeMethod = "none"
)

// SizeMethodFor maps an object category to its size-ranging method tag.
func SizeMethodFor(c ObjectCategory) RangeMethod {
	switch c {
	case CategoryHuman:
		return MethodHumanSize
	case CategoryVehicle:
		return MethodVehicleSize
	case CategoryWildlife:
		return MethodWildlifeSize
	case CategoryStructure:
		return MethodStructureSize
	case CategorySign:
		return MethodSignSize
	}
	return MethodNone
}

// DistanceUnit is a display unit for estimates. Distances are meters
// internally; conversion happens at the presentation edge.
type DistanceUnit string

const (
	UnitMeters DistanceUnit = "m"
	UnitYards  DistanceUnit = "yd"
)

const yardsPerMeter = 1.0936132983

// Convert renders a distance in meters into the given unit.
func (u DistanceUnit) Convert(meters float64) float64 {
	if u == UnitYards {
		return meters * yardsPerMeter
	}
	return meters
}

// RangeComponent is one candidate distance from a single method, before
// fusion. Components outside each method's sanity band are never built.
type RangeComponent struct {
	Method     RangeMethod `json:"method"`
	DistanceM  float64     `json:"distance_m"`
	Confidence float64     `json:"confidence"`
	Weight     float64     `json:"weight"`
	Source     string      `json:"source,omitempty"`
	Rationale  string      `json:"rationale,omitempty"`
}

// QualityTier is the coarse user-facing grade of an estimate.
type QualityTier string

const (
	QualityExcellent QualityTier = "excellent"
	QualityGood      QualityTier = "good"
	QualityFair      QualityTier = "fair"
	QualityPoor      QualityTier = "poor"
)

// RangeEstimate is the published output for one processed frame.
type RangeEstimate struct {
	DistanceM    float64          `json:"distance_m"`
	Confidence   float64          `json:"confidence"`
	Method       RangeMethod      `json:"method"`
	UncertaintyM float64          `json:"uncertainty_m"`
	Components   []RangeComponent `json:"components"`
	Timestamp    time.Time        `json:"timestamp"`
}

// NoEstimate is the wire sentinel for a frame that produced no usable
// components. Code paths that need to tell "no signal" from "weak signal"
// use the ok bool returned alongside estimates, not this value.
func NoEstimate(ts time.Time) RangeEstimate {
	return RangeEstimate{Method: MethodNone, Components: []RangeComponent{}, Timestamp: ts}
}

// UncertaintyPercent is uncertainty as a percentage of distance, 0 when the
// distance itself is zero.
func (e RangeEstimate) UncertaintyPercent() float64 {
	if e.DistanceM == 0 {
		return 0
	}
	return e.UncertaintyM / e.DistanceM * 100
}

// Quality grades the estimate for display.
func (e RangeEstimate) Quality() QualityTier {
	pct := e.UncertaintyPercent()
	switch {
	case e.Confidence > 0.8 && pct < 5:
		return QualityExcellent
	case e.Confidence > 0.6 && pct < 10:
		return QualityGood
	case e.Confidence > 0.4 && pct < 20:
		return QualityFair
	}
	return QualityPoor
}

// Locked reports whether the estimate is solid enough for the reticle to
// latch on, per the presentation contract.
func (e RangeEstimate) Locked() bool {
	return e.Confidence > 0.5
}
