package ranging

import "fmt"

// DefaultDepthScale is the inverse-depth scale used before any calibration
// has run. It assumes the collaborator's raster is roughly normalized; a
// single calibration against a known distance replaces it.
const DefaultDepthScale = 10.0

// Calibration converts relative inverse depth into absolute distance. The
// scale lives for the process lifetime; persisting it across restarts is the
// caller's concern.
type Calibration struct {
	scale float64
}

func NewCalibration(scale float64) *Calibration {
	if scale <= 0 {
		scale = DefaultDepthScale
	}
	return &Calibration{scale: scale}
}

// Calibrate derives the scale from one ground-truth measurement: standing at
// a known distance, the raster reads measuredDepth there, so
// scale = distance × measuredDepth (inverted from distance = scale/depth).
func (c *Calibration) Calibrate(knownDistanceM, measuredDepth float64) error {
	if knownDistanceM <= 0 {
		return fmt.Errorf("calibration distance must be positive, got %g", knownDistanceM)
	}
	if measuredDepth <= 0 {
		return fmt.Errorf("calibration depth sample must be positive, got %g", measuredDepth)
	}
	c.scale = knownDistanceM * measuredDepth
	return nil
}

// Scale is the current inverse-depth scale factor.
func (c *Calibration) Scale() float64 { return c.scale }
