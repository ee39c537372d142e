package ranging

import (
	"math"

	"github.com/rangelab/camranger/server/models"
)

// selectorFalloff keeps the aim-point score finite for a detection dead
// center in the frame.
const selectorFalloff = 0.1

// SelectPrimary picks the detection most relevant to the aim point: high
// confidence, close to frame center, no hard cutoff. Ties on score go to the
// earliest detection in the slice, so the result is deterministic for a
// given input order.
func SelectPrimary(dets []models.Detection, frameWidth, frameHeight int) (models.Detection, bool) {
	if len(dets) == 0 || frameWidth <= 0 || frameHeight <= 0 {
		return models.Detection{}, false
	}

	best := 0
	bestScore := math.Inf(-1)
	for i, d := range dets {
		score := aimScore(d, frameWidth, frameHeight)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return dets[best], true
}

// aimScore is confidence over distance-to-center in normalized image
// coordinates, softened by a constant falloff.
func aimScore(d models.Detection, frameWidth, frameHeight int) float64 {
	cx := d.Box.CenterX() / float64(frameWidth)
	cy := d.Box.CenterY() / float64(frameHeight)
	dist := math.Hypot(cx-0.5, cy-0.5)
	return d.Confidence / (dist + selectorFalloff)
}
