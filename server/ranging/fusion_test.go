package ranging

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelab/camranger/server/models"
)

func comp(method models.RangeMethod, dist, conf, weight float64) models.RangeComponent {
	return models.RangeComponent{Method: method, DistanceM: dist, Confidence: conf, Weight: weight}
}

func TestFuse_NoComponents(t *testing.T) {
	ts := time.Now()
	est, ok := Fuse(nil, ts)
	assert.False(t, ok)
	assert.Equal(t, models.MethodNone, est.Method)
	assert.Zero(t, est.DistanceM)
	assert.Zero(t, est.Confidence)
	assert.Zero(t, est.UncertaintyM)
	assert.Empty(t, est.Components)
	assert.Equal(t, ts, est.Timestamp)
}

func TestFuse_SingleComponentPassesThrough(t *testing.T) {
	c := comp(models.MethodHumanSize, 42.0, 0.8, 0.7)
	est, ok := Fuse([]models.RangeComponent{c}, time.Now())
	require.True(t, ok)

	assert.Equal(t, c.DistanceM, est.DistanceM)
	assert.Equal(t, c.Confidence, est.Confidence)
	assert.Equal(t, c.Method, est.Method)
	assert.InDelta(t, 42.0*0.2*0.2, est.UncertaintyM, 1e-9)
}

func TestFuse_WeightedPair(t *testing.T) {
	// (100m, w=0.8) and (120m, w=0.2): mean 104, variance
	// 0.8*16 + 0.2*256 = 64, so uncertainty 8m (above the 3% floor).
	a := comp(models.MethodHumanSize, 100, 0.8, 0.8)
	b := comp(models.MethodDepth, 120, 0.4, 0.2)

	est, ok := Fuse([]models.RangeComponent{a, b}, time.Now())
	require.True(t, ok)

	assert.InDelta(t, 104.0, est.DistanceM, 1e-9)
	assert.InDelta(t, 8.0, est.UncertaintyM, 1e-9)
	assert.Equal(t, models.MethodFused, est.Method)
	// (max 0.8 + weighted (0.8*0.8 + 0.4*0.2)/1.0) / 2
	assert.InDelta(t, (0.8+0.72)/2, est.Confidence, 1e-9)
}

func TestFuse_UncertaintyFloor(t *testing.T) {
	// Perfect agreement still carries 3% uncertainty.
	a := comp(models.MethodHumanSize, 200, 0.9, 0.5)
	b := comp(models.MethodDepth, 200, 0.5, 0.3)

	est, ok := Fuse([]models.RangeComponent{a, b}, time.Now())
	require.True(t, ok)
	assert.InDelta(t, 200*0.03, est.UncertaintyM, 1e-9)
}

func TestFuse_ZeroTotalWeight(t *testing.T) {
	a := comp(models.MethodHumanSize, 100, 0.5, 0)
	b := comp(models.MethodDepth, 120, 0.5, 0)

	est, ok := Fuse([]models.RangeComponent{a, b}, time.Now())
	assert.False(t, ok)
	assert.Equal(t, models.MethodNone, est.Method)
}

func TestFuse_MeanBoundedByInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		n := 2 + rng.Intn(4)
		cs := make([]models.RangeComponent, n)
		minD, maxD := 2000.0, 0.5
		for j := range cs {
			d := 0.5 + rng.Float64()*1999.5
			cs[j] = comp(models.MethodDepth, d, rng.Float64(), 0.01+rng.Float64())
			if d < minD {
				minD = d
			}
			if d > maxD {
				maxD = d
			}
		}
		est, ok := Fuse(cs, time.Now())
		require.True(t, ok)
		assert.GreaterOrEqual(t, est.DistanceM, minD-1e-9)
		assert.LessOrEqual(t, est.DistanceM, maxD+1e-9)
		assert.GreaterOrEqual(t, est.UncertaintyM, est.DistanceM*0.03-1e-9)
		assert.GreaterOrEqual(t, est.Confidence, 0.0)
		assert.LessOrEqual(t, est.Confidence, 1.0)
	}
}

func TestQualityTiers(t *testing.T) {
	cases := []struct {
		conf, dist, unc float64
		want            models.QualityTier
	}{
		{0.9, 100, 4, models.QualityExcellent},
		{0.7, 100, 8, models.QualityGood},
		{0.5, 100, 15, models.QualityFair},
		{0.9, 100, 25, models.QualityPoor},
		{0.2, 100, 2, models.QualityPoor},
		{0, 0, 0, models.QualityPoor},
	}
	for _, tc := range cases {
		est := models.RangeEstimate{DistanceM: tc.dist, Confidence: tc.conf, UncertaintyM: tc.unc}
		assert.Equal(t, tc.want, est.Quality())
	}
}

func TestUncertaintyPercent_ZeroDistance(t *testing.T) {
	est := models.RangeEstimate{DistanceM: 0, UncertaintyM: 5}
	assert.Zero(t, est.UncertaintyPercent())
}

func TestLockedFlag(t *testing.T) {
	assert.True(t, models.RangeEstimate{Confidence: 0.51}.Locked())
	assert.False(t, models.RangeEstimate{Confidence: 0.5}.Locked())
}
