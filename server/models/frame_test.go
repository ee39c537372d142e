package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox_Derived(t *testing.T) {
	b := BoundingBox{X: 100, Y: 200, Width: 30, Height: 40}
	assert.Equal(t, 115.0, b.CenterX())
	assert.Equal(t, 220.0, b.CenterY())
	assert.Equal(t, 50.0, b.Diagonal())
	assert.InDelta(t, 0.75, b.AspectRatio(), 1e-9)
}

func TestBoundingBox_AspectOfZeroHeight(t *testing.T) {
	assert.Zero(t, BoundingBox{Width: 10}.AspectRatio())
}

func TestDepthMap_At(t *testing.T) {
	d := &DepthMap{Width: 2, Height: 2, Values: []float32{1, 2, 3, 4}}

	v, ok := d.At(1, 1)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = d.At(2, 0)
	assert.False(t, ok)
	_, ok = d.At(0, -1)
	assert.False(t, ok)

	var nilMap *DepthMap
	_, ok = nilMap.At(0, 0)
	assert.False(t, ok)
}

func TestDepthMap_Valid(t *testing.T) {
	assert.False(t, (*DepthMap)(nil).Valid())
	assert.False(t, (&DepthMap{Width: 2, Height: 2, Values: make([]float32, 3)}).Valid())
	assert.True(t, (&DepthMap{Width: 2, Height: 2, Values: make([]float32, 4)}).Valid())
}

func TestDistanceUnit_Convert(t *testing.T) {
	assert.Equal(t, 100.0, UnitMeters.Convert(100))
	assert.InDelta(t, 109.36, UnitYards.Convert(100), 0.01)
}

func TestSizeMethodFor_ExhaustiveCategories(t *testing.T) {
	want := map[ObjectCategory]RangeMethod{
		CategoryHuman:     MethodHumanSize,
		CategoryVehicle:   MethodVehicleSize,
		CategoryWildlife:  MethodWildlifeSize,
		CategoryStructure: MethodStructureSize,
		CategorySign:      MethodSignSize,
	}
	for cat, method := range want {
		assert.Equal(t, method, SizeMethodFor(cat))
	}
}

func TestNoEstimate_Sentinel(t *testing.T) {
	e := NoEstimate(testTime())
	assert.Equal(t, MethodNone, e.Method)
	assert.Zero(t, e.DistanceM)
	assert.Zero(t, e.Confidence)
	assert.NotNil(t, e.Components)
	assert.Empty(t, e.Components)
	assert.False(t, e.Locked())
	assert.Equal(t, QualityPoor, e.Quality())
}

func TestUncertaintyPercent(t *testing.T) {
	e := RangeEstimate{DistanceM: 200, UncertaintyM: 10}
	assert.InDelta(t, 5.0, e.UncertaintyPercent(), 1e-9)
	assert.False(t, math.IsNaN(RangeEstimate{}.UncertaintyPercent()))
}

func testTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}
