package ranging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/models"
	"github.com/rangelab/camranger/server/sizedb"
)

func newTestEngine(cfg Config) *Engine {
	return NewEngine(cfg, sizedb.NewCatalog(nil), zap.NewNop())
}

func personFrame() models.FrameResult {
	return models.FrameResult{
		Detections: []models.Detection{
			det("person", 0.9, 933.75, 465, 52.5, 150), // centered in frame
		},
		Intrinsics:  models.CameraIntrinsics{FocalX: 1400, FocalY: 1400},
		FrameWidth:  1920,
		FrameHeight: 1080,
		Timestamp:   time.Now(),
	}
}

func TestEngine_SizeOnlyFrame(t *testing.T) {
	e := newTestEngine(Config{DisableSmoothing: true})

	est, ok := e.ProcessFrame(personFrame())
	require.True(t, ok)

	assert.InDelta(t, 15.8667, est.DistanceM, 0.001)
	assert.InDelta(t, 0.864, est.Confidence, 1e-9)
	assert.Equal(t, models.MethodHumanSize, est.Method)
	assert.Len(t, est.Components, 1)
	assert.True(t, est.Locked())
}

func TestEngine_UnknownLabelContributesNothing(t *testing.T) {
	e := newTestEngine(Config{DisableSmoothing: true})

	frame := personFrame()
	frame.Detections = []models.Detection{det("drone", 0.99, 900, 500, 80, 80)}

	est, ok := e.ProcessFrame(frame)
	assert.False(t, ok)
	assert.Equal(t, models.MethodNone, est.Method)
	assert.Equal(t, 1, e.StaleFrames())
}

func TestEngine_SizePlusDepthFusion(t *testing.T) {
	e := newTestEngine(Config{DisableSmoothing: true, DepthScale: 50})

	frame := personFrame()
	frame.Depth = constantDepth(480, 270, 3.0) // 50/3 ≈ 16.7m, close to size estimate

	est, ok := e.ProcessFrame(frame)
	require.True(t, ok)
	assert.Equal(t, models.MethodFused, est.Method)
	assert.Len(t, est.Components, 2)
	assert.Greater(t, est.DistanceM, 15.0)
	assert.Less(t, est.DistanceM, 17.0)
}

func TestEngine_EmptyFrameLeavesFilterAlone(t *testing.T) {
	e := newTestEngine(Config{})

	first, ok := e.ProcessFrame(personFrame())
	require.True(t, ok)

	// Two dropout frames: no estimate, filter untouched, staleness grows.
	for i := 1; i <= 2; i++ {
		_, ok := e.ProcessFrame(models.FrameResult{FrameWidth: 1920, FrameHeight: 1080, Timestamp: time.Now()})
		assert.False(t, ok)
		assert.Equal(t, i, e.StaleFrames())
	}

	// The next real frame continues from the prior smoothed state rather
	// than restarting from zero.
	second, ok := e.ProcessFrame(personFrame())
	require.True(t, ok)
	assert.InDelta(t, first.DistanceM, second.DistanceM, first.DistanceM*0.1)
	assert.Zero(t, e.StaleFrames())
}

func TestEngine_SmoothingConvergesAcrossFrames(t *testing.T) {
	e := newTestEngine(Config{})

	var est models.RangeEstimate
	for i := 0; i < 30; i++ {
		var ok bool
		est, ok = e.ProcessFrame(personFrame())
		require.True(t, ok)
	}
	assert.InDelta(t, 15.8667, est.DistanceM, 15.8667*0.01)
}

func TestEngine_ResetClearsFilter(t *testing.T) {
	e := newTestEngine(Config{})
	_, ok := e.ProcessFrame(personFrame())
	require.True(t, ok)

	e.Reset()

	// After reset the first frame re-converges from the uninformative
	// prior, so the estimate is again dominated by the measurement.
	est, ok := e.ProcessFrame(personFrame())
	require.True(t, ok)
	assert.InDelta(t, 15.8667, est.DistanceM, 1.0)
}

func TestEngine_CalibrationFlowsIntoDepthRanging(t *testing.T) {
	e := newTestEngine(Config{DisableSmoothing: true})
	require.NoError(t, e.Calibrate(100, 0.5)) // scale 50

	frame := models.FrameResult{
		Depth:       constantDepth(256, 256, 0.5),
		FrameWidth:  1920,
		FrameHeight: 1080,
		Timestamp:   time.Now(),
	}
	est, ok := e.ProcessFrame(frame)
	require.True(t, ok)
	assert.Equal(t, models.MethodDepth, est.Method)
	assert.InDelta(t, 100.0, est.DistanceM, 1e-9)
	assert.Equal(t, 0.5, est.Confidence)
	assert.False(t, est.Locked())
}

func TestEngine_CalibrateRejectsBadSample(t *testing.T) {
	e := newTestEngine(Config{})
	before := e.DepthScale()
	assert.Error(t, e.Calibrate(50, 0))
	assert.Equal(t, before, e.DepthScale())
}
