package ranging

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/models"
	"github.com/rangelab/camranger/server/sizedb"
)

// Config carries the engine tunables. Zero values select the defaults.
type Config struct {
	ProcessNoiseVar     float64
	MeasurementNoiseVar float64
	DepthScale          float64

	// DisableSmoothing bypasses the temporal filter; the fused estimate is
	// published as-is.
	DisableSmoothing bool
}

// Engine runs the full ranging cycle for one tracked session: detection
// selection, size and depth ranging, fusion, temporal smoothing. The filter
// state and calibration scale are the only state outliving a frame; a mutex
// enforces the single-writer discipline when the owner shares the instance.
type Engine struct {
	cfg   Config
	sizes sizedb.Lookup
	log   *zap.Logger

	mu          sync.Mutex
	filter      *DistanceFilter
	calib       *Calibration
	staleFrames int
}

func NewEngine(cfg Config, sizes sizedb.Lookup, log *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		sizes:  sizes,
		log:    log,
		filter: NewDistanceFilter(cfg.ProcessNoiseVar, cfg.MeasurementNoiseVar),
		calib:  NewCalibration(cfg.DepthScale),
	}
}

// ProcessFrame runs one ranging cycle. The ok return distinguishes a real
// estimate from the no-signal case; on no signal the smoothed state stays
// untouched so a transient detector dropout doesn't zero the display.
func (e *Engine) ProcessFrame(frame models.FrameResult) (models.RangeEstimate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	primary, hasPrimary := SelectPrimary(frame.Detections, frame.FrameWidth, frame.FrameHeight)

	var components []models.RangeComponent
	for _, det := range frame.Detections {
		size, known := e.sizes.Lookup(det.Label)
		if !known {
			continue
		}
		if c, ok := RangeBySize(det, size, frame.Intrinsics); ok {
			components = append(components, c)
		}
	}

	var depthTarget *models.Detection
	if hasPrimary {
		depthTarget = &primary
	}
	if c, ok := RangeByDepth(frame.Depth, depthTarget, frame.FrameWidth, frame.FrameHeight, e.calib.Scale()); ok {
		components = append(components, c)
	}

	fused, ok := Fuse(components, ts)
	if !ok {
		e.staleFrames++
		return fused, false
	}
	e.staleFrames = 0

	if e.cfg.DisableSmoothing {
		return fused, true
	}

	// The fusion uncertainty is a standard deviation; the filter wants a
	// variance override.
	fused.DistanceM = e.filter.Update(fused.DistanceM, fused.UncertaintyM*fused.UncertaintyM)

	e.log.Debug("frame ranged",
		zap.Float64("distance_m", fused.DistanceM),
		zap.Float64("confidence", fused.Confidence),
		zap.Int("components", len(fused.Components)),
		zap.String("method", string(fused.Method)))

	return fused, true
}

// Calibrate feeds one ground-truth measurement into the scale. A
// non-positive depth sample is rejected rather than silently ignored.
func (e *Engine) Calibrate(knownDistanceM, measuredDepth float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.calib.Calibrate(knownDistanceM, measuredDepth); err != nil {
		return err
	}
	e.log.Info("depth scale calibrated",
		zap.Float64("known_distance_m", knownDistanceM),
		zap.Float64("measured_depth", measuredDepth),
		zap.Float64("scale", e.calib.Scale()))
	return nil
}

// Reset clears the temporal filter. The owner calls this whenever the
// tracked target or scene changes; the engine does no change detection of
// its own.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter.Reset()
	e.staleFrames = 0
}

// DepthScale exposes the active calibration scale.
func (e *Engine) DepthScale() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calib.Scale()
}

// StaleFrames reports how many consecutive frames produced no estimate, so
// the owner can decide the smoothed value has gone stale and reset.
func (e *Engine) StaleFrames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staleFrames
}
