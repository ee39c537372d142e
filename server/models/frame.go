package models

import (
	"math"
	"time"
)

// BoundingBox is a detection box in frame pixels, top-left origin.
// Width and Height are always positive for boxes produced by the detector.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) CenterX() float64 { return b.X + b.Width/2 }
func (b BoundingBox) CenterY() float64 { return b.Y + b.Height/2 }

// Diagonal is the box diagonal in pixels.
func (b BoundingBox) Diagonal() float64 {
	return math.Sqrt(b.Width*b.Width + b.Height*b.Height)
}

// AspectRatio is width over height.
func (b BoundingBox) AspectRatio() float64 {
	if b.Height == 0 {
		return 0
	}
	return b.Width / b.Height
}

// Detection is one labeled object from the external detector. Labels come
// from an open namespace; confidence has already been floored by the
// detector itself.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
	Timestamp  time.Time   `json:"timestamp"`
}

// CameraIntrinsics carries per-axis focal lengths in pixel units.
type CameraIntrinsics struct {
	FocalX float64 `json:"focal_x"`
	FocalY float64 `json:"focal_y"`
}

// DepthMap is a dense single-channel inverse-depth raster (larger = closer),
// co-registered with the frame but not necessarily at frame resolution.
// Values are stored row-major.
type DepthMap struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float32 `json:"values"`
}

// At returns the raster value at (x, y), or false when out of bounds.
func (d *DepthMap) At(x, y int) (float64, bool) {
	if d == nil || x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return 0, false
	}
	i := y*d.Width + x
	if i >= len(d.Values) {
		return 0, false
	}
	return float64(d.Values[i]), true
}

// Valid reports whether the raster has usable dimensions and a full buffer.
func (d *DepthMap) Valid() bool {
	return d != nil && d.Width > 0 && d.Height > 0 && len(d.Values) >= d.Width*d.Height
}

// FrameResult is one camera frame's worth of collaborator output: detections,
// optional depth raster, intrinsics and frame dimensions. Detection order
// carries no meaning. It is transient, consumed within one ranging cycle.
type FrameResult struct {
	Detections  []Detection      `json:"detections"`
	Depth       *DepthMap        `json:"depth,omitempty"`
	Intrinsics  CameraIntrinsics `json:"intrinsics"`
	FrameWidth  int              `json:"frame_width"`
	FrameHeight int              `json:"frame_height"`
	Timestamp   time.Time        `json:"timestamp"`
}
