package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/models"
	"github.com/rangelab/camranger/server/processor"
	"github.com/rangelab/camranger/server/sizedb"
)

type RangeHandler struct {
	processor *processor.FrameProcessor
	catalog   *sizedb.Catalog
	logger    *zap.Logger
	unit      models.DistanceUnit
	stats     *SystemStats
	startTime time.Time
}

type SystemStats struct {
	TotalRequests  int64     `json:"total_requests"`
	ProcessedOK    int64     `json:"processed_ok"`
	ProcessedError int64     `json:"processed_error"`
	AvgProcessTime float64   `json:"avg_process_time_ms"`
	LastUpdated    time.Time `json:"last_updated"`
}

type FrameUploadRequest struct {
	ImageData string `json:"image_data" binding:"required"`
	Timestamp int64  `json:"timestamp"`
}

type CalibrationRequest struct {
	KnownDistanceM float64 `json:"known_distance_m" binding:"required"`
	MeasuredDepth  float64 `json:"measured_depth" binding:"required"`
}

func NewRangeHandler(processor *processor.FrameProcessor, catalog *sizedb.Catalog, unit models.DistanceUnit, logger *zap.Logger) *RangeHandler {
	if unit == "" {
		unit = models.UnitMeters
	}
	return &RangeHandler{
		processor: processor,
		catalog:   catalog,
		logger:    logger,
		unit:      unit,
		stats: &SystemStats{
			LastUpdated: time.Now(),
		},
		startTime: time.Now(),
	}
}

// AnalyzeFrame accepts an encoded camera frame, runs detection and depth
// through the vision service, and returns the ranged estimate.
func (h *RangeHandler) AnalyzeFrame(c *gin.Context) {
	startTime := time.Now()
	h.stats.TotalRequests++

	var request FrameUploadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Error("invalid request format", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		h.stats.ProcessedError++
		return
	}

	imageData, err := h.extractImageData(request.ImageData)
	if err != nil {
		h.logger.Error("failed to decode image data", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data"})
		h.stats.ProcessedError++
		return
	}

	ts := time.Now()
	if request.Timestamp > 0 {
		ts = time.UnixMilli(request.Timestamp)
	}

	estimate, ok, err := h.processor.ProcessImage(c.ClientIP(), imageData, ts)
	if err != nil {
		h.logger.Error("frame analysis failed",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		h.stats.ProcessedError++
		return
	}

	processingTime := time.Since(startTime)
	h.updateProcessingStats(processingTime)
	h.stats.ProcessedOK++

	c.JSON(http.StatusOK, gin.H{
		"range":           estimatePayload(estimate, ok, h.unit),
		"processing_time": processingTime.Milliseconds(),
		"timestamp":       time.Now().Unix(),
	})
}

// RangeFrame ranges a pre-built frame result, for clients that run their own
// detector and depth model on-device and only need the estimation pipeline.
func (h *RangeHandler) RangeFrame(c *gin.Context) {
	startTime := time.Now()
	h.stats.TotalRequests++

	var frame models.FrameResult
	if err := c.ShouldBindJSON(&frame); err != nil {
		h.logger.Error("invalid frame format", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid frame format"})
		h.stats.ProcessedError++
		return
	}

	if frame.FrameWidth <= 0 || frame.FrameHeight <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Frame dimensions required"})
		h.stats.ProcessedError++
		return
	}

	estimate, ok, err := h.processor.RangeFrame(c.ClientIP(), frame)
	if err != nil {
		h.logger.Error("frame ranging failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		h.stats.ProcessedError++
		return
	}

	processingTime := time.Since(startTime)
	h.updateProcessingStats(processingTime)
	h.stats.ProcessedOK++

	c.JSON(http.StatusOK, gin.H{
		"range":           estimatePayload(estimate, ok, h.unit),
		"processing_time": processingTime.Milliseconds(),
		"timestamp":       time.Now().Unix(),
	})
}

// Calibrate anchors the client's depth scale to a ground-truth distance.
func (h *RangeHandler) Calibrate(c *gin.Context) {
	var request CalibrationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid calibration request"})
		return
	}

	if err := h.processor.Calibrate(c.ClientIP(), request.KnownDistanceM, request.MeasuredDepth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "calibrated",
		"known_distance_m": request.KnownDistanceM,
		"measured_depth":   request.MeasuredDepth,
	})
}

// Reset clears the client's temporal filter, for when the user re-aims at a
// new target.
func (h *RangeHandler) Reset(c *gin.Context) {
	existed := h.processor.ResetSession(c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"status":          "reset",
		"session_existed": existed,
	})
}

func (h *RangeHandler) GetStats(c *gin.Context) {
	h.stats.LastUpdated = time.Now()

	var successRate, errorRate float64
	if h.stats.TotalRequests > 0 {
		successRate = float64(h.stats.ProcessedOK) / float64(h.stats.TotalRequests) * 100
		errorRate = float64(h.stats.ProcessedError) / float64(h.stats.TotalRequests) * 100
	}

	processorStats := h.processor.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"system":    h.stats,
		"processor": processorStats,
		"metrics": gin.H{
			"success_rate":   successRate,
			"error_rate":     errorRate,
			"uptime_seconds": time.Since(h.startTime).Seconds(),
		},
	})
}

// ListSizes dumps the size catalog so clients can show which labels are
// rangeable.
func (h *RangeHandler) ListSizes(c *gin.Context) {
	sizes := h.catalog.List()

	entries := make([]gin.H, 0, len(sizes))
	for _, s := range sizes {
		entries = append(entries, gin.H{
			"label":       s.Label,
			"category":    s.Category.String(),
			"axis":        s.Axis.String(),
			"size_m":      s.SizeMeters,
			"variability": s.Variability,
			"reliability": s.Reliability,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(entries),
		"sizes": entries,
	})
}

// estimatePayload renders an estimate for the wire, converting to the given
// display unit. Shared by the REST and websocket transports so both speak
// the same shape.
func estimatePayload(est models.RangeEstimate, ok bool, unit models.DistanceUnit) map[string]any {
	if !ok {
		return map[string]any{
			"has_target": false,
			"method":     string(models.MethodNone),
			"timestamp":  est.Timestamp,
		}
	}

	return map[string]any{
		"has_target":          true,
		"distance":            unit.Convert(est.DistanceM),
		"uncertainty":         unit.Convert(est.UncertaintyM),
		"unit":                string(unit),
		"confidence":          est.Confidence,
		"method":              string(est.Method),
		"quality":             string(est.Quality()),
		"locked":              est.Locked(),
		"uncertainty_percent": est.UncertaintyPercent(),
		"components":          est.Components,
		"timestamp":           est.Timestamp,
	}
}

func (h *RangeHandler) extractImageData(dataURL string) ([]byte, error) {
	payload := dataURL
	if strings.Contains(dataURL, ",") {
		parts := strings.Split(dataURL, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid data URL format")
		}
		payload = parts[1]
	}

	imageData, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}

	return imageData, nil
}

func (h *RangeHandler) updateProcessingStats(duration time.Duration) {
	currentTime := float64(duration.Milliseconds())

	if h.stats.AvgProcessTime == 0 {
		h.stats.AvgProcessTime = currentTime
	} else {
		alpha := 0.1
		h.stats.AvgProcessTime = alpha*currentTime + (1-alpha)*h.stats.AvgProcessTime
	}
}
