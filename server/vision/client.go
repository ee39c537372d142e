// Package vision talks to the external detector/depth-estimator service.
// The neural nets, their scheduling and frame throttling all live on that
// side; this client only ships a frame over and reshapes the answer into a
// FrameResult.
package vision

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     *ClientConfig
}

type ClientConfig struct {
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
	HealthCheckInterval time.Duration
}

// inferRequest is the wire request: one encoded frame plus capture metadata.
type inferRequest struct {
	ImageData []byte `json:"image_data"`
	Timestamp int64  `json:"timestamp"`
	WantDepth bool   `json:"want_depth"`
}

// inferResponse is the collaborator's answer. The depth raster arrives as
// base64-packed little-endian float32s to keep the JSON body sane.
type inferResponse struct {
	Detections []wireDetection `json:"detections"`
	Depth      *wireDepth      `json:"depth,omitempty"`
	FocalX     float64         `json:"focal_x"`
	FocalY     float64         `json:"focal_y"`
	Width      int             `json:"frame_width"`
	Height     int             `json:"frame_height"`
	Timestamp  int64           `json:"timestamp"`
}

type wireDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

type wireDepth struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   string `json:"data"` // base64 little-endian float32, row-major
}

func NewClient(baseURL string, cfg *ClientConfig, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = &ClientConfig{
			Timeout:             10 * time.Second,
			MaxRetries:          3,
			RetryDelay:          500 * time.Millisecond,
			HealthCheckInterval: 30 * time.Second,
		}
	}

	client := &Client{
		baseURL: baseURL,
		logger:  logger,
		config:  cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
	}

	if err := client.HealthCheck(); err != nil {
		logger.Warn("vision service not available at startup", zap.Error(err))
	}
	go client.startHealthChecker()

	return client
}

// InferFrame runs detection and depth estimation on one encoded frame,
// retrying transient failures with linear backoff.
func (c *Client) InferFrame(imageData []byte, ts time.Time) (models.FrameResult, error) {
	req := &inferRequest{
		ImageData: imageData,
		Timestamp: ts.UnixMilli(),
		WantDepth: true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying vision inference",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			time.Sleep(c.config.RetryDelay * time.Duration(attempt))
		}

		frame, err := c.executeInfer(req)
		if err == nil {
			return frame, nil
		}
		lastErr = err
	}

	return models.FrameResult{}, fmt.Errorf("vision inference failed after %d attempts: %w",
		c.config.MaxRetries, lastErr)
}

func (c *Client) executeInfer(req *inferRequest) (models.FrameResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.FrameResult{}, fmt.Errorf("marshaling infer request: %w", err)
	}

	url := fmt.Sprintf("%s/infer", c.baseURL)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return models.FrameResult{}, fmt.Errorf("creating infer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "camranger/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.FrameResult{}, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return models.FrameResult{}, fmt.Errorf("vision service error (status %d): %s",
			resp.StatusCode, string(msg))
	}

	var wire inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return models.FrameResult{}, fmt.Errorf("decoding infer response: %w", err)
	}

	return c.convertResponse(&wire)
}

func (c *Client) convertResponse(wire *inferResponse) (models.FrameResult, error) {
	frame := models.FrameResult{
		Intrinsics:  models.CameraIntrinsics{FocalX: wire.FocalX, FocalY: wire.FocalY},
		FrameWidth:  wire.Width,
		FrameHeight: wire.Height,
		Timestamp:   time.UnixMilli(wire.Timestamp),
	}

	for _, d := range wire.Detections {
		if d.Width <= 0 || d.Height <= 0 {
			c.logger.Warn("dropping degenerate detection box", zap.String("label", d.Label))
			continue
		}
		frame.Detections = append(frame.Detections, models.Detection{
			Label:      d.Label,
			Confidence: d.Confidence,
			Box:        models.BoundingBox{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height},
			Timestamp:  frame.Timestamp,
		})
	}

	if wire.Depth != nil {
		depth, err := decodeDepth(wire.Depth)
		if err != nil {
			return models.FrameResult{}, fmt.Errorf("decoding depth raster: %w", err)
		}
		frame.Depth = depth
	}

	return frame, nil
}

// decodeDepth unpacks the base64 float32 raster and checks it against the
// advertised dimensions.
func decodeDepth(wire *wireDepth) (*models.DepthMap, error) {
	if wire.Width <= 0 || wire.Height <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", wire.Width, wire.Height)
	}

	raw, err := base64.StdEncoding.DecodeString(wire.Data)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	want := wire.Width * wire.Height
	if len(raw) != want*4 {
		return nil, fmt.Errorf("raster payload is %d bytes, want %d", len(raw), want*4)
	}

	values := make([]float32, want)
	for i := range values {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		values[i] = math.Float32frombits(bits)
	}

	return &models.DepthMap{Width: wire.Width, Height: wire.Height, Values: values}, nil
}

func (c *Client) HealthCheck() error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

func (c *Client) startHealthChecker() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.HealthCheck(); err != nil {
			c.logger.Error("vision service health check failed", zap.Error(err))
		} else {
			c.logger.Debug("vision service health check passed")
		}
	}
}
