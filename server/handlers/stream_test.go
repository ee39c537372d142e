package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/cache"
	"github.com/rangelab/camranger/server/models"
	"github.com/rangelab/camranger/server/processor"
	"github.com/rangelab/camranger/server/ranging"
	"github.com/rangelab/camranger/server/sizedb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(t *testing.T, unit models.DistanceUnit) *RangeHandler {
	t.Helper()
	catalog := sizedb.NewCatalog(nil)
	mem := cache.NewMemoryCache(100, time.Minute, zap.NewNop())
	p := processor.NewFrameProcessor(nil, ranging.Config{DisableSmoothing: true}, catalog, mem, nil, zap.NewNop())
	t.Cleanup(func() { _ = p.Shutdown() })
	return NewRangeHandler(p, catalog, unit, zap.NewNop())
}

func personFrameJSON(t *testing.T) []byte {
	t.Helper()
	frame := models.FrameResult{
		Detections: []models.Detection{
			{
				Label:      "person",
				Confidence: 0.9,
				Box:        models.BoundingBox{X: 933.75, Y: 465, Width: 52.5, Height: 150},
			},
		},
		Intrinsics:  models.CameraIntrinsics{FocalX: 1400, FocalY: 1400},
		FrameWidth:  1920,
		FrameHeight: 1080,
		Timestamp:   time.Now(),
	}
	body, err := json.Marshal(frame)
	require.NoError(t, err)
	return body
}

func doJSON(handler gin.HandlerFunc, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestRangeFrameEndpoint(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	w := doJSON(h.RangeFrame, http.MethodPost, "/api/v1/range", personFrameJSON(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Range map[string]any `json:"range"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, true, resp.Range["has_target"])
	assert.InDelta(t, 15.8667, resp.Range["distance"].(float64), 0.01)
	assert.Equal(t, "m", resp.Range["unit"])
	assert.Equal(t, "human_size", resp.Range["method"])
	assert.Equal(t, true, resp.Range["locked"])
	assert.NotEmpty(t, resp.Range["quality"])
}

func TestRangeFrameEndpointYards(t *testing.T) {
	h := newTestHandler(t, models.UnitYards)

	w := doJSON(h.RangeFrame, http.MethodPost, "/api/v1/range", personFrameJSON(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Range map[string]any `json:"range"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "yd", resp.Range["unit"])
	assert.InDelta(t, 17.352, resp.Range["distance"].(float64), 0.01)
}

func TestRangeFrameEndpointNoTarget(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	frame := models.FrameResult{FrameWidth: 1920, FrameHeight: 1080, Timestamp: time.Now()}
	body, err := json.Marshal(frame)
	require.NoError(t, err)

	w := doJSON(h.RangeFrame, http.MethodPost, "/api/v1/range", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Range map[string]any `json:"range"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, false, resp.Range["has_target"])
	assert.Equal(t, "none", resp.Range["method"])
}

func TestRangeFrameEndpointRejectsBadPayload(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	w := doJSON(h.RangeFrame, http.MethodPost, "/api/v1/range", []byte("not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing frame dimensions.
	w = doJSON(h.RangeFrame, http.MethodPost, "/api/v1/range", []byte(`{"detections":[]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeFrameRejectsBadImage(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	body, err := json.Marshal(FrameUploadRequest{ImageData: "data:image/jpeg;base64,!!!not-base64!!!"})
	require.NoError(t, err)

	w := doJSON(h.AnalyzeFrame, http.MethodPost, "/api/v1/analyze-frame", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeFrameWithoutVisionService(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	encoded := base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
	body, err := json.Marshal(FrameUploadRequest{ImageData: "data:image/jpeg;base64," + encoded})
	require.NoError(t, err)

	w := doJSON(h.AnalyzeFrame, http.MethodPost, "/api/v1/analyze-frame", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCalibrateEndpoint(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	body, err := json.Marshal(CalibrationRequest{KnownDistanceM: 30, MeasuredDepth: 0.4})
	require.NoError(t, err)

	w := doJSON(h.Calibrate, http.MethodPost, "/api/v1/calibrate", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "calibrated", resp["status"])
}

func TestCalibrateEndpointRejectsBadSample(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	tests := []struct {
		name string
		body string
	}{
		{"negative distance", `{"known_distance_m":-5,"measured_depth":0.4}`},
		{"missing depth", `{"known_distance_m":30}`},
		{"garbage", `town hall`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(h.Calibrate, http.MethodPost, "/api/v1/calibrate", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestResetEndpoint(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	w := doJSON(h.Reset, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "reset", resp["status"])
	assert.Equal(t, false, resp["session_existed"])
}

func TestListSizesEndpoint(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	w := doJSON(h.ListSizes, http.MethodGet, "/api/v1/sizes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
		Sizes []struct {
			Label string  `json:"label"`
			SizeM float64 `json:"size_m"`
		} `json:"sizes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Greater(t, resp.Count, 0)
	found := false
	for _, s := range resp.Sizes {
		if s.Label == "person" {
			found = true
			assert.InDelta(t, 1.70, s.SizeM, 0.001)
		}
	}
	assert.True(t, found, "person should be in the builtin catalog")
}

func TestStatsEndpoint(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	// One good frame so the counters move.
	w := doJSON(h.RangeFrame, http.MethodPost, "/api/v1/range", personFrameJSON(t))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(h.GetStats, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		System  SystemStats    `json:"system"`
		Metrics map[string]any `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, int64(1), resp.System.TotalRequests)
	assert.Equal(t, int64(1), resp.System.ProcessedOK)
	assert.InDelta(t, 100.0, resp.Metrics["success_rate"].(float64), 0.001)
}

func TestExtractImageData(t *testing.T) {
	h := newTestHandler(t, models.UnitMeters)

	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	encoded := base64.StdEncoding.EncodeToString(raw)

	// Data URL form.
	got, err := h.extractImageData(fmt.Sprintf("data:image/jpeg;base64,%s", encoded))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// Bare base64 form.
	got, err = h.extractImageData(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = h.extractImageData("a,b,c")
	assert.Error(t, err)
}
