package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5000", cfg.Vision.BaseURL)
	assert.Equal(t, models.UnitMeters, cfg.Ranging.DisplayUnit)
	assert.Equal(t, 100, cfg.Ranging.MaxQueueSize)
	assert.Equal(t, 4, cfg.Ranging.MaxWorkers)
	assert.Equal(t, 10*time.Minute, cfg.Ranging.SessionIdleTTL)
	assert.False(t, cfg.Ranging.DisableSmoothing)
	assert.Equal(t, int64(10*1024*1024), cfg.Security.MaxRequestSize)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("VISION_BASE_URL", "http://vision:5000")
	t.Setenv("RANGING_DISPLAY_UNIT", "yd")
	t.Setenv("RANGING_DEPTH_SCALE", "12.5")
	t.Setenv("RANGING_DISABLE_SMOOTHING", "true")
	t.Setenv("RANGING_SESSION_IDLE_TTL", "5m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://vision:5000", cfg.Vision.BaseURL)
	assert.Equal(t, models.UnitYards, cfg.Ranging.DisplayUnit)
	assert.InDelta(t, 12.5, cfg.Ranging.DepthScale, 0.001)
	assert.True(t, cfg.Ranging.DisableSmoothing)
	assert.Equal(t, 5*time.Minute, cfg.Ranging.SessionIdleTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("RANGING_DEPTH_SCALE", "twelve")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.0, cfg.Ranging.DepthScale)
}

func TestValidateConfig(t *testing.T) {
	logger := zap.NewNop()

	cfg := LoadConfig()
	require.NoError(t, cfg.ValidateConfig(logger))

	cfg.Server.Port = 0
	assert.Error(t, cfg.ValidateConfig(logger))

	cfg = LoadConfig()
	cfg.Vision.BaseURL = ""
	assert.Error(t, cfg.ValidateConfig(logger))

	cfg = LoadConfig()
	cfg.Ranging.DisplayUnit = "furlongs"
	assert.Error(t, cfg.ValidateConfig(logger))

	cfg = LoadConfig()
	cfg.Ranging.MaxWorkers = 0
	assert.Error(t, cfg.ValidateConfig(logger))
}
