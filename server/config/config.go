package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/models"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Vision   VisionConfig   `json:"vision"`
	Ranging  RangingConfig  `json:"ranging"`
	Security SecurityConfig `json:"security"`
	Cache    CacheConfig    `json:"cache"`
	Logging  LoggingConfig  `json:"logging"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

type VisionConfig struct {
	BaseURL             string        `json:"base_url"`
	Timeout             time.Duration `json:"timeout"`
	MaxRetries          int           `json:"max_retries"`
	RetryDelay          time.Duration `json:"retry_delay"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

type RangingConfig struct {
	ProcessNoiseVar     float64             `json:"process_noise_var"`
	MeasurementNoiseVar float64             `json:"measurement_noise_var"`
	DepthScale          float64             `json:"depth_scale"`
	DisableSmoothing    bool                `json:"disable_smoothing"`
	SizesFile           string              `json:"sizes_file"`
	DisplayUnit         models.DistanceUnit `json:"display_unit"`
	SessionIdleTTL      time.Duration       `json:"session_idle_ttl"`
	MaxQueueSize        int                 `json:"max_queue_size"`
	MaxWorkers          int                 `json:"max_workers"`
	ProcessTimeout      time.Duration       `json:"process_timeout"`
}

type SecurityConfig struct {
	APIKey         string   `json:"api_key"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	RateLimitBurst int      `json:"rate_limit_burst"`
	MaxRequestSize int64    `json:"max_request_size"`
	EnableHTTPS    bool     `json:"enable_https"`
	CertFile       string   `json:"cert_file"`
	KeyFile        string   `json:"key_file"`
}

type CacheConfig struct {
	MaxItems int           `json:"max_items"`
	TTL      time.Duration `json:"ttl"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func LoadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Vision: VisionConfig{
			BaseURL:             getEnv("VISION_BASE_URL", "http://localhost:5000"),
			Timeout:             getEnvAsDuration("VISION_TIMEOUT", 30*time.Second),
			MaxRetries:          getEnvAsInt("VISION_MAX_RETRIES", 3),
			RetryDelay:          getEnvAsDuration("VISION_RETRY_DELAY", 500*time.Millisecond),
			HealthCheckInterval: getEnvAsDuration("VISION_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Ranging: RangingConfig{
			ProcessNoiseVar:     getEnvAsFloat("RANGING_PROCESS_NOISE_VAR", 0),
			MeasurementNoiseVar: getEnvAsFloat("RANGING_MEASUREMENT_NOISE_VAR", 0),
			DepthScale:          getEnvAsFloat("RANGING_DEPTH_SCALE", 0),
			DisableSmoothing:    getEnvAsBool("RANGING_DISABLE_SMOOTHING", false),
			SizesFile:           getEnv("RANGING_SIZES_FILE", ""),
			DisplayUnit:         models.DistanceUnit(getEnv("RANGING_DISPLAY_UNIT", "m")),
			SessionIdleTTL:      getEnvAsDuration("RANGING_SESSION_IDLE_TTL", 10*time.Minute),
			MaxQueueSize:        getEnvAsInt("RANGING_MAX_QUEUE_SIZE", 100),
			MaxWorkers:          getEnvAsInt("RANGING_MAX_WORKERS", 4),
			ProcessTimeout:      getEnvAsDuration("RANGING_PROCESS_TIMEOUT", 10*time.Second),
		},
		Security: SecurityConfig{
			APIKey:         getEnv("API_KEY", ""),
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 200),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 10*1024*1024), // 10MB
			EnableHTTPS:    getEnvAsBool("ENABLE_HTTPS", false),
			CertFile:       getEnv("CERT_FILE", ""),
			KeyFile:        getEnv("KEY_FILE", ""),
		},
		Cache: CacheConfig{
			MaxItems: getEnvAsInt("CACHE_MAX_ITEMS", 1000),
			TTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config
}

func (c *Config) ValidateConfig(logger *zap.Logger) error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}

	if c.Vision.BaseURL == "" {
		errors = append(errors, "vision base URL is required")
	}

	if c.Ranging.DisplayUnit != models.UnitMeters && c.Ranging.DisplayUnit != models.UnitYards {
		errors = append(errors, "display unit must be m or yd")
	}

	if c.Ranging.MaxQueueSize <= 0 || c.Ranging.MaxWorkers <= 0 {
		errors = append(errors, "queue size and worker count must be positive")
	}

	if c.Security.MaxRequestSize <= 0 {
		errors = append(errors, "max request size must be positive")
	}

	if c.Security.APIKey == "" {
		logger.Warn("API key not set, mutating endpoints are open")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, ", "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
