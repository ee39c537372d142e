package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/cache"
	"github.com/rangelab/camranger/server/config"
	"github.com/rangelab/camranger/server/handlers"
	"github.com/rangelab/camranger/server/middleware"
	"github.com/rangelab/camranger/server/processor"
	"github.com/rangelab/camranger/server/ranging"
	"github.com/rangelab/camranger/server/sizedb"
	"github.com/rangelab/camranger/server/vision"
)

type Server struct {
	router         *gin.Engine
	logger         *zap.Logger
	frameProcessor *processor.FrameProcessor
	visionClient   *vision.Client
	rateLimiter    *middleware.RateLimiter
	config         *config.Config
}

func main() {
	cfg := config.LoadConfig()

	var logger *zap.Logger
	var err error

	if cfg.Logging.Format == "json" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := cfg.ValidateConfig(logger); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment))

		var err error
		if cfg.Security.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Security.CertFile, cfg.Security.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The processor shutdown drains the ranging queue and closes the cache.
	if err := server.frameProcessor.Shutdown(); err != nil {
		logger.Error("Failed to shutdown frame processor", zap.Error(err))
	}

	if server.rateLimiter != nil {
		server.rateLimiter.Shutdown()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	cacheInstance := cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.TTL, logger)

	catalog, err := sizedb.LoadCatalog(cfg.Ranging.SizesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load size catalog: %w", err)
	}

	visionClient := vision.NewClient(cfg.Vision.BaseURL, &vision.ClientConfig{
		Timeout:             cfg.Vision.Timeout,
		MaxRetries:          cfg.Vision.MaxRetries,
		RetryDelay:          cfg.Vision.RetryDelay,
		HealthCheckInterval: cfg.Vision.HealthCheckInterval,
	}, logger)

	engineCfg := ranging.Config{
		ProcessNoiseVar:     cfg.Ranging.ProcessNoiseVar,
		MeasurementNoiseVar: cfg.Ranging.MeasurementNoiseVar,
		DepthScale:          cfg.Ranging.DepthScale,
		DisableSmoothing:    cfg.Ranging.DisableSmoothing,
	}

	frameProcessor := processor.NewFrameProcessor(visionClient, engineCfg, catalog, cacheInstance, &processor.Config{
		MaxQueueSize:   cfg.Ranging.MaxQueueSize,
		MaxWorkers:     cfg.Ranging.MaxWorkers,
		ProcessTimeout: cfg.Ranging.ProcessTimeout,
		SessionIdleTTL: cfg.Ranging.SessionIdleTTL,
		EstimateTTL:    cfg.Cache.TTL,
	}, logger)

	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		logger,
	)

	apiKeyAuth := middleware.NewAPIKeyAuth(cfg.Security.APIKey, logger)

	router := gin.New()

	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))

	wsHandler := handlers.NewWebSocketHandler(frameProcessor, cfg.Ranging.DisplayUnit, logger)
	rangeHandler := handlers.NewRangeHandler(frameProcessor, catalog, cfg.Ranging.DisplayUnit, logger)

	setupRoutes(router, wsHandler, rangeHandler, apiKeyAuth, rateLimiter)

	return &Server{
		router:         router,
		logger:         logger,
		frameProcessor: frameProcessor,
		visionClient:   visionClient,
		rateLimiter:    rateLimiter,
		config:         cfg,
	}, nil
}

func setupRoutes(router *gin.Engine, wsHandler *handlers.WebSocketHandler, rangeHandler *handlers.RangeHandler, auth *middleware.APIKeyAuth, rateLimiter *middleware.RateLimiter) {
	router.GET("/health", middleware.HealthCheck())

	router.GET("/ws", rateLimiter.RateLimit(), wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	{
		api.GET("/health", middleware.HealthCheck())

		limited := api.Group("/")
		limited.Use(rateLimiter.RateLimit())
		{
			limited.POST("/analyze-frame", rangeHandler.AnalyzeFrame)
			limited.POST("/range", rangeHandler.RangeFrame)
			limited.GET("/stats", rangeHandler.GetStats)
			limited.GET("/sizes", rangeHandler.ListSizes)
		}

		// Mutating endpoints change per-client ranging state.
		mutating := api.Group("/")
		mutating.Use(rateLimiter.RateLimit())
		mutating.Use(auth.RequireKey())
		{
			mutating.POST("/calibrate", rangeHandler.Calibrate)
			mutating.POST("/reset", rangeHandler.Reset)
		}
	}
}
