package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/cache"
	"github.com/rangelab/camranger/server/models"
	"github.com/rangelab/camranger/server/ranging"
	"github.com/rangelab/camranger/server/sizedb"
)

// Inferrer is the slice of the vision client the processor needs; tests
// substitute a stub.
type Inferrer interface {
	InferFrame(imageData []byte, ts time.Time) (models.FrameResult, error)
}

// FrameProcessor orchestrates ranging: it owns the session manager, the
// worker queue, and the latest-estimate cache. The upstream collaborator is
// expected to throttle frame delivery; the processor only guards itself
// with the bounded queue.
type FrameProcessor struct {
	vision Inferrer
	logger *zap.Logger
	queue  *RangingQueue
	config *Config

	sessions *SessionManager
	cache    cache.Cache
	stats    *statsTracker

	ctx    context.Context
	cancel context.CancelFunc
}

type Config struct {
	MaxQueueSize   int
	MaxWorkers     int
	ProcessTimeout time.Duration
	SessionIdleTTL time.Duration
	EstimateTTL    time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MaxQueueSize:   100,
		MaxWorkers:     4,
		ProcessTimeout: 10 * time.Second,
		SessionIdleTTL: 10 * time.Minute,
		EstimateTTL:    time.Minute,
	}
}

func NewFrameProcessor(vision Inferrer, engineCfg ranging.Config, sizes sizedb.Lookup, cacheInstance cache.Cache, cfg *Config, logger *zap.Logger) *FrameProcessor {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &FrameProcessor{
		vision:   vision,
		logger:   logger,
		config:   cfg,
		sessions: NewSessionManager(engineCfg, sizes, cfg.SessionIdleTTL, logger),
		cache:    cacheInstance,
		stats:    newStatsTracker(),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.queue = NewRangingQueue(cfg.MaxQueueSize, cfg.MaxWorkers, p.rangeFrame)

	return p
}

// ProcessImage runs the external detector/depth service on an encoded frame
// and then ranges the result for the client's session.
func (p *FrameProcessor) ProcessImage(clientID string, imageData []byte, ts time.Time) (models.RangeEstimate, bool, error) {
	if p.vision == nil {
		return models.RangeEstimate{}, false, fmt.Errorf("no vision service configured")
	}

	frame, err := p.vision.InferFrame(imageData, ts)
	if err != nil {
		p.stats.fail()
		return models.RangeEstimate{}, false, err
	}
	return p.RangeFrame(clientID, frame)
}

// RangeFrame runs one ranging cycle for a pre-built frame result. The bool
// mirrors the engine's signal/no-signal discriminator.
func (p *FrameProcessor) RangeFrame(clientID string, frame models.FrameResult) (models.RangeEstimate, bool, error) {
	start := time.Now()
	p.stats.frame()

	session := p.sessions.Acquire(clientID)

	resultChan := make(chan *RangingResult, 1)
	item := &QueueItem{
		Session:    session,
		Frame:      frame,
		ResultChan: resultChan,
		StartTime:  start,
	}

	if !p.queue.Enqueue(item) {
		p.stats.fail()
		return models.RangeEstimate{}, false, fmt.Errorf("ranging queue full, try again later")
	}

	select {
	case result := <-resultChan:
		if result.Error != nil {
			p.stats.fail()
			return models.RangeEstimate{}, false, result.Error
		}

		p.stats.done(time.Since(start), result.OK)

		if result.OK && p.cache != nil {
			key := estimateKey(clientID)
			if err := p.cache.SetWithTTL(p.ctx, key, result.Estimate, p.config.EstimateTTL); err != nil {
				p.logger.Warn("failed to cache estimate", zap.Error(err))
			}
		}
		return result.Estimate, result.OK, nil

	case <-time.After(p.config.ProcessTimeout):
		p.stats.fail()
		return models.RangeEstimate{}, false, fmt.Errorf("ranging timeout")
	}
}

// rangeFrame is the queue worker body.
func (p *FrameProcessor) rangeFrame(item *QueueItem) {
	estimate, ok := item.Session.Engine.ProcessFrame(item.Frame)
	item.ResultChan <- &RangingResult{Estimate: estimate, OK: ok}
}

// LatestEstimate returns the most recently published estimate for a client,
// if one is still fresh.
func (p *FrameProcessor) LatestEstimate(clientID string) (models.RangeEstimate, bool) {
	if p.cache == nil {
		return models.RangeEstimate{}, false
	}
	v, err := p.cache.Get(p.ctx, estimateKey(clientID))
	if err != nil {
		return models.RangeEstimate{}, false
	}
	est, ok := v.(models.RangeEstimate)
	return est, ok
}

// Calibrate updates the depth scale of the client's engine.
func (p *FrameProcessor) Calibrate(clientID string, knownDistanceM, measuredDepth float64) error {
	session := p.sessions.Acquire(clientID)
	return session.Engine.Calibrate(knownDistanceM, measuredDepth)
}

// ResetSession clears the client's temporal filter. Called when the user
// re-aims at a different target; without it the smoothed distance would
// bleed across targets.
func (p *FrameProcessor) ResetSession(clientID string) bool {
	session, ok := p.sessions.Lookup(clientID)
	if !ok {
		return false
	}
	session.Engine.Reset()
	if p.cache != nil {
		_ = p.cache.Delete(p.ctx, estimateKey(clientID))
	}
	return true
}

// GetStats snapshots the processor counters.
func (p *FrameProcessor) GetStats() Stats {
	s := p.stats.snapshot()
	s.QueueSize = p.queue.Size()
	s.ActiveSessions = p.sessions.Count()
	return s
}

// GetCacheStats exposes the estimate cache's internals.
func (p *FrameProcessor) GetCacheStats() (*cache.Stats, error) {
	if p.cache == nil {
		return nil, fmt.Errorf("cache not initialized")
	}
	return p.cache.GetStats(p.ctx)
}

// Shutdown drains the pipeline.
func (p *FrameProcessor) Shutdown() error {
	p.logger.Info("shutting down frame processor")

	p.cancel()
	p.sessions.Close()

	if err := p.queue.Shutdown(30 * time.Second); err != nil {
		p.logger.Error("failed to shutdown ranging queue", zap.Error(err))
		return err
	}

	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			p.logger.Error("failed to close cache", zap.Error(err))
			return err
		}
	}

	p.logger.Info("frame processor shutdown complete")
	return nil
}

func estimateKey(clientID string) string {
	return "estimate:" + clientID
}
