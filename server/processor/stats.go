package processor

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of the processor counters.
type Stats struct {
	FramesReceived int64         `json:"frames_received"`
	FramesRanged   int64         `json:"frames_ranged"`
	FramesStale    int64         `json:"frames_stale"`
	FramesFailed   int64         `json:"frames_failed"`
	AverageLatency time.Duration `json:"average_latency"`
	QueueSize      int           `json:"queue_size"`
	ActiveSessions int           `json:"active_sessions"`
}

type statsTracker struct {
	mu sync.Mutex

	framesReceived int64
	framesRanged   int64
	framesStale    int64
	framesFailed   int64
	totalLatency   time.Duration
	completed      int64
}

func newStatsTracker() *statsTracker {
	return &statsTracker{}
}

func (s *statsTracker) frame() {
	s.mu.Lock()
	s.framesReceived++
	s.mu.Unlock()
}

func (s *statsTracker) fail() {
	s.mu.Lock()
	s.framesFailed++
	s.mu.Unlock()
}

func (s *statsTracker) done(latency time.Duration, ok bool) {
	s.mu.Lock()
	if ok {
		s.framesRanged++
	} else {
		s.framesStale++
	}
	s.completed++
	s.totalLatency += latency
	s.mu.Unlock()
}

func (s *statsTracker) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{
		FramesReceived: s.framesReceived,
		FramesRanged:   s.framesRanged,
		FramesStale:    s.framesStale,
		FramesFailed:   s.framesFailed,
	}
	if s.completed > 0 {
		out.AverageLatency = s.totalLatency / time.Duration(s.completed)
	}
	return out
}
