package processor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rangelab/camranger/server/ranging"
	"github.com/rangelab/camranger/server/sizedb"
)

// Session pairs one client with one ranging engine. The engine owns the only
// cross-frame state (filter + calibration scale); the session tracks
// lifecycle bookkeeping around it.
type Session struct {
	ID       string
	ClientID string
	Engine   *ranging.Engine

	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	frames   int64
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.frames++
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// SessionManager owns the client→session map and expires idle sessions so
// abandoned engines don't pile up.
type SessionManager struct {
	engineCfg ranging.Config
	sizes     sizedb.Lookup
	logger    *zap.Logger
	idleTTL   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	janitor *time.Ticker
	stopCh  chan struct{}
}

func NewSessionManager(engineCfg ranging.Config, sizes sizedb.Lookup, idleTTL time.Duration, logger *zap.Logger) *SessionManager {
	m := &SessionManager{
		engineCfg: engineCfg,
		sizes:     sizes,
		logger:    logger,
		idleTTL:   idleTTL,
		sessions:  make(map[string]*Session),
		janitor:   time.NewTicker(time.Minute),
		stopCh:    make(chan struct{}),
	}
	go m.expireIdle()
	return m
}

// Acquire returns the client's session, creating it on first contact.
func (m *SessionManager) Acquire(clientID string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[clientID]
	m.mu.RUnlock()
	if ok {
		s.Touch()
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[clientID]; ok {
		s.Touch()
		return s
	}

	s = &Session{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Engine:    ranging.NewEngine(m.engineCfg, m.sizes, m.logger),
		CreatedAt: time.Now(),
		lastSeen:  time.Now(),
	}
	m.sessions[clientID] = s
	m.logger.Info("ranging session created",
		zap.String("session_id", s.ID),
		zap.String("client_id", clientID))
	return s
}

// Lookup returns the session without creating one.
func (m *SessionManager) Lookup(clientID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[clientID]
	return s, ok
}

// Drop removes a client's session entirely.
func (m *SessionManager) Drop(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, clientID)
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) Close() {
	m.janitor.Stop()
	close(m.stopCh)
}

func (m *SessionManager) expireIdle() {
	for {
		select {
		case <-m.janitor.C:
			now := time.Now()
			m.mu.Lock()
			for id, s := range m.sessions {
				if now.Sub(s.LastSeen()) > m.idleTTL {
					delete(m.sessions, id)
					m.logger.Info("ranging session expired",
						zap.String("session_id", s.ID),
						zap.String("client_id", id))
				}
			}
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}
