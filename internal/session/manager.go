package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager keeps the live sessions and expires idle ones.
type Manager struct {
	pipeline *Pipeline
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(pipeline *Pipeline, ttl time.Duration) *Manager {
	return &Manager{
		pipeline: pipeline,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it when absent.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = New(id, m.pipeline)
		m.sessions[id] = s
		log.Debug().Str("session", id).Msg("Started session")
	}
	m.mu.Unlock()

	s.touch(m.now())
	return s
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes and forgets sessions idle for longer than the TTL.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	// idleSince takes no session lock, so a busy session cannot stall Get
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(ctx); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("Failed to close expired session")
		}
		log.Debug().Str("session", s.ID).Msg("Expired session")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done. Live sessions are left open;
// callers release them with Close once no request can reach them.
func (m *Manager) Run(ctx context.Context) {
	if m.ttl <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(max(m.ttl/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Close releases every session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("Failed to close session")
		}
	}
}
