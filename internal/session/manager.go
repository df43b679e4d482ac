package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
)

// Factory builds the pipeline a new session owns.
type Factory func() (Pipeline, error)

// Manager keeps sessions in memory, keyed by a random id. Sessions idle for
// longer than ttl are dropped together with their index; a ttl of 0 keeps
// them forever.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	factory   Factory
	uploadDir string
	ttl       time.Duration
	now       func() time.Time
}

func NewManager(factory Factory, uploadDir string, ttl time.Duration) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		factory:   factory,
		uploadDir: uploadDir,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Lookup returns the live session for id without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictIdle(now)
	s, ok := m.sessions[id]
	if ok {
		s.lastSeen = now
	}
	return s, ok
}

// Get returns the session for id, creating a new one when id is unknown,
// expired or empty. The returned session's ID may differ from id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictIdle(now)
	if s, ok := m.sessions[id]; ok {
		s.lastSeen = now
		return s, nil
	}

	newID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	pipeline, err := m.factory()
	if err != nil {
		return nil, err
	}
	s := New(newID, pipeline, m.uploadDir)
	s.lastSeen = now
	m.sessions[newID] = s
	log.Debug().Str("session", newID).Int("sessions", len(m.sessions)).Msg("Created session")
	return s, nil
}

// evictIdle must be called with m.mu held.
func (m *Manager) evictIdle(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) > m.ttl {
			delete(m.sessions, id)
			log.Debug().Str("session", id).Msg("Evicted idle session")
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
