package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns all live sessions for the process. Exactly one logical
// actor mutates a given session, but sessions come and go concurrently.
type Manager struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create() *Session {
	s := newSession("s_"+uuid.NewString(), time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok {
		s.touch(time.Now())
	}
	return s, ok
}

// Purge drops sessions idle past the TTL and returns how many were
// removed.
func (m *Manager) Purge(now time.Time) int {
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
