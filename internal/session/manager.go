package session

import (
	"sync"

	"github.com/oggyb/devmatch/internal/domain"
)

// Manager hands out one Session per user.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	deps.defaults()
	return &Manager{deps: deps, sessions: make(map[string]*Session)}
}

// Get returns the user's session, creating an idle one on first use.
func (m *Manager) Get(userID string) (*Session, error) {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	s, err := New(userID, m.deps)
	if err != nil {
		return nil, err
	}
	m.sessions[userID] = s
	return s, nil
}

// Drop forgets the user's session; the next Get starts from an empty deck.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
