package session

import (
	"errors"
	"sync"

	"github.com/smarthub-edu/smarthub/internal/quiz"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager tracks the live session for every in-progress attempt. One
// attempt has at most one session; finished sessions remove themselves.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store Submitter
	clock Clock
}

// NewManager builds a manager; a nil clock means wall time.
func NewManager(store Submitter, clock Clock) *Manager {
	return &Manager{
		sessions: map[string]*Session{},
		store:    store,
		clock:    clock,
	}
}

// Start creates and registers a session for a freshly created attempt.
func (m *Manager) Start(att quiz.Attempt, totalQuestions int) *Session {
	opts := []Option{WithOnFinish(m.remove)}
	if m.clock != nil {
		opts = append(opts, WithClock(m.clock))
	}
	s := New(att, totalQuestions, m.store, opts...)
	m.mu.Lock()
	m.sessions[att.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(attemptID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[attemptID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) remove(attemptID string) {
	m.mu.Lock()
	delete(m.sessions, attemptID)
	m.mu.Unlock()
}

// Abandon stops the timer and drops the session without submitting.
func (m *Manager) Abandon(attemptID string) {
	m.mu.Lock()
	s, ok := m.sessions[attemptID]
	delete(m.sessions, attemptID)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
}

// Shutdown disarms every live timer. In-progress attempts stay open in
// the store and can be resumed after restart.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Stop()
		delete(m.sessions, id)
	}
}

// Active reports how many sessions are live.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
