package cache

import (
	"sync"
	"time"

	"github.com/smarthub-edu/smarthub/internal/eligibility"
	"github.com/smarthub-edu/smarthub/internal/quiz"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Memory is the in-process cache used when no Redis address is
// configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

func (m *Memory) get(key string) (interface{}, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) set(key string, v interface{}, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = entry{value: v, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) del(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *Memory) GetEligibility(userID, courseID string) (eligibility.Record, error) {
	if v, ok := m.get(eligibilityKey(userID, courseID)); ok {
		return v.(eligibility.Record), nil
	}
	return eligibility.Record{}, ErrMiss
}

func (m *Memory) SetEligibility(userID, courseID string, r eligibility.Record, ttl time.Duration) error {
	m.set(eligibilityKey(userID, courseID), r, ttl)
	return nil
}

func (m *Memory) InvalidateEligibility(userID, courseID string) error {
	m.del(eligibilityKey(userID, courseID))
	return nil
}

func (m *Memory) GetStats(userID, courseID string) (quiz.Stats, error) {
	if v, ok := m.get(statsKey(userID, courseID)); ok {
		return v.(quiz.Stats), nil
	}
	return quiz.Stats{}, ErrMiss
}

func (m *Memory) SetStats(userID, courseID string, s quiz.Stats, ttl time.Duration) error {
	m.set(statsKey(userID, courseID), s, ttl)
	return nil
}

func (m *Memory) InvalidateStats(userID, courseID string) error {
	m.del(statsKey(userID, courseID))
	return nil
}

func eligibilityKey(userID, courseID string) string {
	return "eligibility:" + userID + ":" + courseID
}

func statsKey(userID, courseID string) string {
	return "stats:" + userID + ":" + courseID
}
