package service

import (
	"sync"
	"time"

	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// StateStore holds pending OAuth state values for the duration of one login
// round trip. A state is accepted at most once and only before it expires.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		states: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue generates a fresh state and records it.
func (s *StateStore) Issue() (string, error) {
	state, err := tokens.GenerateState()
	if err != nil {
		return "", err
	}
	s.Put(state)
	return state, nil
}

func (s *StateStore) Put(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = s.now().Add(s.ttl)
}

// TakeIfValid removes state and reports whether it was pending and
// unexpired. A second call with the same state always fails.
func (s *StateStore) TakeIfValid(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return s.now().Before(expiresAt)
}

// Sweep drops expired states and returns how many were removed.
func (s *StateStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for state, expiresAt := range s.states {
		if !now.Before(expiresAt) {
			delete(s.states, state)
			removed++
		}
	}
	return removed
}

func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
