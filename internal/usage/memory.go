package usage

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID), nil
}

func (s *MemoryStore) Increment(_ context.Context, userID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getLocked(userID)
	st.AdsUsed++
	s.states[userID] = st
	return st, nil
}

func (s *MemoryStore) Upgrade(_ context.Context, userID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Plan: PlanPremium}
	s.states[userID] = st
	return st, nil
}

func (s *MemoryStore) getLocked(userID string) State {
	st, ok := s.states[userID]
	if !ok {
		return State{Plan: PlanFree}
	}
	return st
}
