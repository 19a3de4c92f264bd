package history

import (
	"context"
	"sync"

	"adgen/internal/creative"
)

type MemoryStore struct {
	mu      sync.Mutex
	limit   int
	records map[string][]creative.AdRecord
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{limit: limit, records: make(map[string][]creative.AdRecord)}
}

func (s *MemoryStore) Append(_ context.Context, rec creative.AdRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]creative.AdRecord{rec}, s.records[rec.UserID]...)
	if len(list) > s.limit {
		list = list[:s.limit]
	}
	s.records[rec.UserID] = list
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string, limit int) ([]creative.AdRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.records[userID]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]creative.AdRecord, len(list))
	copy(out, list)
	return out, nil
}
