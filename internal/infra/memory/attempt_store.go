package memory

import (
	"context"
	"sync"

	"studyquiz/internal/domain"
)

// AttemptStore keeps attempt records in insertion order. Appends are idempotent by record id.
type AttemptStore struct {
	mu      sync.RWMutex
	records []domain.AttemptRecord
	ids     map[string]struct{}
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{ids: make(map[string]struct{})}
}

func (s *AttemptStore) Append(_ context.Context, record domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[record.ID]; ok {
		return nil
	}
	s.ids[record.ID] = struct{}{}
	s.records = append(s.records, record)
	return nil
}

func (s *AttemptStore) ListByUser(_ context.Context, userID string) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AttemptRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *AttemptStore) ListAll(_ context.Context) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
