package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"studyquiz/internal/domain"
)

type badgeKey struct {
	userID  string
	badgeID domain.BadgeID
}

// BadgeStore keeps awarded badges keyed by (userID, badgeID).
type BadgeStore struct {
	mu     sync.RWMutex
	awards map[badgeKey]time.Time
}

func NewBadgeStore() *BadgeStore {
	return &BadgeStore{awards: make(map[badgeKey]time.Time)}
}

func (s *BadgeStore) Award(_ context.Context, userID string, badgeID domain.BadgeID, earnedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := badgeKey{userID: userID, badgeID: badgeID}
	if _, ok := s.awards[key]; ok {
		return false, nil
	}
	s.awards[key] = earnedAt
	return true, nil
}

func (s *BadgeStore) ListAwarded(_ context.Context, userID string) ([]domain.AwardedBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AwardedBadge
	for key, at := range s.awards {
		if key.userID == userID {
			out = append(out, domain.AwardedBadge{UserID: userID, BadgeID: key.badgeID, EarnedAt: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out, nil
}

func (s *BadgeStore) CountByUser(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for key := range s.awards {
		counts[key.userID]++
	}
	return counts, nil
}
