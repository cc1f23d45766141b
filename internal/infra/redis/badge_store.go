package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"studyquiz/internal/domain"
	"github.com/redis/go-redis/v9"
)

const badgeKeyPrefix = "badges:user:"

// BadgeStore keeps awarded badges in one hash per user:
// HSETNX badges:user:{userID} {badgeID} {earnedAt RFC3339Nano}
// HSETNX makes the (userID, badgeID) write idempotent across retries and processes.
type BadgeStore struct {
	client *redis.Client
}

func NewBadgeStore(client *redis.Client) *BadgeStore {
	return &BadgeStore{client: client}
}

func (s *BadgeStore) Award(ctx context.Context, userID string, badgeID domain.BadgeID, earnedAt time.Time) (bool, error) {
	created, err := s.client.HSetNX(ctx, s.key(userID), strconv.Itoa(int(badgeID)), earnedAt.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	return created, nil
}

func (s *BadgeStore) ListAwarded(ctx context.Context, userID string) ([]domain.AwardedBadge, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	out := make([]domain.AwardedBadge, 0, len(fields))
	for field, raw := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		out = append(out, domain.AwardedBadge{UserID: userID, BadgeID: domain.BadgeID(id), EarnedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out, nil
}

func (s *BadgeStore) CountByUser(ctx context.Context) (map[string]int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, badgeKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan badges: %w", err)
	}

	pipe := s.client.Pipeline()
	lens := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		lens[i] = pipe.HLen(ctx, key)
	}
	if len(keys) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("count badges: %w", err)
		}
	}

	counts := make(map[string]int, len(keys))
	for i, key := range keys {
		counts[strings.TrimPrefix(key, badgeKeyPrefix)] = int(lens[i].Val())
	}
	return counts, nil
}

func (s *BadgeStore) key(userID string) string {
	return badgeKeyPrefix + userID
}
