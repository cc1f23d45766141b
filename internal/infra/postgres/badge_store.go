package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studyquiz/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OpenBun opens a bun handle over the pgdriver connector.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type userBadge struct {
	bun.BaseModel `bun:"table:user_badges"`

	UserID   string    `bun:"user_id,pk"`
	BadgeID  int       `bun:"badge_id,pk"`
	EarnedAt time.Time `bun:"earned_at,notnull"`
}

// BadgeStore persists awarded badges in user_badges, keyed by (user_id, badge_id).
type BadgeStore struct {
	db *bun.DB
}

func NewBadgeStore(db *bun.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func (s *BadgeStore) Award(ctx context.Context, userID string, badgeID domain.BadgeID, earnedAt time.Time) (bool, error) {
	row := &userBadge{UserID: userID, BadgeID: int(badgeID), EarnedAt: earnedAt}
	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (user_id, badge_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	return n == 1, nil
}

func (s *BadgeStore) ListAwarded(ctx context.Context, userID string) ([]domain.AwardedBadge, error) {
	var rows []userBadge
	if err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("badge_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	out := make([]domain.AwardedBadge, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AwardedBadge{UserID: r.UserID, BadgeID: domain.BadgeID(r.BadgeID), EarnedAt: r.EarnedAt})
	}
	return out, nil
}

func (s *BadgeStore) CountByUser(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		UserID string `bun:"user_id"`
		N      int    `bun:"n"`
	}
	if err := s.db.NewSelect().
		TableExpr("user_badges").
		ColumnExpr("user_id").
		ColumnExpr("count(*) AS n").
		Group("user_id").
		Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("count badges: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.UserID] = r.N
	}
	return counts, nil
}
