package postgres

import (
	"context"
	"fmt"

	"studyquiz/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore persists attempt records in quiz_results.
// Append ignores a record id it has already stored, so retries are safe.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Append(ctx context.Context, r domain.AttemptRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_results (id, user_id, quiz_id, quiz_title, score, total_questions, percentage, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.UserID, r.QuizID, r.QuizTitle, r.Score, r.TotalQuestions, r.Percentage, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx, selectAttempts+` WHERE user_id=$1 ORDER BY completed_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return scanAttempts(rows)
}

func (s *AttemptStore) ListAll(ctx context.Context) ([]domain.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx, selectAttempts+` ORDER BY completed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return scanAttempts(rows)
}

const selectAttempts = `SELECT id, user_id, quiz_id, quiz_title, score, total_questions, percentage, completed_at FROM quiz_results`

func scanAttempts(rows pgx.Rows) ([]domain.AttemptRecord, error) {
	defer rows.Close()
	var out []domain.AttemptRecord
	for rows.Next() {
		var r domain.AttemptRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.QuizID, &r.QuizTitle, &r.Score, &r.TotalQuestions, &r.Percentage, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return out, nil
}
