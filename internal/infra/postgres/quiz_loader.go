package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"studyquiz/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizLoader loads quiz definitions and their ordered questions from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	quiz := domain.QuizDefinition{ID: quizID}
	err := l.pool.QueryRow(ctx,
		`SELECT subject, topic, difficulty, title, time_limit_minutes FROM quizzes WHERE id=$1`, quizID,
	).Scan(&quiz.Subject, &quiz.Topic, &quiz.Difficulty, &quiz.Title, &quiz.TimeLimitMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizDefinition{}, fmt.Errorf("load quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, prompt, options, correct_index, explanation FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q   domain.QuestionDefinition
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &raw, &q.CorrectIndex, &q.Explanation); err != nil {
			return domain.QuizDefinition{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return domain.QuizDefinition{}, fmt.Errorf("unmarshal options: %w", err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("load questions: %w", err)
	}
	return quiz, nil
}

// ListQuizzes returns every quiz with its question count, ordered by title.
func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT q.id, q.subject, q.topic, q.difficulty, q.title, q.time_limit_minutes, count(qs.id)
		 FROM quizzes q LEFT JOIN questions qs ON qs.quiz_id = q.id
		 GROUP BY q.id ORDER BY q.title, q.id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizSummary
	for rows.Next() {
		var s domain.QuizSummary
		if err := rows.Scan(&s.ID, &s.Subject, &s.Topic, &s.Difficulty, &s.Title, &s.TimeLimitMinutes, &s.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return out, nil
}

// SaveQuiz upserts a quiz and replaces its questions in one transaction.
func SaveQuiz(ctx context.Context, pool *pgxpool.Pool, quiz domain.QuizDefinition) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO quizzes (id, subject, topic, difficulty, title, time_limit_minutes) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET subject=EXCLUDED.subject, topic=EXCLUDED.topic, difficulty=EXCLUDED.difficulty,
		 title=EXCLUDED.title, time_limit_minutes=EXCLUDED.time_limit_minutes`,
		quiz.ID, quiz.Subject, quiz.Topic, quiz.Difficulty, quiz.Title, quiz.TimeLimitMinutes); err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id=$1`, quiz.ID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	for i, q := range quiz.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (id, quiz_id, position, prompt, options, correct_index, explanation)
			 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`,
			q.ID, quiz.ID, i, q.Prompt, string(options), q.CorrectIndex, q.Explanation); err != nil {
			return fmt.Errorf("save question %s: %w", q.ID, err)
		}
	}
	return tx.Commit(ctx)
}
