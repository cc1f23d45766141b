package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0004_add_quiz_topic.sql
var addQuizTopicSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, addQuizTopicSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP INDEX IF EXISTS quizzes_title_idx; ALTER TABLE quizzes DROP COLUMN IF EXISTS topic`)
			return err
		},
	)
}
