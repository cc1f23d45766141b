package cli

import (
	"context"
	"fmt"
	"log"

	"studyquiz/internal/config"
	pgstore "studyquiz/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd writes the sample quizzes to Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample quizzes into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, quiz := range sampleQuizzes() {
		if err := pgstore.SaveQuiz(ctx, pool, quiz); err != nil {
			return err
		}
		log.Printf("seeded quiz %s (%d questions)", quiz.ID, len(quiz.Questions))
	}
	return nil
}
