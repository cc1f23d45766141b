package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyquiz/internal/app"
	"studyquiz/internal/badges"
	"studyquiz/internal/config"
	"studyquiz/internal/infra/memory"
	pgstore "studyquiz/internal/infra/postgres"
	redisstore "studyquiz/internal/infra/redis"
	transport "studyquiz/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	catalog := badges.DefaultCatalog()
	if cfg.Badges.Catalog != "" {
		catalog, err = badges.LoadCatalog(cfg.Badges.Catalog)
		if err != nil {
			return err
		}
	}
	log.Printf("badge catalog %s (%d badges)", catalog.Version(), catalog.Len())

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		loader   memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
		attempts app.AttemptStore  = memory.NewAttemptStore()
		awards   app.BadgeStore    = memory.NewBadgeStore()
	)
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
		attempts = pgstore.NewAttemptStore(pool)
		bunDB := pgstore.OpenBun(cfg.Postgres.URL)
		defer bunDB.Close()
		awards = pgstore.NewBadgeStore(bunDB)
	} else if redisClient != nil {
		awards = redisstore.NewBadgeStore(redisClient)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, config.TTLDuration(cfg.Redis.TTL, quizTTL))
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Session.Grace, time.Minute))
	} else {
		sessions = memory.NewSessionStore()
	}

	quizService := app.NewQuizService(sessions, quizRepo, attempts, app.SessionConfig{Ticks: app.EverySecond})
	engine := badges.NewEngine(catalog, attempts, awards, loc)
	progress := app.NewProgressService(attempts, awards, quizRepo, engine, loc, cfg.Analytics.RecentActivity)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewWSHandler(quizService).Register(mux)
	transport.NewProgressHandler(progress).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
