package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"studyquiz/internal/analytics"
	"studyquiz/internal/badges"
	"studyquiz/internal/domain"
	"golang.org/x/sync/errgroup"
)

// BadgeStore is the awarded-badge store plus a cross-user count for leaderboards.
type BadgeStore interface {
	badges.AwardStore
	CountByUser(ctx context.Context) (map[string]int, error)
}

// Profile is the per-user dashboard.
type Profile struct {
	UserID         string                     `json:"userId"`
	Summary        analytics.Summary          `json:"summary"`
	BadgesEarned   int                        `json:"badgesEarned"`
	Streak         int                        `json:"streak"`
	Rank           int                        `json:"rank"`
	Subjects       []analytics.SubjectAverage `json:"subjects"`
	Heatmap        []analytics.DayCount       `json:"heatmap"`
	RecentActivity []analytics.Activity       `json:"recentActivity"`
}

// BadgeView is a catalog entry as seen by one user.
type BadgeView struct {
	badges.Definition
	EarnedAt *time.Time `json:"earnedAt,omitempty"`
	New      bool       `json:"new,omitempty"`
}

// BadgeBoard splits the catalog into earned and locked badges.
type BadgeBoard struct {
	Earned []BadgeView `json:"earned"`
	Locked []BadgeView `json:"locked"`
	Total  int         `json:"total"`
	// Completion is the earned share of the catalog in percent.
	Completion int `json:"completion"`
}

// Catalog status filters.
const (
	StatusAll       = ""
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// QuizFilter narrows the catalog. Topic only applies together with Subject.
type QuizFilter struct {
	Subject string
	Topic   string
	Status  string
}

// QuizListing is a catalog row annotated with the user's progress on it.
type QuizListing struct {
	domain.QuizSummary
	Completed bool `json:"completed"`
	// BestPercentage is the user's best result, zero when never completed.
	BestPercentage int `json:"bestPercentage"`
}

// QuizCatalog is the filtered quiz list plus the facets to filter by.
type QuizCatalog struct {
	Quizzes  []QuizListing     `json:"quizzes"`
	Subjects []string          `json:"subjects"`
	Topics   []string          `json:"topics,omitempty"`
	Summary  analytics.Summary `json:"summary"`
}

// ProgressService serves analytics and badge views over the attempt history.
type ProgressService struct {
	attempts    AttemptStore
	awards      BadgeStore
	quizzes     QuizRepository
	engine      *badges.Engine
	loc         *time.Location
	now         func() time.Time
	recentLimit int
}

func NewProgressService(attempts AttemptStore, awards BadgeStore, quizzes QuizRepository, engine *badges.Engine, loc *time.Location, recentLimit int) *ProgressService {
	return NewProgressServiceWithClock(attempts, awards, quizzes, engine, loc, recentLimit, time.Now)
}

// NewProgressServiceWithClock is test-only for deterministic streaks.
func NewProgressServiceWithClock(attempts AttemptStore, awards BadgeStore, quizzes QuizRepository, engine *badges.Engine, loc *time.Location, recentLimit int, now func() time.Time) *ProgressService {
	if loc == nil {
		loc = time.Local
	}
	if recentLimit <= 0 {
		recentLimit = 5
	}
	return &ProgressService{
		attempts:    attempts,
		awards:      awards,
		quizzes:     quizzes,
		engine:      engine,
		loc:         loc,
		now:         now,
		recentLimit: recentLimit,
	}
}

// Profile aggregates one user's history.
func (p *ProgressService) Profile(ctx context.Context, userID string) (Profile, error) {
	var (
		records []domain.AttemptRecord
		awarded []domain.AwardedBadge
		board   []analytics.LeaderboardEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = p.attempts.ListByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		awarded, err = p.awards.ListAwarded(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		board, err = p.Leaderboard(gctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}

	return Profile{
		UserID:         userID,
		Summary:        analytics.SummaryStats(records),
		BadgesEarned:   len(awarded),
		Streak:         analytics.Streak(records, p.now().In(p.loc)),
		Rank:           analytics.Rank(board, userID),
		Subjects:       analytics.SubjectProgress(records, p.subjectLookup(ctx, records)),
		Heatmap:        analytics.Heatmap(records, p.loc),
		RecentActivity: analytics.RecentActivity(records, awarded, p.engine.Catalog().Names(), p.recentLimit),
	}, nil
}

// Leaderboard ranks every user with history. limit <= 0 returns all rows.
func (p *ProgressService) Leaderboard(ctx context.Context, limit int) ([]analytics.LeaderboardEntry, error) {
	var (
		records []domain.AttemptRecord
		counts  map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = p.attempts.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = p.awards.CountByUser(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users := analytics.GroupByUser(records)
	for i := range users {
		users[i].BadgesEarned = counts[users[i].UserID]
	}
	board := analytics.Leaderboard(users)
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

// EvaluateBadges runs the badge rules for userID and returns newly granted ids.
func (p *ProgressService) EvaluateBadges(ctx context.Context, userID string) ([]domain.BadgeID, error) {
	return p.engine.Evaluate(ctx, userID)
}

// BadgeBoard evaluates badges and returns the earned/locked split.
// Award failures are reported but the board is still built.
func (p *ProgressService) BadgeBoard(ctx context.Context, userID string) (BadgeBoard, error) {
	granted, evalErr := p.engine.Evaluate(ctx, userID)
	var pe *domain.PersistenceError
	if evalErr != nil && !errors.As(evalErr, &pe) {
		return BadgeBoard{}, evalErr
	}

	awarded, err := p.awards.ListAwarded(ctx, userID)
	if err != nil {
		return BadgeBoard{}, err
	}
	earnedAt := make(map[domain.BadgeID]time.Time, len(awarded))
	for _, a := range awarded {
		earnedAt[a.BadgeID] = a.EarnedAt
	}
	isNew := make(map[domain.BadgeID]bool, len(granted))
	for _, id := range granted {
		isNew[id] = true
	}

	catalog := p.engine.Catalog()
	board := BadgeBoard{Total: catalog.Len()}
	for _, def := range catalog.Definitions() {
		at, ok := earnedAt[def.ID]
		if !ok {
			board.Locked = append(board.Locked, BadgeView{Definition: def})
			continue
		}
		at = at.In(p.loc)
		board.Earned = append(board.Earned, BadgeView{Definition: def, EarnedAt: &at, New: isNew[def.ID]})
	}
	board.Completion = domain.Percentage(len(board.Earned), board.Total)
	return board, evalErr
}

// Quizzes lists the catalog for userID with completion flags. Summary covers
// the user's whole history; Topics is only filled once a subject is chosen.
func (p *ProgressService) Quizzes(ctx context.Context, userID string, filter QuizFilter) (QuizCatalog, error) {
	switch filter.Status {
	case StatusAll, StatusCompleted, StatusPending:
	default:
		return QuizCatalog{}, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, filter.Status)
	}

	var (
		list    []domain.QuizSummary
		records []domain.AttemptRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = p.quizzes.ListQuizzes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = p.attempts.ListByUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return QuizCatalog{}, err
	}

	best := make(map[string]int)
	for _, r := range records {
		if b, ok := best[r.QuizID]; !ok || r.Percentage > b {
			best[r.QuizID] = r.Percentage
		}
	}

	out := QuizCatalog{Quizzes: []QuizListing{}, Summary: analytics.SummaryStats(records)}
	subjects := make(map[string]struct{})
	topics := make(map[string]struct{})
	for _, q := range list {
		subjects[q.Subject] = struct{}{}
		if filter.Subject != "" {
			if q.Subject != filter.Subject {
				continue
			}
			if q.Topic != "" {
				topics[q.Topic] = struct{}{}
			}
			if filter.Topic != "" && q.Topic != filter.Topic {
				continue
			}
		}
		pct, done := best[q.ID]
		if (filter.Status == StatusCompleted && !done) || (filter.Status == StatusPending && done) {
			continue
		}
		out.Quizzes = append(out.Quizzes, QuizListing{QuizSummary: q, Completed: done, BestPercentage: pct})
	}
	out.Subjects = sortedKeys(subjects)
	if filter.Subject != "" {
		out.Topics = sortedKeys(topics)
	}
	return out, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *ProgressService) subjectLookup(ctx context.Context, records []domain.AttemptRecord) analytics.SubjectLookup {
	subjects := make(map[string]string)
	ids := make([]string, 0)
	for _, r := range records {
		if _, ok := subjects[r.QuizID]; ok {
			continue
		}
		subjects[r.QuizID] = ""
		ids = append(ids, r.QuizID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		quiz, err := p.quizzes.GetQuiz(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrQuizNotFound) {
				log.Printf("resolve subject for quiz %s: %v", id, err)
			}
			continue
		}
		subjects[id] = quiz.Subject
	}
	return func(quizID string) (string, bool) {
		s, ok := subjects[quizID]
		return s, ok && s != ""
	}
}
