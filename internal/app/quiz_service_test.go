package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyquiz/internal/app"
	"studyquiz/internal/domain"
	"studyquiz/internal/infra/memory"
)

func TestStartSessionUnknownQuizCreatesNothing(t *testing.T) {
	sessions := memory.NewSessionStore()
	service := app.NewQuizService(sessions, newQuizRepo(), memory.NewAttemptStore(), app.SessionConfig{})

	_, err := service.StartSession(context.Background(), "u1", "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected no session registered, got %d", sessions.Len())
	}
}

func TestQuizServiceSubmitPersistsAndReleasesSession(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	attempts := memory.NewAttemptStore()
	service := app.NewQuizService(sessions, newQuizRepo(), attempts, app.SessionConfig{
		Now: func() time.Time { return fixedNow },
	})

	session, err := service.StartSession(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Status() != domain.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", session.Status())
	}

	view, err := service.SelectAnswer(ctx, session.ID(), positionOf(t, session.View(), "qb"), 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	last := len(view.Questions) - 1
	if view, err = service.Navigate(ctx, session.ID(), 0, &last); err != nil || view.Cursor != last {
		t.Fatalf("navigate: cursor=%d err=%v", view.Cursor, err)
	}

	result, err := service.Submit(ctx, session.ID())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Record.Score != 1 || result.Record.Percentage != 50 {
		t.Fatalf("unexpected result %+v", result.Record)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected session released after persisted submit")
	}
	if _, err := service.Submit(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after release, got %v", err)
	}

	records, _ := attempts.ListByUser(ctx, "u1")
	if len(records) != 1 || records[0].ID != result.Record.ID {
		t.Fatalf("expected one stored record, got %+v", records)
	}
}

func TestQuizServiceKeepsSessionForRetry(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	store := &recordingStore{err: errors.New("connection refused")}
	service := app.NewQuizService(sessions, newQuizRepo(), store, app.SessionConfig{})

	session, err := service.StartSession(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := service.Submit(ctx, session.ID())
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected session kept for retry")
	}

	again, err := service.Submit(ctx, session.ID())
	if !errors.Is(err, domain.ErrAlreadySubmitted) || again.Record.ID != first.Record.ID {
		t.Fatalf("expected the existing result on resubmit, got %+v %v", again.Record, err)
	}

	store.setErr(nil)
	if err := service.RetryPersist(ctx, session.ID()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected session released after retry")
	}
	if len(store.all()) != 1 {
		t.Fatalf("expected one record after retry, got %d", len(store.all()))
	}
}

func TestQuizServiceAbandon(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	attempts := memory.NewAttemptStore()
	service := app.NewQuizService(sessions, newQuizRepo(), attempts, app.SessionConfig{})

	session, err := service.StartSession(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	service.Abandon(ctx, session.ID())

	if session.Status() != domain.StatusAbandoned {
		t.Fatalf("expected ABANDONED, got %s", session.Status())
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected session removed")
	}
	if all, _ := attempts.ListAll(ctx); len(all) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(all))
	}
}

func newQuizRepo() *memory.QuizRepository {
	loader := memory.NewStaticQuizLoader(map[string]domain.QuizDefinition{"quiz-1": twoQuestionQuiz()})
	return memory.NewQuizRepository(loader, time.Minute)
}
