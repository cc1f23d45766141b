package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"studyquiz/internal/app"
	"studyquiz/internal/domain"
)

var fixedNow = time.Date(2024, 11, 22, 23, 5, 0, 0, time.UTC)

func TestSubmitScoresAnsweredPositions(t *testing.T) {
	store := &recordingStore{}
	session := newStartedSession(t, twoQuestionQuiz(), store, app.SessionConfig{})

	view := session.View()
	a := positionOf(t, view, "qa") // correct option 0
	b := positionOf(t, view, "qb") // correct option 1
	mustSelect(t, session, a, 0)
	mustSelect(t, session, b, 2)

	result, err := session.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Record.Score != 1 || result.Record.Percentage != 50 || result.Record.TotalQuestions != 2 {
		t.Fatalf("expected score=1 percentage=50, got %+v", result.Record)
	}
	if !result.Persisted || len(store.all()) != 1 {
		t.Fatalf("expected one persisted record, got persisted=%v records=%d", result.Persisted, len(store.all()))
	}
	if result.Record.QuizTitle != "Sample Quiz" || result.Record.UserID != "u1" || !result.Record.CompletedAt.Equal(fixedNow) {
		t.Fatalf("unexpected record snapshot %+v", result.Record)
	}
	if result.Answers[a] != 0 || result.Answers[b] != 2 {
		t.Fatalf("expected answer map in result, got %v", result.Answers)
	}
	if session.Status() != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", session.Status())
	}
}

func TestUnansweredQuestionsNeverCount(t *testing.T) {
	session := newStartedSession(t, twoQuestionQuiz(), &recordingStore{}, app.SessionConfig{})

	result, err := session.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Record.Score != 0 || result.Record.Percentage != 0 {
		t.Fatalf("expected zero score, got %+v", result.Record)
	}
	if result.Feedback != "Keep studying! You'll do better next time." {
		t.Fatalf("unexpected feedback %q", result.Feedback)
	}
}

func TestQuestionOrderIsAPermutation(t *testing.T) {
	quiz := twoQuestionQuiz()
	quiz.Questions = append(quiz.Questions,
		domain.QuestionDefinition{ID: "qc", Options: []string{"x", "y"}},
		domain.QuestionDefinition{ID: "qd", Options: []string{"x", "y"}},
	)
	session := newStartedSession(t, quiz, &recordingStore{}, app.SessionConfig{Rand: rand.New(rand.NewSource(7))})

	seen := map[string]bool{}
	for _, q := range session.View().Questions {
		seen[q.ID] = true
	}
	if len(seen) != 4 || !seen["qa"] || !seen["qb"] || !seen["qc"] || !seen["qd"] {
		t.Fatalf("expected all questions once, got %v", seen)
	}
	if quiz.Questions[0].ID != "qa" {
		t.Fatalf("shuffle must not mutate the quiz definition")
	}
}

func TestSelectAnswerOverwritesAndValidates(t *testing.T) {
	session := newStartedSession(t, twoQuestionQuiz(), &recordingStore{}, app.SessionConfig{})

	mustSelect(t, session, 0, 1)
	mustSelect(t, session, 0, 0)
	if got := session.View().Answers[0]; got != 0 {
		t.Fatalf("expected overwritten answer 0, got %d", got)
	}

	var verr *domain.ValidationError
	if err := session.SelectAnswer(5, 0); !errors.As(err, &verr) || verr.Field != "position" {
		t.Fatalf("expected position validation error, got %v", err)
	}
	if err := session.SelectAnswer(0, 9); !errors.As(err, &verr) || verr.Field != "option" {
		t.Fatalf("expected option validation error, got %v", err)
	}
}

func TestNavigateClampsCursor(t *testing.T) {
	session := newStartedSession(t, twoQuestionQuiz(), &recordingStore{}, app.SessionConfig{})

	if pos := session.Navigate(-1); pos != 0 {
		t.Fatalf("expected clamp at 0, got %d", pos)
	}
	if pos := session.Navigate(1); pos != 1 {
		t.Fatalf("expected 1 without answering, got %d", pos)
	}
	if pos := session.Navigate(1); pos != 1 {
		t.Fatalf("expected clamp at last question, got %d", pos)
	}
	if _, err := session.GoTo(2); err == nil {
		t.Fatalf("expected validation error for explicit out-of-range position")
	}
	if pos, err := session.GoTo(0); err != nil || pos != 0 {
		t.Fatalf("expected goto 0, got %d %v", pos, err)
	}
}

func TestTimerExpirySubmitsOnce(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	session := newStartedSession(t, twoQuestionQuiz(), store, app.SessionConfig{Rand: rand.New(rand.NewSource(1))})
	mustSelect(t, session, positionOf(t, session.View(), "qb"), 1)

	for i := 0; i < 60; i++ {
		if _, err := session.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	// further ticks after completion are no-ops
	_, _ = session.Tick(ctx)

	records := store.all()
	if len(records) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(records))
	}
	result, ok := session.Result()
	if !ok || result.ElapsedSeconds != 60 {
		t.Fatalf("expected completed result with 60s elapsed, got %+v", result)
	}

	// a manual submit on an identical session yields the same record
	manualStore := &recordingStore{}
	manual := newStartedSession(t, twoQuestionQuiz(), manualStore, app.SessionConfig{Rand: rand.New(rand.NewSource(1))})
	mustSelect(t, manual, positionOf(t, manual.View(), "qb"), 1)
	manualResult, err := manual.Submit(ctx)
	if err != nil {
		t.Fatalf("manual submit: %v", err)
	}
	if manualResult.Record != records[0] {
		t.Fatalf("expected identical records\nauto:   %+v\nmanual: %+v", records[0], manualResult.Record)
	}
}

func TestClockDrivesAutoSubmitAndStops(t *testing.T) {
	ticks := make(chan time.Time)
	var stopped atomic.Bool
	completed := make(chan domain.AttemptResult, 1)
	store := &recordingStore{}

	quiz := twoQuestionQuiz()
	quiz.TimeLimitMinutes = 0 // the first tick expires the session
	session := app.NewSession("s1", "u1", quiz, store, app.SessionConfig{
		Now:   func() time.Time { return fixedNow },
		NewID: func() string { return "attempt-1" },
		Ticks: func() (<-chan time.Time, func()) {
			return ticks, func() { stopped.Store(true) }
		},
		OnComplete: func(_ *app.Session, result domain.AttemptResult, _ error) {
			completed <- result
		},
	})
	session.Start()

	ticks <- fixedNow
	select {
	case result := <-completed:
		if result.Record.ID != "attempt-1" {
			t.Fatalf("unexpected result %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for auto-submit")
	}
	if !stopped.Load() {
		t.Fatalf("expected clock stopped after submit")
	}
	if len(store.all()) != 1 {
		t.Fatalf("expected one write, got %d", len(store.all()))
	}
}

func TestConcurrentSubmitExecutesOnce(t *testing.T) {
	store := &recordingStore{}
	session := newStartedSession(t, twoQuestionQuiz(), store, app.SessionConfig{})

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		losers  atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := session.Submit(context.Background())
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, domain.ErrAlreadySubmitted):
				losers.Add(1)
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 || losers.Load() != 9 {
		t.Fatalf("expected 1 winner and 9 no-ops, got %d/%d", winners.Load(), losers.Load())
	}
	if len(store.all()) != 1 {
		t.Fatalf("expected one write, got %d", len(store.all()))
	}
}

func TestPersistenceFailureIsReportedNotFatal(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{err: errors.New("store unavailable")}
	session := newStartedSession(t, twoQuestionQuiz(), store, app.SessionConfig{})
	mustSelect(t, session, positionOf(t, session.View(), "qa"), 0)

	result, err := session.Submit(ctx)
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if result.Record.Score != 1 || result.Persisted {
		t.Fatalf("expected local score visible and unpersisted, got %+v", result)
	}
	if session.Status() != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED after failed write, got %s", session.Status())
	}

	store.setErr(nil)
	if err := session.RetryPersist(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := session.RetryPersist(ctx); !errors.Is(err, domain.ErrNothingToRetry) {
		t.Fatalf("expected ErrNothingToRetry, got %v", err)
	}
	if got, _ := session.Result(); !got.Persisted {
		t.Fatalf("expected result marked persisted after retry")
	}
	if records := store.all(); len(records) != 1 || records[0].ID != result.Record.ID {
		t.Fatalf("expected the original record appended once, got %+v", records)
	}
}

func TestRetryLeavesDeliveredEventsUntouched(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{err: errors.New("store unavailable")}
	session := newStartedSession(t, twoQuestionQuiz(), store, app.SessionConfig{})
	events, cancel := session.Subscribe()
	defer cancel()
	<-events // initial state

	_, _ = session.Submit(ctx)
	completed := <-events
	if completed.Type != app.EventCompleted || completed.Result == nil || completed.Result.Persisted {
		t.Fatalf("unexpected completion event %+v", completed)
	}

	store.setErr(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// a transport encodes the event while the retry runs
		for i := 0; i < 50; i++ {
			if _, err := json.Marshal(completed); err != nil {
				t.Errorf("marshal: %v", err)
				return
			}
		}
	}()
	if err := session.RetryPersist(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	<-done

	if completed.Result.Persisted {
		t.Fatalf("delivered event must not change after retry")
	}
	if got, _ := session.Result(); !got.Persisted {
		t.Fatalf("expected session result persisted after retry")
	}

	late, cancelLate := session.Subscribe()
	defer cancelLate()
	first := <-late
	if first.Result == nil || !first.Result.Persisted {
		t.Fatalf("expected late subscriber to see persisted result, got %+v", first.Result)
	}
	first.Result.Persisted = false
	if got, _ := session.Result(); !got.Persisted {
		t.Fatalf("subscriber copy must not alias session state")
	}
}

func TestAbandonDiscardsWithoutWriting(t *testing.T) {
	var stopped atomic.Bool
	store := &recordingStore{}
	session := newStartedSession(t, twoQuestionQuiz(), store, app.SessionConfig{
		Ticks: func() (<-chan time.Time, func()) {
			return make(chan time.Time), func() { stopped.Store(true) }
		},
	})
	events, cancel := session.Subscribe()
	defer cancel()
	<-events // initial state

	mustSelect(t, session, 0, 0)
	session.Abandon()

	if _, err := session.Submit(context.Background()); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := session.SelectAnswer(0, 1); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if len(store.all()) != 0 {
		t.Fatalf("expected no record for abandoned session")
	}
	if !stopped.Load() {
		t.Fatalf("expected clock stopped on abandon")
	}
	if _, ok := <-events; ok {
		t.Fatalf("expected subscriber channel closed")
	}
}

func TestSubscribersSeeTicksAndCompletion(t *testing.T) {
	session := newStartedSession(t, twoQuestionQuiz(), &recordingStore{}, app.SessionConfig{})
	events, cancel := session.Subscribe()
	defer cancel()

	first := <-events
	if first.Type != app.EventState || first.Remaining != 60 || first.Status != domain.StatusInProgress {
		t.Fatalf("unexpected initial event %+v", first)
	}
	_, _ = session.Tick(context.Background())
	tick := <-events
	if tick.Type != app.EventTick || tick.Remaining != 59 {
		t.Fatalf("unexpected tick event %+v", tick)
	}
	_, _ = session.Submit(context.Background())
	done := <-events
	if done.Type != app.EventCompleted || done.Result == nil || done.Result.ElapsedSeconds != 1 {
		t.Fatalf("unexpected completion event %+v", done)
	}
}

type recordingStore struct {
	mu      sync.Mutex
	records []domain.AttemptRecord
	err     error
}

func (s *recordingStore) Append(_ context.Context, r domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *recordingStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *recordingStore) all() []domain.AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AttemptRecord, len(s.records))
	copy(out, s.records)
	return out
}

func newStartedSession(t *testing.T, quiz domain.QuizDefinition, store app.AttemptAppender, cfg app.SessionConfig) *app.Session {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return fixedNow }
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return "attempt-1" }
	}
	session := app.NewSession("s1", "u1", quiz, store, cfg)
	if session.Status() != domain.StatusLoading {
		t.Fatalf("expected LOADING before start, got %s", session.Status())
	}
	session.Start()
	return session
}

func mustSelect(t *testing.T, s *app.Session, position, option int) {
	t.Helper()
	if err := s.SelectAnswer(position, option); err != nil {
		t.Fatalf("select %d=%d: %v", position, option, err)
	}
}

func positionOf(t *testing.T, view app.SessionView, questionID string) int {
	t.Helper()
	for i, q := range view.Questions {
		if q.ID == questionID {
			return i
		}
	}
	t.Fatalf("question %s not in session", questionID)
	return -1
}

func twoQuestionQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID:               "quiz-1",
		Subject:          "General",
		Difficulty:       "Easy",
		Title:            "Sample Quiz",
		TimeLimitMinutes: 1,
		Questions: []domain.QuestionDefinition{
			{ID: "qa", Prompt: "Pick A", Options: []string{"A", "B", "C"}, CorrectIndex: 0},
			{ID: "qb", Prompt: "Pick B", Options: []string{"A", "B", "C"}, CorrectIndex: 1},
		},
	}
}
