package app

import (
	"context"
	"errors"

	"studyquiz/internal/domain"
	"github.com/google/uuid"
)

// SessionRepository abstracts where live quiz sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// AttemptStore is the durable, append-only attempt history.
type AttemptStore interface {
	AttemptAppender
	ListByUser(ctx context.Context, userID string) ([]domain.AttemptRecord, error)
	ListAll(ctx context.Context) ([]domain.AttemptRecord, error)
}

// QuizService runs quiz sessions from start to a persisted attempt.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	attempts AttemptAppender
	cfg      SessionConfig
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, attempts AttemptAppender, cfg SessionConfig) *QuizService {
	return &QuizService{sessions: sessions, quizzes: quizzes, attempts: attempts, cfg: cfg}
}

// StartSession loads the quiz and starts a new timed session for userID.
// Unknown quizzes return domain.ErrQuizNotFound and no session is created.
func (s *QuizService) StartSession(ctx context.Context, userID, quizID string) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg
	next := cfg.OnComplete
	cfg.OnComplete = func(session *Session, result domain.AttemptResult, err error) {
		// keep sessions whose write failed so the caller can retry
		if err == nil {
			s.sessions.Delete(session.ID())
		}
		if next != nil {
			next(session, result, err)
		}
	}

	session := NewSession(uuid.NewString(), userID, quiz, s.attempts, cfg)
	s.sessions.Put(session)
	session.Start()
	return session, nil
}

// Session looks up a live session.
func (s *QuizService) Session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SelectAnswer records an answer and returns the updated view.
func (s *QuizService) SelectAnswer(_ context.Context, sessionID string, position, optionIndex int) (SessionView, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := session.SelectAnswer(position, optionIndex); err != nil {
		return SessionView{}, err
	}
	return session.View(), nil
}

// Navigate moves the cursor by delta, or to position when position is non-nil.
func (s *QuizService) Navigate(_ context.Context, sessionID string, delta int, position *int) (SessionView, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if position != nil {
		if _, err := session.GoTo(*position); err != nil {
			return SessionView{}, err
		}
	} else {
		session.Navigate(delta)
	}
	return session.View(), nil
}

// Submit finishes the session. A *domain.PersistenceError comes back together
// with a valid result; the session then stays available for RetryPersist.
func (s *QuizService) Submit(ctx context.Context, sessionID string) (domain.AttemptResult, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	result, err := session.Submit(ctx)
	if errors.Is(err, domain.ErrAlreadySubmitted) {
		if done, ok := session.Result(); ok {
			return done, err
		}
	}
	return result, err
}

// RetryPersist re-appends a completed attempt whose first write failed.
func (s *QuizService) RetryPersist(ctx context.Context, sessionID string) error {
	session, err := s.Session(sessionID)
	if err != nil {
		return err
	}
	if err := session.RetryPersist(ctx); err != nil {
		return err
	}
	s.sessions.Delete(sessionID)
	return nil
}

// Abandon discards a session. Nothing is persisted for unsubmitted sessions.
func (s *QuizService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Abandon()
	s.sessions.Delete(sessionID)
}
