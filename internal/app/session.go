package app

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"studyquiz/internal/analytics"
	"studyquiz/internal/domain"
	"github.com/google/uuid"
)

// AttemptAppender is the write side of the attempt store.
type AttemptAppender interface {
	Append(ctx context.Context, record domain.AttemptRecord) error
}

// TickSource starts a clock and returns its tick channel and a stop func.
type TickSource func() (<-chan time.Time, func())

// EverySecond is the production tick source.
func EverySecond() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// SessionConfig carries a session's collaborators. Zero fields get defaults.
type SessionConfig struct {
	Now   func() time.Time
	Rand  *rand.Rand
	Ticks TickSource
	NewID func() string
	// OnComplete runs once after submission finished, outside the session lock.
	OnComplete func(s *Session, result domain.AttemptResult, err error)
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.NewID == nil {
		c.NewID = func() string { return uuid.NewString() }
	}
	return c
}

// Event types published to session subscribers.
const (
	EventState     = "state"
	EventTick      = "tick"
	EventCompleted = "completed"
)

// SessionEvent is pushed to subscribers on every state change.
type SessionEvent struct {
	Type      string                `json:"type"`
	Status    domain.SessionStatus  `json:"status"`
	Remaining int                   `json:"remaining"`
	Result    *domain.AttemptResult `json:"result,omitempty"`
}

// SessionView is a read-only snapshot of a session. Correct answers are not included.
type SessionView struct {
	ID        string               `json:"sessionId"`
	QuizID    string               `json:"quizId"`
	Title     string               `json:"title"`
	Subject   string               `json:"subject"`
	Status    domain.SessionStatus `json:"status"`
	Cursor    int                  `json:"cursor"`
	Remaining int                  `json:"remaining"`
	TimeLimit int                  `json:"timeLimit"`
	Answers   map[int]int          `json:"answers"`
	Questions []QuestionView       `json:"questions"`
}

// QuestionView is a question as shown while the quiz runs.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Session runs one timed quiz attempt for one user.
type Session struct {
	id     string
	userID string
	quiz   domain.QuizDefinition
	store  AttemptAppender
	cfg    SessionConfig

	mu          sync.Mutex
	status      domain.SessionStatus
	questions   []domain.QuestionDefinition
	answers     map[int]int
	cursor      int
	remaining   int
	result      *domain.AttemptResult
	pending     *domain.AttemptRecord
	stopClock   func()
	subscribers map[chan SessionEvent]struct{}
}

// NewSession builds a LOADING session with its question order shuffled once.
func NewSession(id, userID string, quiz domain.QuizDefinition, store AttemptAppender, cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	questions := make([]domain.QuestionDefinition, len(quiz.Questions))
	copy(questions, quiz.Questions)
	cfg.Rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})

	return &Session{
		id:          id,
		userID:      userID,
		quiz:        quiz,
		store:       store,
		cfg:         cfg,
		status:      domain.StatusLoading,
		questions:   questions,
		answers:     make(map[int]int),
		remaining:   quiz.TimeLimitSeconds(),
		subscribers: make(map[chan SessionEvent]struct{}),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }
func (s *Session) QuizID() string { return s.quiz.ID }

// Start moves LOADING to IN_PROGRESS and starts the countdown if a tick source is set.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusLoading {
		return
	}
	s.status = domain.StatusInProgress
	if s.cfg.Ticks != nil {
		ticks, stop := s.cfg.Ticks()
		done := make(chan struct{})
		var once sync.Once
		s.stopClock = func() {
			once.Do(func() {
				stop()
				close(done)
			})
		}
		go s.runClock(ticks, done)
	}
	s.broadcastLocked(SessionEvent{Type: EventState})
}

func (s *Session) runClock(ticks <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticks:
			if _, err := s.Tick(context.Background()); err != nil {
				log.Printf("session %s auto-submit: %v", s.id, err)
			}
		}
	}
}

// Status returns the lifecycle state.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Remaining returns the countdown in seconds.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// SelectAnswer records optionIndex for the question at position, replacing any earlier choice.
func (s *Session) SelectAnswer(position, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusInProgress {
		return domain.ErrSessionClosed
	}
	if position < 0 || position >= len(s.questions) {
		return &domain.ValidationError{Field: "position", Value: position, Limit: len(s.questions)}
	}
	if n := len(s.questions[position].Options); optionIndex < 0 || optionIndex >= n {
		return &domain.ValidationError{Field: "option", Value: optionIndex, Limit: n}
	}
	s.answers[position] = optionIndex
	return nil
}

// Navigate moves the cursor by delta, clamped to the question range.
func (s *Session) Navigate(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.clampLocked(s.cursor + delta)
	return s.cursor
}

// GoTo moves the cursor to an explicit position.
func (s *Session) GoTo(position int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position < 0 || position >= len(s.questions) {
		return s.cursor, &domain.ValidationError{Field: "position", Value: position, Limit: len(s.questions)}
	}
	s.cursor = position
	return s.cursor, nil
}

func (s *Session) clampLocked(pos int) int {
	if pos >= len(s.questions) {
		pos = len(s.questions) - 1
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// Tick decrements the countdown once. Reaching zero submits the session;
// losing that race to a manual submit is not an error.
func (s *Session) Tick(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.status != domain.StatusInProgress {
		remaining := s.remaining
		s.mu.Unlock()
		return remaining, nil
	}
	if s.remaining > 0 {
		s.remaining--
	}
	remaining := s.remaining
	s.broadcastLocked(SessionEvent{Type: EventTick})
	s.mu.Unlock()

	if remaining > 0 {
		return remaining, nil
	}
	_, err := s.Submit(ctx)
	if errors.Is(err, domain.ErrAlreadySubmitted) {
		err = nil
	}
	return 0, err
}

// Submit scores the session and appends the attempt record. Only the first
// call runs; later calls get ErrAlreadySubmitted. A failed write still
// completes the session and returns the result with a *domain.PersistenceError.
func (s *Session) Submit(ctx context.Context) (domain.AttemptResult, error) {
	s.mu.Lock()
	switch s.status {
	case domain.StatusInProgress:
	case domain.StatusSubmitting, domain.StatusCompleted:
		s.mu.Unlock()
		return domain.AttemptResult{}, domain.ErrAlreadySubmitted
	default:
		s.mu.Unlock()
		return domain.AttemptResult{}, domain.ErrSessionClosed
	}
	s.status = domain.StatusSubmitting
	s.haltClockLocked()
	record := s.recordLocked()
	result := domain.AttemptResult{
		Record:         record,
		Answers:        copyAnswers(s.answers),
		Questions:      s.questions,
		ElapsedSeconds: s.quiz.TimeLimitSeconds() - s.remaining,
		Feedback:       analytics.Feedback(record.Percentage),
	}
	s.mu.Unlock()

	err := s.store.Append(ctx, record)

	s.mu.Lock()
	result.Persisted = err == nil
	if err != nil {
		s.pending = &record
	}
	s.status = domain.StatusCompleted
	stored := result
	s.result = &stored
	s.broadcastLocked(SessionEvent{Type: EventCompleted, Result: s.result})
	s.mu.Unlock()

	if err != nil {
		log.Printf("persist attempt %s for %s: %v", record.ID, s.userID, err)
		err = &domain.PersistenceError{Op: "append attempt", Err: err}
	}
	if s.cfg.OnComplete != nil {
		s.cfg.OnComplete(s, result, err)
	}
	return result, err
}

// RetryPersist re-appends an attempt whose first write failed.
func (s *Session) RetryPersist(ctx context.Context) error {
	s.mu.Lock()
	if s.status != domain.StatusCompleted {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.pending == nil {
		s.mu.Unlock()
		return domain.ErrNothingToRetry
	}
	record := *s.pending
	s.mu.Unlock()

	if err := s.store.Append(ctx, record); err != nil {
		return &domain.PersistenceError{Op: "append attempt", Err: err}
	}

	s.mu.Lock()
	s.pending = nil
	if s.result != nil {
		// results already handed out stay untouched
		persisted := *s.result
		persisted.Persisted = true
		s.result = &persisted
	}
	s.mu.Unlock()
	return nil
}

// Result returns the outcome once the session is completed.
func (s *Session) Result() (domain.AttemptResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.AttemptResult{}, false
	}
	return *s.result, true
}

// Abandon discards the session. Before submission nothing is persisted.
// The clock is stopped and subscribers are released.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.StatusLoading || s.status == domain.StatusInProgress {
		s.status = domain.StatusAbandoned
	}
	s.haltClockLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// View snapshots the session for display.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe returns a channel of session events, starting with a state event.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- SessionEvent{Type: EventState, Status: s.status, Remaining: s.remaining, Result: copyResult(s.result)}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) haltClockLocked() {
	if s.stopClock != nil {
		s.stopClock()
	}
}

func (s *Session) recordLocked() domain.AttemptRecord {
	score := 0
	for pos, opt := range s.answers {
		if pos < len(s.questions) && opt == s.questions[pos].CorrectIndex {
			score++
		}
	}
	total := len(s.questions)
	return domain.AttemptRecord{
		ID:             s.cfg.NewID(),
		UserID:         s.userID,
		QuizID:         s.quiz.ID,
		QuizTitle:      s.quiz.Title,
		Score:          score,
		TotalQuestions: total,
		Percentage:     domain.Percentage(score, total),
		CompletedAt:    s.cfg.Now(),
	}
}

func (s *Session) viewLocked() SessionView {
	questions := make([]QuestionView, 0, len(s.questions))
	for _, q := range s.questions {
		questions = append(questions, QuestionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
	}
	return SessionView{
		ID:        s.id,
		QuizID:    s.quiz.ID,
		Title:     s.quiz.Title,
		Subject:   s.quiz.Subject,
		Status:    s.status,
		Cursor:    s.cursor,
		Remaining: s.remaining,
		TimeLimit: s.quiz.TimeLimitSeconds(),
		Answers:   copyAnswers(s.answers),
		Questions: questions,
	}
}

// broadcastLocked gives every subscriber its own copy of the result.
func (s *Session) broadcastLocked(ev SessionEvent) {
	ev.Status = s.status
	ev.Remaining = s.remaining
	result := ev.Result
	for ch := range s.subscribers {
		ev.Result = copyResult(result)
		select {
		case ch <- ev:
		default:
			// drop the oldest queued event so the clock never blocks on a slow reader
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func copyResult(r *domain.AttemptResult) *domain.AttemptResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func copyAnswers(in map[int]int) map[int]int {
	out := make(map[int]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
