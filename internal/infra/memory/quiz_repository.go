package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"studyquiz/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader reads quiz content from the backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// QuizRepository serves quiz definitions and the catalog listing from
// process memory, reloading each entry once its TTL has passed.
type QuizRepository struct {
	loader  QuizLoader
	clock   func() time.Time
	quizzes *expiring[domain.QuizDefinition]
	catalog *expiring[[]domain.QuizSummary]
}

const catalogKey = "catalog"

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	r := &QuizRepository{loader: loader, clock: time.Now}
	spread := newJitter(ttl)
	now := func() time.Time { return r.clock() }
	r.quizzes = newExpiring[domain.QuizDefinition](spread, now)
	r.catalog = newExpiring[[]domain.QuizSummary](spread, now)
	return r
}

// GetQuiz returns one definition with its questions.
func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	return r.quizzes.get(quizID, func() (domain.QuizDefinition, error) {
		return r.loader.LoadQuiz(ctx, quizID)
	})
}

// ListQuizzes returns every quiz summary ordered by title. Callers get their own slice.
func (r *QuizRepository) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	list, err := r.catalog.get(catalogKey, func() ([]domain.QuizSummary, error) {
		return r.loader.ListQuizzes(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizSummary, len(list))
	copy(out, list)
	return out, nil
}

// StaticQuizLoader serves a fixed set of quizzes (demo mode and tests).
type StaticQuizLoader struct {
	quizzes map[string]domain.QuizDefinition
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizDefinition) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) ListQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	out := make([]domain.QuizSummary, 0, len(l.quizzes))
	for _, quiz := range l.quizzes {
		out = append(out, quiz.Summary())
	}
	domain.SortSummaries(out)
	return out, nil
}

// expiring is a keyed TTL cache. Concurrent misses for one key share a single load.
type expiring[T any] struct {
	ttl    *jitter
	now    func() time.Time
	loads  singleflight.Group
	mu     sync.RWMutex
	values map[string]expiringValue[T]
}

type expiringValue[T any] struct {
	value     T
	expiresAt time.Time
}

func newExpiring[T any](ttl *jitter, now func() time.Time) *expiring[T] {
	return &expiring[T]{ttl: ttl, now: now, values: make(map[string]expiringValue[T])}
}

func (c *expiring[T]) lookup(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	if !ok || !v.expiresAt.After(c.now()) {
		var zero T
		return zero, false
	}
	return v.value, true
}

func (c *expiring[T]) get(key string, load func() (T, error)) (T, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	v, err, _ := c.loads.Do(key, func() (interface{}, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		loaded, err := load()
		if err != nil {
			return loaded, err
		}
		c.mu.Lock()
		c.values[key] = expiringValue[T]{value: loaded, expiresAt: c.now().Add(c.ttl.next())}
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// jitter spreads expirations over ttl..ttl+10%.
type jitter struct {
	base time.Duration
	mu   sync.Mutex
	rnd  *rand.Rand
}

func newJitter(base time.Duration) *jitter {
	return &jitter{base: base, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (j *jitter) next() time.Duration {
	if j.base <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.base + time.Duration(j.rnd.Int63n(int64(j.base)/10+1))
}

