package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"studyquiz/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from the system of record.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// QuizRepository caches quiz content in Redis and falls back to a loader on miss.
// Keys:
//
//	quiz:{quizID}:definition  JSON QuizDefinition
//	quiz:catalog              JSON []QuizSummary
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const catalogKey = "quiz:catalog"

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	return loadThrough(ctx, r, definitionKey(quizID), func() (domain.QuizDefinition, error) {
		return r.loader.LoadQuiz(ctx, quizID)
	})
}

// ListQuizzes returns the catalog ordered by title.
func (r *QuizRepository) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	return loadThrough(ctx, r, catalogKey, func() ([]domain.QuizSummary, error) {
		return r.loader.ListQuizzes(ctx)
	})
}

// loadThrough reads key as JSON, or loads it once across concurrent callers and
// writes it back. The write is best-effort; a loaded value is served regardless.
func loadThrough[T any](ctx context.Context, r *QuizRepository, key string, load func() (T, error)) (T, error) {
	var zero T
	if v, ok := cachedJSON[T](ctx, r.client, key); ok {
		return v, nil
	}
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if v, ok := cachedJSON[T](ctx, r.client, key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return zero, err
		}
		if raw, err := json.Marshal(v); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

func cachedJSON[T any](ctx context.Context, client *redis.Client, key string) (T, bool) {
	var v T
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

func definitionKey(quizID string) string {
	return "quiz:" + quizID + ":definition"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
