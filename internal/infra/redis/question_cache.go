package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"summit-trivia-service/internal/app"
	"summit-trivia-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches each session's enabled-question sequence in Redis as a
// JSON blob and falls through to the source repository on miss. Gameplay
// reads (every submit and phase transition lists enabled questions) hit the
// cache; lobby writes pass through and invalidate it.
type QuestionCache struct {
	client *redis.Client
	source app.QuestionRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, source app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListEnabled(ctx context.Context, sessionID string) ([]domain.Question, error) {
	key := c.enabledKey(sessionID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err == nil {
			return questions, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var questions []domain.Question
			if err := json.Unmarshal(raw, &questions); err == nil {
				return questions, nil
			}
		}

		questions, err := c.source.ListEnabled(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(questions); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) ListAll(ctx context.Context, sessionID string) ([]domain.Question, error) {
	return c.source.ListAll(ctx, sessionID)
}

func (c *QuestionCache) Get(ctx context.Context, questionID string) (domain.Question, error) {
	return c.source.Get(ctx, questionID)
}

func (c *QuestionCache) Save(ctx context.Context, question domain.Question) error {
	if err := c.source.Save(ctx, question); err != nil {
		return err
	}
	return c.invalidate(ctx, question.SessionID)
}

func (c *QuestionCache) DeleteQuestion(ctx context.Context, questionID string) error {
	question, err := c.source.Get(ctx, questionID)
	if err != nil {
		return err
	}
	if err := c.source.DeleteQuestion(ctx, questionID); err != nil {
		return err
	}
	return c.invalidate(ctx, question.SessionID)
}

func (c *QuestionCache) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := c.source.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}
	return c.invalidate(ctx, sessionID)
}

func (c *QuestionCache) invalidate(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, c.enabledKey(sessionID)).Err()
}

func (c *QuestionCache) enabledKey(sessionID string) string {
	return "trivia:questions:" + sessionID + ":enabled"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
