// Package cache keeps hot, read-mostly data in Redis in front of the repositories.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/question"
)

const generationKey = "questions:gen"

// QuestionRepository caches the question bank in Redis and falls back to the wrapped repository on a miss.
// Keys are scoped by a generation counter that ReplaceQuestions bumps, so that a reload started before
// a replacement can never be read afterwards:
//
//	GET  questions:{gen}:role:{role}   JSON list of the questions eligible for role
//	HSET questions:{gen}:byid {id}     JSON question
//
// Redis errors are logged and served from the wrapped repository.
type QuestionRepository struct {
	client *redis.Client
	repo   question.Repository
	ttl    time.Duration
	logger core.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

var _ question.Repository = (*QuestionRepository)(nil)

func NewQuestionRepository(client *redis.Client, repo question.Repository, ttl time.Duration, logger core.Logger) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func roleKey(gen int64, role string) string {
	return fmt.Sprintf("questions:%d:role:%s", gen, role)
}

func byIDKey(gen int64) string {
	return fmt.Sprintf("questions:%d:byid", gen)
}

func (r *QuestionRepository) QueryQuestions(ctx context.Context, role string) ([]question.Question, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("question cache: reading generation: %v", err), err)
		return r.repo.QueryQuestions(ctx, role)
	}
	key := roleKey(gen, role)

	if qs, ok := r.getList(ctx, key); ok {
		return qs, nil
	}
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// another caller may have filled it meanwhile
		if qs, ok := r.getList(ctx, key); ok {
			return qs, nil
		}
		qs, err := r.repo.QueryQuestions(ctx, role)
		if err != nil {
			return nil, err
		}
		r.store(ctx, gen, key, qs)
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuestions(result.([]question.Question)), nil
}

func (r *QuestionRepository) GetQuestionsByID(ctx context.Context, ids ...string) ([]question.Question, error) {
	if len(ids) == 0 {
		return []question.Question{}, nil
	}
	gen, err := r.generation(ctx)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("question cache: reading generation: %v", err), err)
		return r.repo.GetQuestionsByID(ctx, ids...)
	}

	vals, err := r.client.HMGet(ctx, byIDKey(gen), ids...).Result()
	if err != nil {
		r.logger.Warn(fmt.Sprintf("question cache: reading questions: %v", err), err)
		return r.repo.GetQuestionsByID(ctx, ids...)
	}
	cached := make(map[string]question.Question, len(ids))
	var missing []string
	for i, v := range vals {
		var q question.Question
		s, ok := v.(string)
		if !ok || json.Unmarshal([]byte(s), &q) != nil {
			missing = append(missing, ids[i])
			continue
		}
		cached[ids[i]] = q
	}

	if len(missing) > 0 {
		loaded, err := r.repo.GetQuestionsByID(ctx, missing...)
		if err != nil {
			return nil, err
		}
		for _, q := range loaded {
			cached[q.ID] = q
		}
		r.store(ctx, gen, "", loaded)
	}

	qs := make([]question.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := cached[id]; ok {
			qs = append(qs, q)
		}
	}
	return qs, nil
}

// ReplaceQuestions writes through to the repository then moves every reader to a new generation.
func (r *QuestionRepository) ReplaceQuestions(ctx context.Context, qs []question.Question) ([]question.Question, error) {
	stored, err := r.repo.ReplaceQuestions(ctx, qs)
	if err != nil {
		return nil, err
	}
	if err = r.client.Incr(ctx, generationKey).Err(); err != nil {
		// readers would keep serving the previous bank
		return nil, errors.Wrap(err, "invalidating question cache")
	}
	return stored, nil
}

func (r *QuestionRepository) getList(ctx context.Context, key string) ([]question.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn(fmt.Sprintf("question cache: reading %s: %v", key, err), err)
		}
		return nil, false
	}
	var qs []question.Question
	if err = json.Unmarshal(raw, &qs); err != nil {
		return nil, false
	}
	return qs, true
}

// store saves qs by ID and, when listKey is set, as the list under listKey.
func (r *QuestionRepository) store(ctx context.Context, gen int64, listKey string, qs []question.Question) {
	ttl := r.ttlWithJitter()
	pipe := r.client.Pipeline()
	if listKey != "" {
		raw, err := json.Marshal(qs)
		if err != nil {
			r.logger.Error(fmt.Sprintf("question cache: encoding questions: %v", err), err)
			return
		}
		pipe.Set(ctx, listKey, raw, ttl)
	}
	if len(qs) > 0 {
		fields := make([]interface{}, 0, 2*len(qs))
		for _, q := range qs {
			raw, err := json.Marshal(q)
			if err != nil {
				r.logger.Error(fmt.Sprintf("question cache: encoding question %s: %v", q.ID, err), err)
				return
			}
			fields = append(fields, q.ID, raw)
		}
		pipe.HSet(ctx, byIDKey(gen), fields...)
		if ttl > 0 {
			pipe.Expire(ctx, byIDKey(gen), ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("question cache: storing generation "+strconv.FormatInt(gen, 10)+": "+err.Error(), err)
	}
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(int64(r.ttl)/10+1))
}

// copyQuestions keeps callers of a shared singleflight result from aliasing each other.
func copyQuestions(qs []question.Question) []question.Question {
	out := make([]question.Question, len(qs))
	for i, q := range qs {
		q.Roles = append([]string(nil), q.Roles...)
		if q.Options != nil {
			q.Options = append([]question.Option(nil), q.Options...)
		}
		if q.CorrectAnswer != nil {
			b := *q.CorrectAnswer
			q.CorrectAnswer = &b
		}
		out[i] = q
	}
	return out
}
