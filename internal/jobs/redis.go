package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long job records live in Redis after their last update.
const DefaultTTL = 24 * time.Hour

// RedisStore keeps each job as JSON under job:<id> and indexes jobs per user
// in a sorted set scored by creation time.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: client, ttl: ttl}
}

func jobKey(id uuid.UUID) string      { return fmt.Sprintf("job:%s", id) }
func userKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s:jobs", userID) }

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	ok, err := s.redis.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if !ok {
		return errors.New("job already exists")
	}
	pipe := s.redis.TxPipeline()
	pipe.ZAdd(ctx, userKey(job.UserID), redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID.String()})
	pipe.Expire(ctx, userKey(job.UserID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index job: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	ok, err := s.redis.SetXX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// ListByUser returns the user's jobs, newest first. Index entries whose
// record has expired are skipped.
func (s *RedisStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.redis.ZRevRange(ctx, userKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "job:" + id
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	out := make([]*Job, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(str), &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		out = append(out, &job)
	}
	return out, nil
}
