// Package queue hands job ids from the API server to workers through Redis.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	pendingKey    = "queue:jobs"
	cancelChannel = "jobs:cancel"
	cancelPrefix  = "jobs:cancelled:"

	// cancelTTL bounds how long a cancel request waits for a worker to pick
	// up the job it names.
	cancelTTL = 24 * time.Hour

	// DefaultWait is how long Dequeue blocks before reporting an empty queue.
	DefaultWait = 5 * time.Second
)

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Queue is a FIFO of job ids plus a broadcast channel for cancellations.
type Queue struct {
	redis *redis.Client
}

// New wraps an existing client.
func New(client *redis.Client) *Queue {
	return &Queue{redis: client}
}

// Enqueue appends a job id.
func (q *Queue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if err := q.redis.RPush(ctx, pendingKey, jobID.String()).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to wait for the next job id. ok is false when the queue
// stayed empty.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (id uuid.UUID, ok bool, err error) {
	if wait <= 0 {
		wait = DefaultWait
	}
	result, err := q.redis.BLPop(ctx, wait, pendingKey).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to dequeue job: %w", err)
	}
	id, err = uuid.Parse(result[1])
	if err != nil {
		log.WithField("value", result[1]).Warn("dropping malformed job id from queue")
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// Len returns the number of queued ids.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, pendingKey).Result()
}

func cancelKey(jobID uuid.UUID) string { return cancelPrefix + jobID.String() }

// PublishCancel records a cancel request for jobID and tells every worker to
// cancel it if it is running. The record outlives the broadcast, so a job
// still waiting in the queue is cancelled when a worker picks it up.
func (q *Queue) PublishCancel(ctx context.Context, jobID uuid.UUID) error {
	if err := q.redis.Set(ctx, cancelKey(jobID), 1, cancelTTL).Err(); err != nil {
		return fmt.Errorf("failed to record cancel: %w", err)
	}
	if err := q.redis.Publish(ctx, cancelChannel, jobID.String()).Err(); err != nil {
		return fmt.Errorf("failed to publish cancel: %w", err)
	}
	return nil
}

// CancelRequested reports whether a cancel was published for jobID.
func (q *Queue) CancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error) {
	n, err := q.redis.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cancel: %w", err)
	}
	return n > 0, nil
}

// Cancellations streams cancelled job ids until ctx is done. The subscription
// is established before Cancellations returns.
func (q *Queue) Cancellations(ctx context.Context) (<-chan uuid.UUID, error) {
	sub := q.redis.Subscribe(ctx, cancelChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan uuid.UUID)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				id, err := uuid.Parse(msg.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
