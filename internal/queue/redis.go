package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/seantiz/procgate/internal/model"
)

// Compile-time interface satisfaction check.
var _ Queue = (*RedisQueue)(nil)

// RedisQueue implements Queue as a Redis list of JSON encoded jobs.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue wraps an existing client. The queue takes ownership and
// closes it on Close.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// NewRedisQueueFromURL connects using a redis:// URL.
func NewRedisQueueFromURL(url string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisQueue(redis.NewClient(opts)), nil
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}

// Push RPUSHes the encoded job onto queueKey.
func (q *RedisQueue) Push(ctx context.Context, queueKey string, job model.Job) error {
	b, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, queueKey, b).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", queueKey, err)
	}
	return nil
}

// Len returns the number of pending jobs on queueKey.
func (q *RedisQueue) Len(ctx context.Context, queueKey string) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", queueKey, err)
	}
	return n, nil
}

// Range returns the pending jobs on queueKey from head to tail.
func (q *RedisQueue) Range(ctx context.Context, queueKey string) ([]model.Job, error) {
	raw, err := q.rdb.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", queueKey, err)
	}

	jobs := make([]model.Job, 0, len(raw))
	for _, s := range raw {
		var job model.Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
