package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/jonathan/ai-visibility/internal/types"
)

// Key layout: visibility:job:v1:{id} -> JSON job, TTL = retention.
const keyPrefix = "visibility:job:v1:"

// maxUpdateRetries bounds optimistic-lock retries when writers race.
const maxUpdateRetries = 10

// RedisStore keeps jobs in Redis so several API instances share them.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore connects to Redis. addr example: "localhost:6379".
func NewRedisStore(addr, password string, db int, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{rdb: rdb, retention: retention, now: time.Now}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error { return s.rdb.Close() }

func jobKey(id string) string {
	return keyPrefix + id
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, job *types.Job) error {
	j, err := prepare(job, s.now())
	if err != nil {
		return err
	}
	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", j.ID, err)
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(j.ID), b, s.retention).Result()
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", j.ID, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", j.ID, ErrExists)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*types.Job, error) {
	return s.load(ctx, s.rdb, id)
}

// Update implements Store. The read-modify-write runs under WATCH and is
// retried when another writer changes the job first.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*types.Job) error) (*types.Job, error) {
	key := jobKey(id)
	var updated *types.Job

	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := apply(current, fn, s.now())
		if err != nil {
			return err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.retention)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("job %s: update contended after %d attempts", id, maxUpdateRetries)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// getter is the subset of redis.Client and redis.Tx used for reads.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (*types.Job, error) {
	val, err := c.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	var j types.Job
	if err := json.Unmarshal(val, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &j, nil
}
