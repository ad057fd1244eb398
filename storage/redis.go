package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/VictorAMM/aiko-ryu-sub008/graph"
)

const (
	specPrefix     = "dagspec:"
	runPrefix      = "run:"
	snapshotPrefix = "snapshot:"
)

// RedisStorage is a Redis-backed implementation of the Storage interface.
// Values are stored as JSON under prefixed keys. Node outputs survive a
// round trip only as their JSON form; callers needing typed outputs should
// keep using MemoryStorage.
type RedisStorage struct {
	client *redis.Client
}

// RedisOptions extends redis.Options with additional configuration.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
}

// NewRedisStorage creates a new RedisStorage instance and verifies
// connectivity with a ping.
func NewRedisStorage(opts RedisOptions) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		IdleTimeout:  opts.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &RedisStorage{client: client}, nil
}

// withContextError handles context cancellation for operations that only return an error.
func withContextError(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// saveToRedis saves a value to Redis with the given key prefix and ID.
func (s *RedisStorage) saveToRedis(ctx context.Context, prefix, id string, value interface{}) error {
	return withContextError(ctx, func() error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s%s: %v", prefix, id, err)
		}
		key := prefix + id
		if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
			return fmt.Errorf("failed to set %s in Redis: %v", key, err)
		}
		return nil
	})
}

// getFromRedis retrieves and unmarshals a value from Redis with the given key prefix and ID.
func getFromRedis[T any](ctx context.Context, client *redis.Client, prefix, id string, errNotFound error) (T, error) {
	return withContext(ctx, func() (T, error) {
		var zero T
		key := prefix + id
		data, err := client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return zero, fmt.Errorf("%w: id=%s", errNotFound, id)
		} else if err != nil {
			return zero, fmt.Errorf("failed to get %s from Redis: %v", key, err)
		}

		var result T
		if err := json.Unmarshal(data, &result); err != nil {
			return zero, fmt.Errorf("failed to unmarshal %s: %v", key, err)
		}
		return result, nil
	})
}

// SaveSpec saves a DAG spec to Redis.
func (s *RedisStorage) SaveSpec(ctx context.Context, spec graph.DAGSpec) error {
	return s.saveToRedis(ctx, specPrefix, spec.ID, spec)
}

// GetSpec retrieves a DAG spec from Redis.
func (s *RedisStorage) GetSpec(ctx context.Context, id string) (graph.DAGSpec, error) {
	return getFromRedis[graph.DAGSpec](ctx, s.client, specPrefix, id, ErrSpecNotFound)
}

// SaveRun saves a workflow run record to Redis.
func (s *RedisStorage) SaveRun(ctx context.Context, run RunRecord) error {
	return s.saveToRedis(ctx, runPrefix, run.ID, run)
}

// GetRun retrieves a workflow run record from Redis.
func (s *RedisStorage) GetRun(ctx context.Context, id string) (RunRecord, error) {
	return getFromRedis[RunRecord](ctx, s.client, runPrefix, id, ErrRunNotFound)
}

// SaveSnapshot saves a snapshot to Redis.
func (s *RedisStorage) SaveSnapshot(ctx context.Context, snap SnapshotRecord) error {
	return s.saveToRedis(ctx, snapshotPrefix, snap.ID, snap)
}

// GetSnapshot retrieves a snapshot from Redis.
func (s *RedisStorage) GetSnapshot(ctx context.Context, id string) (SnapshotRecord, error) {
	return getFromRedis[SnapshotRecord](ctx, s.client, snapshotPrefix, id, ErrSnapshotNotFound)
}

// ClearTerminalRuns removes run records with a terminal status from Redis.
func (s *RedisStorage) ClearTerminalRuns(ctx context.Context) error {
	return withContextError(ctx, func() error {
		keys, err := s.client.Keys(ctx, runPrefix+"*").Result()
		if err != nil {
			return fmt.Errorf("failed to scan run keys: %v", err)
		}
		if len(keys) == 0 {
			return nil
		}

		pipe := s.client.Pipeline()
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			} else if err != nil {
				return fmt.Errorf("failed to get %s: %v", key, err)
			}

			var run RunRecord
			if err := json.Unmarshal(data, &run); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %v", key, err)
			}

			switch run.Status {
			case "completed", "cancelled", "failed":
				pipe.Del(ctx, key)
			}
		}

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to execute pipeline for deletion: %v", err)
		}
		return nil
	})
}

// Close closes the Redis client connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
