package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client the backend uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisBackend stores entries as JSON strings under prefix+key, without TTL.
type RedisBackend struct {
	client redisClient
	prefix string
}

func NewRedisBackend(addr, prefix string) *RedisBackend {
	return NewRedisBackendWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

func NewRedisBackendWithClient(client redisClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) Load(ctx context.Context, key string) (*Entry, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return &e, nil
}

func (r *RedisBackend) Store(ctx context.Context, e *Entry, overwrite bool) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}

	if overwrite {
		if err := r.client.Set(ctx, r.prefix+e.Key, payload, 0).Err(); err != nil {
			return false, err
		}
		return true, nil
	}
	return r.client.SetNX(ctx, r.prefix+e.Key, payload, 0).Result()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisBackend) Close() error { return r.client.Close() }
