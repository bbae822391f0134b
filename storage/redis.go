package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisBackend stores each snapshot as a plain string key without expiry.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if r.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	data, err := r.client.Get(ctx, prefixed(r.prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, data []byte) error {
	if r.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := r.client.Set(ctx, prefixed(r.prefix, key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return r.client.Del(ctx, prefixed(r.prefix, key)).Err()
}
