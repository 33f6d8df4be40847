package codestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each PendingCode as a JSON string under namespace:key. The Redis
// TTL only garbage-collects; expiry itself is decided by the Store.
type RedisBackend struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisBackend builds a backend on an existing client.
func NewRedisBackend(client redis.UniversalClient, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = "pending_code"
	}
	return &RedisBackend{client: client, namespace: namespace}
}

func (r *RedisBackend) key(k string) string {
	return r.namespace + ":" + k
}

func (r *RedisBackend) Get(ctx context.Context, key string) (*PendingCode, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pc PendingCode
	if err := json.Unmarshal(raw, &pc); err != nil {
		return nil, fmt.Errorf("decode pending code: %w", err)
	}
	return &pc, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, pc PendingCode, retain time.Duration) error {
	raw, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("encode pending code: %w", err)
	}
	return r.client.Set(ctx, r.key(key), raw, retain).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
