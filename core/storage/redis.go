package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisKV stores keys under a namespace prefix in a Redis database.
// Unlike a cache, entries never expire.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to redisURL and pings the server.
func NewRedisKV(ctx context.Context, redisURL, namespace string) (*RedisKV, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &RedisKV{client: client, prefix: namespace + ":"}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Clear removes every key in the namespace.
func (r *RedisKV) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisKV) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
