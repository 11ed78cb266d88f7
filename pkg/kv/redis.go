package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Keys are namespaced with the
// configured prefix so the store can share a database with other services.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the configured Redis server and verifies the
// connection with a ping.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrFailedToConnect, err)
	}

	return &Redis{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewRedisFromClient wraps an existing client, for callers that manage the
// connection themselves (tests use this with miniredis).
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Healthcheck returns a probe suitable for readiness endpoints.
func (r *Redis) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		if err := r.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// GetItem implements Store.
func (r *Redis) GetItem(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return v, nil
}

// SetItem implements Store. Values are stored without expiry; the session
// backup this store carries is explicitly unlimited-lifetime.
func (r *Redis) SetItem(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Store.
func (r *Redis) RemoveItem(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}
