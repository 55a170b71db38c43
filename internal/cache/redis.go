package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"alert-backtest-lab/internal/domain"
)

// DefaultPrefix namespaces trial keys in a shared Redis.
const DefaultPrefix = "backtest:trial:"

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // DefaultPrefix when empty
	TTL      time.Duration // 0 keeps entries forever
}

// RedisCache is a TrialCache backed by Redis, storing metrics as JSON.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &RedisCache{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

// Get fetches and decodes cached metrics.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.TrialMetrics, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var m domain.TrialMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("decode trial %s: %w", key, err)
	}
	return &m, true, nil
}

// Put encodes metrics as JSON and stores them with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, key string, m domain.TrialMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes keys from the cache.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.prefix + key
	}
	return c.client.Del(ctx, fullKeys...).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
