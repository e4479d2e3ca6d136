// Package cache stores header mapping suggestions in Redis so identical
// uploads do not repeat the AI round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds the startup ping.
const connectTimeout = 5 * time.Second

// RedisCache implements mapper.Cache on a Redis server.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to url (redis://[user:pass@]host:port/db) and
// verifies the connection with a ping.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get returns the cached mapping for key. A miss is (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}

	mapping, err := decode(val)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return mapping, true, nil
}

// Set stores mapping under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, mapping map[string]string) error {
	val, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable, for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func decode(val []byte) (map[string]string, error) {
	var mapping map[string]string
	if err := json.Unmarshal(val, &mapping); err != nil {
		return nil, fmt.Errorf("decode cached mapping: %w", err)
	}
	if mapping == nil {
		return nil, errors.New("decode cached mapping: null value")
	}
	return mapping, nil
}
