package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

const redisKeyPrefix = "fraudguard:"

// RedisCache shares assessments and model artifacts across instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the configured Redis and verifies it answers.
func NewRedisCache(cfg domain.CacheConfig) (*RedisCache, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns nil, nil on a miss.
func (c *RedisCache) Get(ctx context.Context, scope string, key string) ([]byte, error) {
	full, err := scopedKey(scope, key)
	if err != nil {
		return nil, err
	}
	val, err := c.client.Get(ctx, redisKeyPrefix+full).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores value for ttl.
func (c *RedisCache) Set(ctx context.Context, scope string, key string, value []byte, ttl time.Duration) error {
	full, err := scopedKey(scope, key)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKeyPrefix+full, value, ttl).Err()
}

// Delete removes the key; a missing key is not an error.
func (c *RedisCache) Delete(ctx context.Context, scope string, key string) error {
	full, err := scopedKey(scope, key)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, redisKeyPrefix+full).Err()
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
