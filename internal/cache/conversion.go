// Package cache provides a Redis-backed cache for conversion metadata.
// Caching is optional: the service treats a nil cache as disabled.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scriptdeck/internal/config"
	"scriptdeck/internal/model"
)

// ConversionTTL bounds staleness of cached conversion metadata. Rows are
// immutable after creation, so the TTL mostly limits memory.
const ConversionTTL = 60 * time.Second

const conversionPrefix = "cache:conversion:"

// ConversionCache caches conversion metadata by ID.
type ConversionCache interface {
	// Get returns the cached conversion or nil on a miss.
	Get(ctx context.Context, id string) (*model.Conversion, error)
	// Set stores a conversion under its ID with the cache TTL.
	Set(ctx context.Context, conv *model.Conversion) error
	// Invalidate drops a cached conversion.
	Invalidate(ctx context.Context, id string) error
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisConversionCache is the Redis implementation of ConversionCache.
type RedisConversionCache struct {
	client *redis.Client
}

// NewConversionCache creates a RedisConversionCache.
func NewConversionCache(client *redis.Client) *RedisConversionCache {
	return &RedisConversionCache{client: client}
}

var _ ConversionCache = (*RedisConversionCache)(nil)

func (c *RedisConversionCache) Get(ctx context.Context, id string) (*model.Conversion, error) {
	data, err := c.client.Get(ctx, conversionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var conv model.Conversion
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *RedisConversionCache) Set(ctx context.Context, conv *model.Conversion) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, conversionPrefix+conv.ID, data, ConversionTTL).Err()
}

func (c *RedisConversionCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, conversionPrefix+id).Err()
}
