package database

import (
	"context"
	"fmt"
	"time"

	"opposite-match-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient holds the connection used for the survey metadata cache.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds a client for the configured Redis instance.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping verifies Redis is reachable.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the connection.
func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetClient exposes the raw client for handlers and tests.
func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
