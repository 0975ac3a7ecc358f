// Package cache keeps the last balance snapshot close to the API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/config"
	"stockledger/internal/domain"
	"stockledger/internal/port"
)

const balanceKey = "stockledger:balance_stock"

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type redisBalanceCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisBalanceCache stores the snapshot as one JSON value with a TTL.
func NewRedisBalanceCache(client redis.Cmdable, ttl time.Duration) port.BalanceCache {
	return &redisBalanceCache{client: client, ttl: ttl}
}

func (c *redisBalanceCache) Get(ctx context.Context) ([]domain.BalanceStock, bool, error) {
	raw, err := c.client.Get(ctx, balanceKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("balanceCache.Get: %w", err)
	}
	var rows []domain.BalanceStock
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("balanceCache.Get decode: %w", err)
	}
	return rows, true, nil
}

func (c *redisBalanceCache) Set(ctx context.Context, rows []domain.BalanceStock) error {
	if rows == nil {
		rows = []domain.BalanceStock{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("balanceCache.Set encode: %w", err)
	}
	if err := c.client.Set(ctx, balanceKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("balanceCache.Set: %w", err)
	}
	return nil
}

func (c *redisBalanceCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, balanceKey).Err(); err != nil {
		return fmt.Errorf("balanceCache.Invalidate: %w", err)
	}
	return nil
}
