package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"smartseller/backend/internal/domain"
)

type RedisMarketReportCache struct {
	client *redis.Client
}

func NewRedisMarketReportCache(addr string, password string, db int) *RedisMarketReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisMarketReportCache{client: client}
}

func (c *RedisMarketReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMarketReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisMarketReportCache) Get(ctx context.Context, key string) (*domain.MarketReport, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.MarketReport
	if err := json.Unmarshal(val, &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisMarketReportCache) Set(ctx context.Context, key string, value *domain.MarketReport, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
