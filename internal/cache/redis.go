package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dapurpos/backend/internal/domain"
)

type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func daySalesCacheKey(branchID string, saleDate string) string {
	return "day-sales:" + branchID + ":" + saleDate
}

func (c *RedisReportCache) GetDaySales(ctx context.Context, branchID string, saleDate string) (*domain.DaySales, bool, error) {
	val, err := c.client.Get(ctx, daySalesCacheKey(branchID, saleDate)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.DaySales
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) SetDaySales(ctx context.Context, report domain.DaySales, ttl time.Duration) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, daySalesCacheKey(report.BranchID, report.SaleDate), payload, ttl).Err()
}

func (c *RedisReportCache) DeleteDaySales(ctx context.Context, branchID string, saleDate string) error {
	return c.client.Del(ctx, daySalesCacheKey(branchID, saleDate)).Err()
}
