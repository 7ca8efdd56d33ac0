package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokokas/backend/internal/domain"
)

type RedisShiftCache struct {
	client *redis.Client
}

func NewRedisShiftCache(addr string, password string, db int) *RedisShiftCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisShiftCache{client: client}
}

func (c *RedisShiftCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisShiftCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection for the event publisher.
func (c *RedisShiftCache) Client() *redis.Client {
	return c.client
}

func (c *RedisShiftCache) Get(ctx context.Context, key string) (*domain.ShiftSummary, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summary domain.ShiftSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisShiftCache) Set(ctx context.Context, key string, value *domain.ShiftSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisShiftCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
