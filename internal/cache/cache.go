// Package cache 汇率等热点数据的缓存实现
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCache 以货币代码为键缓存汇率
type RateCache interface {
	GetRate(ctx context.Context, code string) (int64, bool, error)
	SetRate(ctx context.Context, code string, rate int64, ttl time.Duration) error
	DeleteRate(ctx context.Context, code string) error
}

func rateKey(code string) string {
	return "rate:" + code
}

// RedisRateCache 基于 go-redis 的实现
type RedisRateCache struct {
	client redis.UniversalClient
}

func NewRedisRateCache(client redis.UniversalClient) *RedisRateCache {
	return &RedisRateCache{client: client}
}

func (c *RedisRateCache) GetRate(ctx context.Context, code string) (int64, bool, error) {
	val, err := c.client.Get(ctx, rateKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	rate, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// 缓存内容损坏, 视为未命中
		return 0, false, nil
	}
	return rate, true, nil
}

func (c *RedisRateCache) SetRate(ctx context.Context, code string, rate int64, ttl time.Duration) error {
	return c.client.Set(ctx, rateKey(code), strconv.FormatInt(rate, 10), ttl).Err()
}

func (c *RedisRateCache) DeleteRate(ctx context.Context, code string) error {
	return c.client.Del(ctx, rateKey(code)).Err()
}

type memoryEntry struct {
	rate      int64
	expiresAt time.Time
}

// MemoryRateCache 进程内实现, 未配置 Redis 或测试时使用
type MemoryRateCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryRateCache() *MemoryRateCache {
	return &MemoryRateCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryRateCache) GetRate(_ context.Context, code string) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[code]
	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		return 0, false, nil
	}
	return e.rate, true, nil
}

func (c *MemoryRateCache) SetRate(_ context.Context, code string, rate int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{rate: rate}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[code] = e
	return nil
}

func (c *MemoryRateCache) DeleteRate(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	return nil
}
