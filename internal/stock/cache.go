package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	lowStockVersionKey = "stock:lowstock:version"
	lowStockReportKey  = "stock:lowstock:report"
)

// LowStockCache caches the below-threshold report in Redis. Mutations bump a
// version counter instead of deleting keys, so stale entries age out by TTL.
type LowStockCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewLowStockCache instantiates the cache helper. A nil client degrades to
// loader passthrough.
func NewLowStockCache(client *redis.Client, ttl time.Duration) *LowStockCache {
	return &LowStockCache{client: client, ttl: ttl}
}

func (c *LowStockCache) version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, lowStockVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, lowStockVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates the cached report after a stock mutation. Best effort.
func (c *LowStockCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, lowStockVersionKey).Err()
}

// Fetch loads the cached report or populates it using the loader. Concurrent
// misses for the same version share a single loader call.
func (c *LowStockCache) Fetch(ctx context.Context, loader func(context.Context) ([]StockRecord, error)) ([]StockRecord, error) {
	if loader == nil {
		return nil, errors.New("stock: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.version(ctx)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("%s:%d", lowStockReportKey, ver)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var records []StockRecord
		if err := json.Unmarshal(raw, &records); err == nil {
			return records, nil
		}
	}
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		records, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(records); err == nil {
			_ = c.client.Set(ctx, key, payload, c.ttl).Err()
		}
		return records, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]StockRecord), nil
	}
}
