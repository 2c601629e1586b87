package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// latestKey holds the most recent index result as a JSON blob.
const latestKey = "index:latest"

// cachedResult is the stored shape; a null value round-trips the withheld
// case.
type cachedResult struct {
	Value     *float64 `json:"value"`
	Venues    []string `json:"venues"`
	Timestamp int64    `json:"ts_unix_nano"`
}

// IndexCache implements domain.IndexCache on Redis. The latest value
// carries a TTL so a dead publisher surfaces as a missing key rather than
// a frozen price.
type IndexCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewIndexCache creates an IndexCache backed by the given Client. ttl
// zero means no expiry.
func NewIndexCache(c *Client, ttl time.Duration) *IndexCache {
	return &IndexCache{rdb: c.Underlying(), ttl: ttl}
}

// SetLatest stores the most recent index result.
func (ic *IndexCache) SetLatest(ctx context.Context, result domain.IndexResult) error {
	payload, err := json.Marshal(cachedResult{
		Value:     result.Value,
		Venues:    result.Venues,
		Timestamp: result.Timestamp.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal index result: %w", err)
	}
	if err := ic.rdb.Set(ctx, latestKey, payload, ic.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set latest index: %w", err)
	}
	return nil
}

// GetLatest returns the most recent index result, or domain.ErrNotFound
// when none is cached.
func (ic *IndexCache) GetLatest(ctx context.Context) (domain.IndexResult, error) {
	data, err := ic.rdb.Get(ctx, latestKey).Bytes()
	if err == redis.Nil {
		return domain.IndexResult{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.IndexResult{}, fmt.Errorf("redis: get latest index: %w", err)
	}

	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.IndexResult{}, fmt.Errorf("redis: unmarshal latest index: %w", err)
	}
	return domain.IndexResult{
		Value:     cached.Value,
		Venues:    cached.Venues,
		Timestamp: time.Unix(0, cached.Timestamp),
	}, nil
}

// Compile-time interface check.
var _ domain.IndexCache = (*IndexCache)(nil)
