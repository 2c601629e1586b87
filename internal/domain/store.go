package domain

import (
	"context"
	"io"
	"time"
)

// IndexPoint is one persisted index observation.
type IndexPoint struct {
	ID        int64
	Price     float64
	Venues    []string
	Timestamp time.Time
}

// IndexStore persists computed index values.
type IndexStore interface {
	Insert(ctx context.Context, price float64, venues []string, ts time.Time) error
	ListRecent(ctx context.Context, limit int) ([]IndexPoint, error)
	ListBefore(ctx context.Context, before time.Time) ([]IndexPoint, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// FeatureStore persists orderbook+trade feature records.
type FeatureStore interface {
	InsertBatch(ctx context.Context, records []FeatureRecord) error
	ListBefore(ctx context.Context, before time.Time) ([]FeatureRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// IndexCache caches the latest published index value for fast reads.
type IndexCache interface {
	SetLatest(ctx context.Context, result IndexResult) error
	GetLatest(ctx context.Context) (IndexResult, error)
}

// SignalBus is a lightweight pub/sub plus durable stream transport used to
// fan published results out to the WebSocket hub and other consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// RateLimiter enforces a per-key request budget over a rolling window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads archive objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver rolls aged records out of the primary store into blob storage.
type Archiver interface {
	ArchiveIndex(ctx context.Context, before time.Time) (int64, error)
	ArchiveFeatures(ctx context.Context, before time.Time) (int64, error)
}
