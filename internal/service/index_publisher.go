// Package service glues engine outputs to caches, stores, and the signal
// bus.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// indexChannel is the pub/sub channel index results are announced on.
const indexChannel = "index"

// indexStream is the durable stream index ticks are appended to.
const indexStream = "stream:index"

// indexEvent is the JSON wire shape published for each tick.
type indexEvent struct {
	Value     *float64 `json:"value"`
	Venues    []string `json:"venues"`
	Timestamp string   `json:"timestamp"`
}

// IndexPublisher fans a computed index result out to the latest-value
// cache, the signal bus (pub/sub plus durable stream), and the index
// store. Cache, bus, and store are each optional so reduced modes can run
// without their backing services; a failing sink is logged and does not
// block the others.
type IndexPublisher struct {
	cache  domain.IndexCache
	bus    domain.SignalBus
	store  domain.IndexStore
	logger *slog.Logger
}

// NewIndexPublisher creates an IndexPublisher. Any of cache, bus, store
// may be nil.
func NewIndexPublisher(cache domain.IndexCache, bus domain.SignalBus, store domain.IndexStore, logger *slog.Logger) *IndexPublisher {
	return &IndexPublisher{
		cache:  cache,
		bus:    bus,
		store:  store,
		logger: logger.With(slog.String("component", "index_publisher")),
	}
}

// Publish distributes one result. Withheld results reach the cache and
// the bus (consumers see the gap) but are not persisted as price points.
func (p *IndexPublisher) Publish(ctx context.Context, result domain.IndexResult) error {
	if p.cache != nil {
		if err := p.cache.SetLatest(ctx, result); err != nil {
			p.logger.Warn("index cache set failed", slog.String("error", err.Error()))
		}
	}

	if p.bus != nil {
		payload, err := json.Marshal(indexEvent{
			Value:     result.Value,
			Venues:    result.Venues,
			Timestamp: result.Timestamp.UTC().Format(time.RFC3339Nano),
		})
		if err == nil {
			if err := p.bus.Publish(ctx, indexChannel, payload); err != nil {
				p.logger.Warn("index publish failed", slog.String("error", err.Error()))
			}
			if err := p.bus.StreamAppend(ctx, indexStream, payload); err != nil {
				p.logger.Warn("index stream append failed", slog.String("error", err.Error()))
			}
		}
	}

	if p.store != nil && !result.Withheld() {
		if err := p.store.Insert(ctx, *result.Value, result.Venues, result.Timestamp); err != nil {
			p.logger.Error("index insert failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
