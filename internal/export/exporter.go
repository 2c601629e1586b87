package export

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/btcindex/internal/book"
	"github.com/alanyoungcy/btcindex/internal/domain"
	"github.com/alanyoungcy/btcindex/internal/tradeflow"
)

// maxDepth is how many levels per side the exporter reads from the
// engine: enough to cover the deepest feature checkpoint.
const maxDepth = 50

// Exporter periodically snapshots the book engine and trade aggregator
// into feature records and flushes them to the store in batches. It is a
// read-only consumer of engine state: it never blocks the update path and
// tolerates seeing unchanged state across ticks.
type Exporter struct {
	engine    *book.Engine
	trades    *tradeflow.Aggregator
	store     domain.FeatureStore
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewExporter creates an Exporter emitting one record per interval,
// flushing every batchSize records.
func NewExporter(engine *book.Engine, trades *tradeflow.Aggregator, store domain.FeatureStore, interval time.Duration, batchSize int, logger *slog.Logger) *Exporter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Exporter{
		engine:    engine,
		trades:    trades,
		store:     store,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "feature_export")),
	}
}

// Run emits records until ctx is cancelled, flushing any buffered records
// before returning.
func (e *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("feature export started", slog.Duration("interval", e.interval))

	batch := make([]domain.FeatureRecord, 0, e.batchSize)
	for {
		select {
		case <-ctx.Done():
			e.flush(context.WithoutCancel(ctx), batch)
			return ctx.Err()
		case now := <-ticker.C:
			if !e.engine.Initialized() {
				continue
			}
			top := e.engine.TopLevels(maxDepth)
			summary := e.trades.SummaryAndReset()
			batch = append(batch, BuildRecord(top, summary, now))

			if len(batch) >= e.batchSize {
				e.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (e *Exporter) flush(ctx context.Context, batch []domain.FeatureRecord) {
	if len(batch) == 0 {
		return
	}
	if err := e.store.InsertBatch(ctx, batch); err != nil {
		e.logger.Error("feature batch insert failed",
			slog.Int("records", len(batch)),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Debug("feature batch flushed", slog.Int("records", len(batch)))
}
