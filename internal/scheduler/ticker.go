// Package scheduler drives the periodic index computation: venue
// refresh, engine compute, and result publication.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/btcindex/internal/domain"
	"github.com/alanyoungcy/btcindex/internal/index"
	"github.com/alanyoungcy/btcindex/internal/venue"
)

// Publisher receives each computed index result. Withheld results are
// delivered too so consumers can observe gaps.
type Publisher interface {
	Publish(ctx context.Context, result domain.IndexResult) error
}

// Ticker runs the fixed-interval index loop. In polling mode it refreshes
// every venue concurrently before each compute; with no fetchers
// configured (streaming mode) it computes over whatever the book store
// currently holds.
type Ticker struct {
	store        *venue.BookStore
	fetchers     []venue.Fetcher
	engine       *index.Engine
	pub          Publisher
	interval     time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewTicker creates a Ticker. fetchers may be empty for streaming mode.
func NewTicker(store *venue.BookStore, fetchers []venue.Fetcher, engine *index.Engine, pub Publisher, interval, fetchTimeout time.Duration, logger *slog.Logger) *Ticker {
	return &Ticker{
		store:        store,
		fetchers:     fetchers,
		engine:       engine,
		pub:          pub,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		logger:       logger.With(slog.String("component", "index_ticker")),
	}
}

// Run executes the tick loop until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("index loop started",
		slog.Duration("interval", t.interval),
		slog.Int("polled_venues", len(t.fetchers)),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.tick(ctx, now)
		}
	}
}

// tick refreshes venues (polling mode), computes, and publishes.
func (t *Ticker) tick(ctx context.Context, now time.Time) {
	if len(t.fetchers) > 0 {
		t.refresh(ctx)
	}

	result := t.engine.Compute(t.store.Snapshot(), now)
	if result.Withheld() {
		t.logger.Info("index withheld", slog.Time("tick", now))
	} else {
		t.logger.Info("index computed",
			slog.Float64("value", *result.Value),
			slog.Any("venues", result.Venues),
		)
	}

	if err := t.pub.Publish(ctx, result); err != nil {
		t.logger.Error("publish failed", slog.String("error", err.Error()))
	}
}

// refresh pulls all venues concurrently. Each fetch is individually
// time-bounded and failures are isolated: a failing venue keeps its stale
// book, which the engine's freshness filter then drops.
func (t *Ticker) refresh(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range t.fetchers {
		f := f
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, t.fetchTimeout)
			defer cancel()

			book, err := f.Fetch(fctx)
			if err != nil {
				t.logger.Warn("venue refresh failed",
					slog.String("venue", f.VenueID()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			t.store.Put(book)
			return nil
		})
	}
	_ = g.Wait()
}
