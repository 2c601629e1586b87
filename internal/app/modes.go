package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/btcindex/internal/book"
	"github.com/alanyoungcy/btcindex/internal/export"
	"github.com/alanyoungcy/btcindex/internal/feed"
	"github.com/alanyoungcy/btcindex/internal/index"
	"github.com/alanyoungcy/btcindex/internal/scheduler"
	"github.com/alanyoungcy/btcindex/internal/server"
	"github.com/alanyoungcy/btcindex/internal/server/handler"
	"github.com/alanyoungcy/btcindex/internal/server/ws"
	"github.com/alanyoungcy/btcindex/internal/service"
	"github.com/alanyoungcy/btcindex/internal/tradeflow"
	"github.com/alanyoungcy/btcindex/internal/venue"
)

// IndexMode polls venue depth snapshots and publishes the consolidated
// reference price every tick.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode")

	g, ctx := errgroup.WithContext(ctx)

	books, err := a.startIndexPipeline(ctx, g, deps)
	if err != nil {
		return err
	}

	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health: handler.NewHealthHandler(a.cfg.Mode),
			Index:  handler.NewIndexHandler(deps.IndexCache, deps.IndexStore, a.logger),
			Venues: handler.NewVenueHandler(books, a.logger),
		})
	}

	return g.Wait()
}

// BookMode maintains the local order book and trade flow from the exchange
// WebSocket feed, optionally exporting feature records.
func (a *App) BookMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting book mode")

	g, ctx := errgroup.WithContext(ctx)

	engine, err := a.startBookPipeline(ctx, g, deps)
	if err != nil {
		return err
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health: handler.NewHealthHandler(a.cfg.Mode),
			Book:   handler.NewBookHandler(engine, a.logger),
		})
	}

	return g.Wait()
}

// FullMode runs both pipelines plus archival and the complete API surface.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	books, err := a.startIndexPipeline(ctx, g, deps)
	if err != nil {
		return err
	}

	engine, err := a.startBookPipeline(ctx, g, deps)
	if err != nil {
		return err
	}

	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health: handler.NewHealthHandler(a.cfg.Mode),
			Index:  handler.NewIndexHandler(deps.IndexCache, deps.IndexStore, a.logger),
			Book:   handler.NewBookHandler(engine, a.logger),
			Venues: handler.NewVenueHandler(books, a.logger),
		})
	}

	return g.Wait()
}

// startIndexPipeline builds the venue fetchers, index engine, publisher, and
// tick loop, and registers the loop with the errgroup. It returns the venue
// book store for the API layer.
func (a *App) startIndexPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies) (*venue.BookStore, error) {
	httpClient := &http.Client{Timeout: a.cfg.Index.FetchTimeout.Duration}
	fetchers, err := venue.BuildFetchers(a.cfg.Index.Venues, httpClient, a.logger)
	if err != nil {
		return nil, fmt.Errorf("index pipeline: %w", err)
	}

	books := venue.NewBookStore()
	engine := index.NewEngine(index.Params{
		SpacingVol: a.cfg.Index.SpacingVol,
		DevMid:     a.cfg.Index.DevMid,
		ErrBand:    a.cfg.Index.ErrBand,
		MaxSample:  a.cfg.Index.MaxSample,
		Stale:      a.cfg.Index.MaxStale.Duration,
	})
	pub := service.NewIndexPublisher(deps.IndexCache, deps.SignalBus, deps.IndexStore, a.logger)

	ticker := scheduler.NewTicker(
		books, fetchers, engine, pub,
		a.cfg.Index.TickInterval.Duration,
		a.cfg.Index.FetchTimeout.Duration,
		a.logger,
	)
	g.Go(func() error {
		return ticker.Run(ctx)
	})

	return books, nil
}

// startBookPipeline builds the order book engine, trade aggregator, and
// WebSocket feed, plus the feature exporter when enabled. It returns the
// book engine for the API layer.
func (a *App) startBookPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies) (*book.Engine, error) {
	engine := book.NewEngine(a.cfg.Book.ProductID, int32(a.cfg.Book.Precision), a.logger)
	trades := tradeflow.NewAggregator(a.logger)

	bookFeed := feed.NewBookFeed(a.cfg.Book.WsURL, a.cfg.Book.ProductID, engine, trades, a.logger)
	g.Go(func() error {
		return bookFeed.Run(ctx)
	})

	if a.cfg.Export.Enabled {
		if deps.FeatureStore == nil {
			return nil, fmt.Errorf("book pipeline: export enabled but feature store is not wired")
		}
		exporter := export.NewExporter(
			engine, trades, deps.FeatureStore,
			a.cfg.Export.Interval.Duration,
			a.cfg.Export.BatchSize,
			a.logger,
		)
		g.Go(func() error {
			return exporter.Run(ctx)
		})
	}

	return engine, nil
}

// startArchiveLoop registers the cold-storage rollover loop when archival is
// enabled and its dependencies are wired.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}
	loop := scheduler.NewArchiveLoop(
		deps.Archiver,
		a.cfg.Archive.RetentionDays,
		a.cfg.Archive.Interval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return loop.Run(ctx)
	})
}

// startHTTPServer registers the HTTP server (and the WebSocket hub when the
// signal bus is wired) with the errgroup, shutting it down gracefully when
// the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, handlers server.Handlers) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			ProductID: a.cfg.Book.ProductID,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
