package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
	"github.com/alanyoungcy/btcindex/internal/index"
	"github.com/alanyoungcy/btcindex/internal/venue"
)

type stubFetcher struct {
	id   string
	book domain.VenueBook
	err  error
	slow bool
}

func (s *stubFetcher) VenueID() string { return s.id }

func (s *stubFetcher) Fetch(ctx context.Context) (domain.VenueBook, error) {
	if s.slow {
		<-ctx.Done()
		return domain.VenueBook{}, ctx.Err()
	}
	if s.err != nil {
		return domain.VenueBook{}, s.err
	}
	return s.book, nil
}

type capturePublisher struct {
	mu      sync.Mutex
	results []domain.IndexResult
}

func (p *capturePublisher) Publish(ctx context.Context, result domain.IndexResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return nil
}

func (p *capturePublisher) last() domain.IndexResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results[len(p.results)-1]
}

func testTicker(fetchers []venue.Fetcher, pub Publisher) *Ticker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTicker(
		venue.NewBookStore(),
		fetchers,
		index.NewEngine(index.DefaultParams()),
		pub,
		time.Second,
		100*time.Millisecond,
		logger,
	)
}

func goodBook(id string, ts time.Time) domain.VenueBook {
	return domain.VenueBook{
		VenueID: id,
		Bids:    []domain.PriceLevel{{Price: 50000, Size: 2}},
		Asks:    []domain.PriceLevel{{Price: 50001, Size: 2}},
		TS:      ts.UnixMilli(),
	}
}

func TestTickComputesAndPublishes(t *testing.T) {
	now := time.Now()
	pub := &capturePublisher{}
	tk := testTicker([]venue.Fetcher{
		&stubFetcher{id: "coinbase", book: goodBook("coinbase", now)},
		&stubFetcher{id: "kraken", book: goodBook("kraken", now)},
	}, pub)

	tk.tick(context.Background(), now)

	res := pub.last()
	if res.Withheld() {
		t.Fatal("expected a published value")
	}
	if len(res.Venues) != 2 {
		t.Fatalf("venues = %v", res.Venues)
	}
}

func TestTickIsolatesVenueFailures(t *testing.T) {
	now := time.Now()
	pub := &capturePublisher{}
	tk := testTicker([]venue.Fetcher{
		&stubFetcher{id: "coinbase", book: goodBook("coinbase", now)},
		&stubFetcher{id: "kraken", err: errors.New("connection refused")},
		&stubFetcher{id: "bitstamp", slow: true},
	}, pub)

	start := time.Now()
	tk.tick(context.Background(), now)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("hung venue stalled the tick for %v", elapsed)
	}

	res := pub.last()
	if res.Withheld() {
		t.Fatal("healthy venue should still produce an index")
	}
	if len(res.Venues) != 1 || res.Venues[0] != "coinbase" {
		t.Fatalf("venues = %v, want [coinbase]", res.Venues)
	}
}

func TestTickPublishesWithheldResult(t *testing.T) {
	pub := &capturePublisher{}
	tk := testTicker(nil, pub)

	tk.tick(context.Background(), time.Now())

	res := pub.last()
	if !res.Withheld() {
		t.Fatal("empty store must yield a withheld result")
	}
}
