package venue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBookStorePutReplacesWholesale(t *testing.T) {
	s := NewBookStore()

	s.Put(domain.VenueBook{
		VenueID: "coinbase",
		Bids:    []domain.PriceLevel{{Price: 100, Size: 1}, {Price: 99, Size: 1}},
		Asks:    []domain.PriceLevel{{Price: 101, Size: 1}},
		TS:      1,
	})
	s.Put(domain.VenueBook{
		VenueID: "coinbase",
		Bids:    []domain.PriceLevel{{Price: 100.5, Size: 2}},
		Asks:    []domain.PriceLevel{{Price: 101.5, Size: 2}},
		TS:      2,
	})

	b, ok := s.Get("coinbase")
	if !ok {
		t.Fatal("book missing")
	}
	if len(b.Bids) != 1 || b.Bids[0].Price != 100.5 || b.TS != 2 {
		t.Fatalf("old book leaked through: %+v", b)
	}
}

func TestBookStoreSnapshotIsCopy(t *testing.T) {
	s := NewBookStore()
	s.Put(domain.VenueBook{VenueID: "kraken", TS: 1})

	snap := s.Snapshot()
	delete(snap, "kraken")

	if _, ok := s.Get("kraken"); !ok {
		t.Fatal("mutating the snapshot must not affect the store")
	}
}

func TestBuildFetchersSkipsUnknown(t *testing.T) {
	fetchers, err := BuildFetchers([]string{"coinbase", "lmaxdigital", "kraken"}, http.DefaultClient, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetchers) != 2 {
		t.Fatalf("got %d fetchers, want 2", len(fetchers))
	}
}

func TestBuildFetchersAllUnknownFatal(t *testing.T) {
	_, err := BuildFetchers([]string{"nope", "also-nope"}, http.DefaultClient, testLogger())
	if !errors.Is(err, domain.ErrNoVenues) {
		t.Fatalf("err = %v, want ErrNoVenues", err)
	}
}

func TestCoinbaseFetchParsesBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"bids": [["50000.00","1.5","3"], ["49999.50","0","1"], ["49999.00","2.0","2"]],
			"asks": [["50001.00","1.2","1"], ["50002.00","0.8","1"]]
		}`)
	}))
	defer srv.Close()

	f := NewCoinbaseFetcher(srv.Client(), "BTC-USD")
	f.baseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	book, err := f.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(book.Bids) != 2 {
		t.Fatalf("zero-size bid retained: %+v", book.Bids)
	}
	if book.Bids[0].Price != 50000 || book.Bids[1].Price != 49999 {
		t.Fatalf("bids not descending: %+v", book.Bids)
	}
	if book.Asks[0].Price != 50001 {
		t.Fatalf("asks not ascending: %+v", book.Asks)
	}
	if book.TS == 0 {
		t.Fatal("timestamp not set")
	}
}

func TestKrakenFetchParsesBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"error": [],
			"result": {"XXBTZUSD": {
				"bids": [["50000.0","1.000",1700000000]],
				"asks": [["50001.0","2.000",1700000000]]
			}}
		}`)
	}))
	defer srv.Close()

	f := NewKrakenFetcher(srv.Client(), "XBTUSD", 500)
	f.baseURL = srv.URL

	book, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(book.Bids) != 1 || book.Bids[0].Price != 50000 {
		t.Fatalf("bids = %+v", book.Bids)
	}
}

func TestFetchTimeoutIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := NewCoinbaseFetcher(srv.Client(), "BTC-USD")
	f.baseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := f.Fetch(ctx); err == nil {
		t.Fatal("expected a deadline error from a hung venue")
	}
}
