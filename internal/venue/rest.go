package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// Fetcher produces a fresh VenueBook for one exchange. Implementations
// must honor ctx deadlines so one hung venue cannot stall a tick.
type Fetcher interface {
	VenueID() string
	Fetch(ctx context.Context) (domain.VenueBook, error)
}

// httpGetJSON fetches a URL and decodes the JSON body into out.
func httpGetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("venue: unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseLevels converts [[price, size, ...]] string arrays to PriceLevels,
// dropping unparseable rows and non-positive sizes.
func parseLevels(rows [][]json.Number) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		p, err1 := row[0].Float64()
		s, err2 := row[1].Float64()
		if err1 != nil || err2 != nil || s <= 0 {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}

// sortBook enforces the book invariants: bids descending, asks ascending.
func sortBook(b *domain.VenueBook) {
	sort.Slice(b.Bids, func(i, j int) bool { return b.Bids[i].Price > b.Bids[j].Price })
	sort.Slice(b.Asks, func(i, j int) bool { return b.Asks[i].Price < b.Asks[j].Price })
}

// ---------------------------------------------------------------------------
// Coinbase Exchange
// ---------------------------------------------------------------------------

// CoinbaseFetcher polls the Coinbase Exchange level-2 book endpoint.
type CoinbaseFetcher struct {
	client  *http.Client
	baseURL string
	product string
}

// NewCoinbaseFetcher creates a fetcher for the given product (e.g. "BTC-USD").
func NewCoinbaseFetcher(client *http.Client, product string) *CoinbaseFetcher {
	return &CoinbaseFetcher{
		client:  client,
		baseURL: "https://api.exchange.coinbase.com",
		product: product,
	}
}

func (f *CoinbaseFetcher) VenueID() string { return "coinbase" }

func (f *CoinbaseFetcher) Fetch(ctx context.Context) (domain.VenueBook, error) {
	var body struct {
		Bids [][]json.Number `json:"bids"`
		Asks [][]json.Number `json:"asks"`
	}
	url := fmt.Sprintf("%s/products/%s/book?level=2", f.baseURL, f.product)
	if err := httpGetJSON(ctx, f.client, url, &body); err != nil {
		return domain.VenueBook{}, fmt.Errorf("coinbase: %w", err)
	}

	book := domain.VenueBook{
		VenueID: f.VenueID(),
		Bids:    parseLevels(body.Bids),
		Asks:    parseLevels(body.Asks),
		TS:      time.Now().UnixMilli(),
	}
	sortBook(&book)
	return book, nil
}

// ---------------------------------------------------------------------------
// Kraken
// ---------------------------------------------------------------------------

// KrakenFetcher polls the Kraken public Depth endpoint.
type KrakenFetcher struct {
	client  *http.Client
	baseURL string
	pair    string
	depth   int
}

// NewKrakenFetcher creates a fetcher for the given pair (e.g. "XBTUSD").
func NewKrakenFetcher(client *http.Client, pair string, depth int) *KrakenFetcher {
	return &KrakenFetcher{
		client:  client,
		baseURL: "https://api.kraken.com",
		pair:    pair,
		depth:   depth,
	}
}

func (f *KrakenFetcher) VenueID() string { return "kraken" }

func (f *KrakenFetcher) Fetch(ctx context.Context) (domain.VenueBook, error) {
	var body struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Bids [][]json.Number `json:"bids"`
			Asks [][]json.Number `json:"asks"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/0/public/Depth?pair=%s&count=%d", f.baseURL, f.pair, f.depth)
	if err := httpGetJSON(ctx, f.client, url, &body); err != nil {
		return domain.VenueBook{}, fmt.Errorf("kraken: %w", err)
	}
	if len(body.Error) > 0 {
		return domain.VenueBook{}, fmt.Errorf("kraken: api error: %v", body.Error)
	}

	book := domain.VenueBook{
		VenueID: f.VenueID(),
		TS:      time.Now().UnixMilli(),
	}
	// Kraken keys the result by its internal pair name; there is exactly
	// one entry for a single-pair request.
	for _, side := range body.Result {
		book.Bids = parseLevels(side.Bids)
		book.Asks = parseLevels(side.Asks)
		break
	}
	sortBook(&book)
	return book, nil
}

// ---------------------------------------------------------------------------
// Bitstamp
// ---------------------------------------------------------------------------

// BitstampFetcher polls the Bitstamp order book endpoint.
type BitstampFetcher struct {
	client  *http.Client
	baseURL string
	pair    string
}

// NewBitstampFetcher creates a fetcher for the given pair (e.g. "btcusd").
func NewBitstampFetcher(client *http.Client, pair string) *BitstampFetcher {
	return &BitstampFetcher{
		client:  client,
		baseURL: "https://www.bitstamp.net",
		pair:    pair,
	}
}

func (f *BitstampFetcher) VenueID() string { return "bitstamp" }

func (f *BitstampFetcher) Fetch(ctx context.Context) (domain.VenueBook, error) {
	var body struct {
		Timestamp string          `json:"timestamp"`
		Bids      [][]json.Number `json:"bids"`
		Asks      [][]json.Number `json:"asks"`
	}
	url := fmt.Sprintf("%s/api/v2/order_book/%s/", f.baseURL, f.pair)
	if err := httpGetJSON(ctx, f.client, url, &body); err != nil {
		return domain.VenueBook{}, fmt.Errorf("bitstamp: %w", err)
	}

	ts := time.Now().UnixMilli()
	if sec, err := strconv.ParseInt(body.Timestamp, 10, 64); err == nil {
		ts = sec * 1000
	}

	book := domain.VenueBook{
		VenueID: f.VenueID(),
		Bids:    parseLevels(body.Bids),
		Asks:    parseLevels(body.Asks),
		TS:      ts,
	}
	sortBook(&book)
	return book, nil
}

// ---------------------------------------------------------------------------
// Gemini
// ---------------------------------------------------------------------------

// GeminiFetcher polls the Gemini order book endpoint.
type GeminiFetcher struct {
	client  *http.Client
	baseURL string
	symbol  string
}

// NewGeminiFetcher creates a fetcher for the given symbol (e.g. "btcusd").
func NewGeminiFetcher(client *http.Client, symbol string) *GeminiFetcher {
	return &GeminiFetcher{
		client:  client,
		baseURL: "https://api.gemini.com",
		symbol:  symbol,
	}
}

func (f *GeminiFetcher) VenueID() string { return "gemini" }

type geminiLevel struct {
	Price  json.Number `json:"price"`
	Amount json.Number `json:"amount"`
}

func geminiLevels(rows []geminiLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(rows))
	for _, row := range rows {
		p, err1 := row.Price.Float64()
		s, err2 := row.Amount.Float64()
		if err1 != nil || err2 != nil || s <= 0 {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}

func (f *GeminiFetcher) Fetch(ctx context.Context) (domain.VenueBook, error) {
	var body struct {
		Bids []geminiLevel `json:"bids"`
		Asks []geminiLevel `json:"asks"`
	}
	url := fmt.Sprintf("%s/v1/book/%s", f.baseURL, f.symbol)
	if err := httpGetJSON(ctx, f.client, url, &body); err != nil {
		return domain.VenueBook{}, fmt.Errorf("gemini: %w", err)
	}

	book := domain.VenueBook{
		VenueID: f.VenueID(),
		Bids:    geminiLevels(body.Bids),
		Asks:    geminiLevels(body.Asks),
		TS:      time.Now().UnixMilli(),
	}
	sortBook(&book)
	return book, nil
}
