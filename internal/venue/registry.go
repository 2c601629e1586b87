package venue

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// constructor builds a Fetcher for one known venue id.
type constructor func(client *http.Client) Fetcher

// registry statically maps venue ids to adapter constructors. Unknown ids
// are rejected at configuration time; there is no dynamic lookup.
var registry = map[string]constructor{
	"coinbase": func(c *http.Client) Fetcher { return NewCoinbaseFetcher(c, "BTC-USD") },
	"kraken":   func(c *http.Client) Fetcher { return NewKrakenFetcher(c, "XBTUSD", 500) },
	"bitstamp": func(c *http.Client) Fetcher { return NewBitstampFetcher(c, "btcusd") },
	"gemini":   func(c *http.Client) Fetcher { return NewGeminiFetcher(c, "btcusd") },
}

// KnownVenues returns the ids the registry can construct.
func KnownVenues() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	return out
}

// BuildFetchers constructs adapters for the requested venue ids. Ids the
// registry does not know are skipped with a warning so the system starts
// with a reduced venue set; zero usable venues is the one fatal case.
func BuildFetchers(ids []string, client *http.Client, logger *slog.Logger) ([]Fetcher, error) {
	fetchers := make([]Fetcher, 0, len(ids))
	for _, id := range ids {
		ctor, ok := registry[id]
		if !ok {
			logger.Warn("skipping unrecognized venue id", slog.String("venue", id))
			continue
		}
		fetchers = append(fetchers, ctor(client))
	}
	if len(fetchers) == 0 {
		return nil, fmt.Errorf("venue: %w (candidates: %v)", domain.ErrNoVenues, ids)
	}
	return fetchers, nil
}
