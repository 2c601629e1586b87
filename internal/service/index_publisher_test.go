package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

type fakeCache struct{ latest domain.IndexResult }

func (c *fakeCache) SetLatest(ctx context.Context, r domain.IndexResult) error {
	c.latest = r
	return nil
}

func (c *fakeCache) GetLatest(ctx context.Context) (domain.IndexResult, error) {
	return c.latest, nil
}

type fakeBus struct {
	published [][]byte
	streamed  [][]byte
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published = append(b.published, payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.streamed = append(b.streamed, payload)
	return nil
}

type fakeStore struct{ inserted []float64 }

func (s *fakeStore) Insert(ctx context.Context, price float64, venues []string, ts time.Time) error {
	s.inserted = append(s.inserted, price)
	return nil
}

func (s *fakeStore) ListRecent(ctx context.Context, limit int) ([]domain.IndexPoint, error) {
	return nil, nil
}

func (s *fakeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.IndexPoint, error) {
	return nil, nil
}

func (s *fakeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishFansOut(t *testing.T) {
	cache := &fakeCache{}
	bus := &fakeBus{}
	store := &fakeStore{}
	p := NewIndexPublisher(cache, bus, store, testLogger())

	value := 50123.45
	res := domain.IndexResult{
		Value:     &value,
		Venues:    []string{"coinbase", "kraken"},
		Timestamp: time.Now(),
	}
	if err := p.Publish(context.Background(), res); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if cache.latest.Value == nil || *cache.latest.Value != value {
		t.Fatalf("cache latest = %+v", cache.latest)
	}
	if len(bus.published) != 1 || len(bus.streamed) != 1 {
		t.Fatalf("bus publishes = %d, streams = %d", len(bus.published), len(bus.streamed))
	}
	if len(store.inserted) != 1 || store.inserted[0] != value {
		t.Fatalf("store inserts = %v", store.inserted)
	}

	var ev indexEvent
	if err := json.Unmarshal(bus.published[0], &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.Value == nil || *ev.Value != value || len(ev.Venues) != 2 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestPublishWithheldSkipsStore(t *testing.T) {
	bus := &fakeBus{}
	store := &fakeStore{}
	p := NewIndexPublisher(nil, bus, store, testLogger())

	res := domain.IndexResult{Timestamp: time.Now()}
	if err := p.Publish(context.Background(), res); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(store.inserted) != 0 {
		t.Fatal("withheld result must not be persisted")
	}
	if len(bus.published) != 1 {
		t.Fatal("withheld result should still be announced on the bus")
	}

	var ev indexEvent
	if err := json.Unmarshal(bus.published[0], &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.Value != nil {
		t.Fatalf("withheld event value = %v, want null", *ev.Value)
	}
}
