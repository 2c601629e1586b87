// Package venue manages per-exchange order book snapshots and the
// adapters that refresh them.
package venue

import (
	"sync"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// BookStore holds the latest book per venue. Books are replaced wholesale
// on every successful refresh; the index engine reads a point-in-time copy
// of the whole map. A venue that stops refreshing simply goes stale and is
// filtered out by the index engine; staleness is the down signal.
type BookStore struct {
	mu    sync.RWMutex
	books map[string]domain.VenueBook
}

// NewBookStore creates an empty BookStore.
func NewBookStore() *BookStore {
	return &BookStore{books: make(map[string]domain.VenueBook)}
}

// Put replaces a venue's book.
func (s *BookStore) Put(book domain.VenueBook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.VenueID] = book
}

// Snapshot returns a copy of the current venue→book map.
func (s *BookStore) Snapshot() map[string]domain.VenueBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.VenueBook, len(s.books))
	for id, b := range s.books {
		out[id] = b
	}
	return out
}

// Get returns one venue's book.
func (s *BookStore) Get(venueID string) (domain.VenueBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[venueID]
	return b, ok
}
