package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// IndexStore persists computed index prices in the index_prices table.
type IndexStore struct {
	client *Client
}

var _ domain.IndexStore = (*IndexStore)(nil)

// NewIndexStore creates an IndexStore backed by the given client.
func NewIndexStore(client *Client) *IndexStore {
	return &IndexStore{client: client}
}

// Insert stores one index observation.
func (s *IndexStore) Insert(ctx context.Context, price float64, venues []string, ts time.Time) error {
	_, err := s.client.pool.Exec(ctx,
		"INSERT INTO index_prices (price, venues, ts) VALUES ($1, $2, $3)",
		price, venues, ts,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert index price: %w", err)
	}
	return nil
}

// ListRecent returns up to limit observations, newest first.
func (s *IndexStore) ListRecent(ctx context.Context, limit int) ([]domain.IndexPoint, error) {
	rows, err := s.client.pool.Query(ctx,
		"SELECT id, price, venues, ts FROM index_prices ORDER BY ts DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent index prices: %w", err)
	}
	defer rows.Close()

	return scanIndexPoints(rows)
}

// ListBefore returns all observations older than the given time, oldest first.
func (s *IndexStore) ListBefore(ctx context.Context, before time.Time) ([]domain.IndexPoint, error) {
	rows, err := s.client.pool.Query(ctx,
		"SELECT id, price, venues, ts FROM index_prices WHERE ts < $1 ORDER BY ts ASC",
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list index prices before %s: %w", before, err)
	}
	defer rows.Close()

	return scanIndexPoints(rows)
}

// DeleteBefore removes observations older than the given time and returns the
// number of rows deleted.
func (s *IndexStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.client.pool.Exec(ctx,
		"DELETE FROM index_prices WHERE ts < $1", before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete index prices before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanIndexPoints(rows pgx.Rows) ([]domain.IndexPoint, error) {
	var points []domain.IndexPoint
	for rows.Next() {
		var p domain.IndexPoint
		if err := rows.Scan(&p.ID, &p.Price, &p.Venues, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan index price: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate index prices: %w", err)
	}
	return points, nil
}
