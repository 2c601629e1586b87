package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// FeatureStore persists orderbook feature records in the feature_records
// table. Depth and trade columns are stored as JSONB.
type FeatureStore struct {
	client *Client
}

var _ domain.FeatureStore = (*FeatureStore)(nil)

// NewFeatureStore creates a FeatureStore backed by the given client.
func NewFeatureStore(client *Client) *FeatureStore {
	return &FeatureStore{client: client}
}

// InsertBatch stores the given records in a single batched round trip.
// Records with a duplicate ID are skipped.
func (s *FeatureStore) InsertBatch(ctx context.Context, records []domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		bids, err := json.Marshal(r.Bids)
		if err != nil {
			return fmt.Errorf("postgres: marshal bid features: %w", err)
		}
		asks, err := json.Marshal(r.Asks)
		if err != nil {
			return fmt.Errorf("postgres: marshal ask features: %w", err)
		}
		trades, err := json.Marshal(r.Trades)
		if err != nil {
			return fmt.Errorf("postgres: marshal trade summary: %w", err)
		}

		batch.Queue(`
			INSERT INTO feature_records
				(id, product_id, ts, best_bid, best_ask, mid_price, spread, spread_pct, bids, asks, trades)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING`,
			r.ID, r.ProductID, r.Timestamp,
			r.BestBid, r.BestAsk, r.MidPrice, r.Spread, r.SpreadPct,
			bids, asks, trades,
		)
	}

	results := s.client.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert feature record: %w", err)
		}
	}
	return nil
}

// ListBefore returns all records older than the given time, oldest first.
func (s *FeatureStore) ListBefore(ctx context.Context, before time.Time) ([]domain.FeatureRecord, error) {
	rows, err := s.client.pool.Query(ctx, `
		SELECT id, product_id, ts, best_bid, best_ask, mid_price, spread, spread_pct, bids, asks, trades
		FROM feature_records WHERE ts < $1 ORDER BY ts ASC`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list feature records before %s: %w", before, err)
	}
	defer rows.Close()

	var records []domain.FeatureRecord
	for rows.Next() {
		var (
			r                  domain.FeatureRecord
			bids, asks, trades []byte
		)
		err := rows.Scan(
			&r.ID, &r.ProductID, &r.Timestamp,
			&r.BestBid, &r.BestAsk, &r.MidPrice, &r.Spread, &r.SpreadPct,
			&bids, &asks, &trades,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan feature record: %w", err)
		}
		if err := json.Unmarshal(bids, &r.Bids); err != nil {
			return nil, fmt.Errorf("postgres: decode bid features: %w", err)
		}
		if err := json.Unmarshal(asks, &r.Asks); err != nil {
			return nil, fmt.Errorf("postgres: decode ask features: %w", err)
		}
		if err := json.Unmarshal(trades, &r.Trades); err != nil {
			return nil, fmt.Errorf("postgres: decode trade summary: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate feature records: %w", err)
	}
	return records, nil
}

// DeleteBefore removes records older than the given time and returns the
// number of rows deleted.
func (s *FeatureStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.client.pool.Exec(ctx,
		"DELETE FROM feature_records WHERE ts < $1", before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete feature records before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
