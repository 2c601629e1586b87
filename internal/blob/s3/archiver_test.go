package s3blob

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

type fakeWriter struct {
	paths        []string
	contentTypes []string
	bodies       [][]byte
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.contentTypes = append(w.contentTypes, contentType)
	w.bodies = append(w.bodies, body)
	return nil
}

type fakeIndexStore struct {
	points  []domain.IndexPoint
	deleted []time.Time
}

func (s *fakeIndexStore) Insert(context.Context, float64, []string, time.Time) error {
	return nil
}

func (s *fakeIndexStore) ListRecent(context.Context, int) ([]domain.IndexPoint, error) {
	return s.points, nil
}

func (s *fakeIndexStore) ListBefore(_ context.Context, before time.Time) ([]domain.IndexPoint, error) {
	var out []domain.IndexPoint
	for _, p := range s.points {
		if p.Timestamp.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeIndexStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.deleted = append(s.deleted, before)
	return 0, nil
}

func TestArchiveIndexUploadsThenDeletes(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeIndexStore{points: []domain.IndexPoint{
		{ID: 1, Price: 50100.5, Venues: []string{"coinbase"}, Timestamp: cutoff.Add(-time.Hour)},
		{ID: 2, Price: 50101.0, Venues: []string{"coinbase", "kraken"}, Timestamp: cutoff.Add(-time.Minute)},
		{ID: 3, Price: 50102.0, Venues: []string{"kraken"}, Timestamp: cutoff.Add(time.Minute)},
	}}
	writer := &fakeWriter{}

	arch := NewArchiver(writer, store, nil)
	n, err := arch.ArchiveIndex(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, writer.paths, 1)
	assert.Equal(t, "archive/index/2026-08.jsonl", writer.paths[0])
	assert.Equal(t, "application/x-ndjson", writer.contentTypes[0])
	assert.Equal(t, 2, bytes.Count(writer.bodies[0], []byte("\n")))

	require.Len(t, store.deleted, 1)
	assert.True(t, store.deleted[0].Equal(cutoff))
}

func TestArchiveIndexEmptySkipsUpload(t *testing.T) {
	store := &fakeIndexStore{}
	writer := &fakeWriter{}

	arch := NewArchiver(writer, store, nil)
	n, err := arch.ArchiveIndex(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.paths)
	assert.Empty(t, store.deleted)
}
