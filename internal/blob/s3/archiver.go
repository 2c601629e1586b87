package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the primary stores for
// aged records, serializing them to JSONL, uploading the result to S3, and
// then deleting the archived rows from the primary store. Deletion only runs
// after a successful upload.
type ArchiveImpl struct {
	writer   domain.BlobWriter
	index    domain.IndexStore
	features domain.FeatureStore
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, index domain.IndexStore, features domain.FeatureStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:   writer,
		index:    index,
		features: features,
	}
}

// ArchiveIndex rolls index observations older than the cutoff out to S3 at
// archive/index/YYYY-MM.jsonl and removes them from the primary store. It
// returns the number of records archived.
func (a *ArchiveImpl) ArchiveIndex(ctx context.Context, before time.Time) (int64, error) {
	points, err := a.index.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive index query: %w", err)
	}
	if len(points) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(points)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive index marshal: %w", err)
	}

	path := archivePath("index", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive index upload: %w", err)
	}

	if _, err := a.index.DeleteBefore(ctx, before); err != nil {
		return int64(len(points)), fmt.Errorf("s3blob: archive index delete: %w", err)
	}
	return int64(len(points)), nil
}

// ArchiveFeatures rolls feature records older than the cutoff out to S3 at
// archive/features/YYYY-MM.jsonl and removes them from the primary store. It
// returns the number of records archived.
func (a *ArchiveImpl) ArchiveFeatures(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.features.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive features query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive features marshal: %w", err)
	}

	path := archivePath("features", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive features upload: %w", err)
	}

	if _, err := a.features.DeleteBefore(ctx, before); err != nil {
		return int64(len(records)), fmt.Errorf("s3blob: archive features delete: %w", err)
	}
	return int64(len(records)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/index/2026-08.jsonl
//	archive/features/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
