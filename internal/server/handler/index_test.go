package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

type fakeIndexCache struct {
	result domain.IndexResult
	err    error
}

func (c *fakeIndexCache) SetLatest(context.Context, domain.IndexResult) error { return nil }

func (c *fakeIndexCache) GetLatest(context.Context) (domain.IndexResult, error) {
	return c.result, c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetLatest(t *testing.T) {
	v := 50100.25
	cache := &fakeIndexCache{result: domain.IndexResult{
		Value:     &v,
		Venues:    []string{"coinbase", "kraken"},
		Timestamp: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}}
	h := NewIndexHandler(cache, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/index/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Value    *float64 `json:"value"`
		Withheld bool     `json:"withheld"`
		Venues   []string `json:"venues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Value)
	assert.Equal(t, v, *body.Value)
	assert.False(t, body.Withheld)
	assert.Equal(t, []string{"coinbase", "kraken"}, body.Venues)
}

func TestGetLatestNotFound(t *testing.T) {
	cache := &fakeIndexCache{err: domain.ErrNotFound}
	h := NewIndexHandler(cache, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/index/latest", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLatestWithoutCache(t *testing.T) {
	h := NewIndexHandler(nil, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/index/latest", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRecentWithoutStore(t *testing.T) {
	h := NewIndexHandler(&fakeIndexCache{}, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/index/recent", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
