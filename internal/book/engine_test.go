package book

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshotMsg() Message {
	return Message{
		Channel:     "level2",
		SequenceNum: 0,
		Events: []Event{{
			Type:      "snapshot",
			ProductID: "BTC-USD",
			Updates: []LevelUpdate{
				{Side: "bid", PriceLevel: "50000.00", NewQuantity: "1.5"},
				{Side: "bid", PriceLevel: "49999.50", NewQuantity: "2.0"},
				{Side: "offer", PriceLevel: "50001.00", NewQuantity: "1.2"},
				{Side: "offer", PriceLevel: "50001.50", NewQuantity: "0.8"},
			},
		}},
	}
}

func TestProcessSnapshot(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())

	require.True(t, e.ProcessSnapshot(snapshotMsg()))
	require.True(t, e.Initialized())

	top := e.TopLevels(10)
	require.Len(t, top.Bids, 2)
	require.Len(t, top.Asks, 2)
	assert.True(t, top.Bids[0].Price.Equal(decimal.RequireFromString("50000")))
	assert.True(t, top.Asks[0].Price.Equal(decimal.RequireFromString("50001")))

	info := e.SpreadInfo()
	require.NotNil(t, info.Spread)
	assert.InDelta(t, 1.0, *info.Spread, 1e-12)
	require.NotNil(t, info.Mid)
	assert.InDelta(t, 50000.5, *info.Mid, 1e-9)
}

func TestSnapshotIdempotent(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())
	require.True(t, e.ProcessSnapshot(snapshotMsg()))
	first := e.TopLevels(10)

	require.True(t, e.ProcessSnapshot(snapshotMsg()))
	second := e.TopLevels(10)

	require.Equal(t, len(first.Bids), len(second.Bids))
	require.Equal(t, len(first.Asks), len(second.Asks))
	for i := range first.Bids {
		assert.True(t, first.Bids[i].Price.Equal(second.Bids[i].Price))
		assert.True(t, first.Bids[i].Quantity.Equal(second.Bids[i].Quantity))
	}
	for i := range first.Asks {
		assert.True(t, first.Asks[i].Price.Equal(second.Asks[i].Price))
		assert.True(t, first.Asks[i].Quantity.Equal(second.Asks[i].Quantity))
	}
	assert.InDelta(t, *first.Spread.Spread, *second.Spread.Spread, 1e-12)
	assert.Equal(t, int64(2), e.Stats().SnapshotCount)
}

func TestSnapshotWithoutSnapshotEventLeavesBookIntact(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())
	require.True(t, e.ProcessSnapshot(snapshotMsg()))

	bad := Message{Events: []Event{{
		Type: "update",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "1", NewQuantity: "1"},
		},
	}}}

	assert.False(t, e.ProcessSnapshot(bad))
	assert.True(t, e.Initialized())

	top := e.TopLevels(10)
	require.Len(t, top.Bids, 2)
	require.Len(t, top.Asks, 2)
	info := e.SpreadInfo()
	require.NotNil(t, info.Mid)
	assert.InDelta(t, 50000.5, *info.Mid, 1e-9)
	assert.Equal(t, int64(1), e.Stats().SnapshotCount)
}

func TestUpdateBeforeSnapshotRejected(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())

	msg := Message{Events: []Event{{
		Type: "update",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "50000", NewQuantity: "1"},
		},
	}}}

	assert.False(t, e.ProcessUpdate(msg))
	assert.False(t, e.Initialized())
	assert.Equal(t, int64(0), e.Stats().UpdateCount)
	assert.Equal(t, 0, e.Stats().BidLevels)
}

func TestUpdateRemovesAndOverwrites(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())
	require.True(t, e.ProcessSnapshot(snapshotMsg()))

	// Remove the best ask, add a new best bid above the old one.
	update := Message{Events: []Event{{
		Type: "update",
		Updates: []LevelUpdate{
			{Side: "offer", PriceLevel: "50001.00", NewQuantity: "0"},
			{Side: "bid", PriceLevel: "50000.50", NewQuantity: "3.0"},
		},
	}}}
	require.True(t, e.ProcessUpdate(update))

	info := e.SpreadInfo()
	require.NotNil(t, info.BestBid)
	require.NotNil(t, info.BestAsk)
	assert.True(t, info.BestBid.Price.Equal(decimal.RequireFromString("50000.5")))
	assert.True(t, info.BestAsk.Price.Equal(decimal.RequireFromString("50001.5")))
	require.NotNil(t, info.Spread)
	assert.InDelta(t, 1.0, *info.Spread, 1e-12)

	// The removed level never reappears in the projection.
	for _, lvl := range e.TopLevels(50).Asks {
		assert.False(t, lvl.Price.Equal(decimal.RequireFromString("50001")))
	}
}

func TestUpdateOverwritesQuantityAbsolute(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())
	require.True(t, e.ProcessSnapshot(snapshotMsg()))

	// new_quantity is the absolute size at the level, not a delta.
	update := Message{Events: []Event{{
		Type: "update",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "50000.00", NewQuantity: "0.25"},
		},
	}}}
	require.True(t, e.ProcessUpdate(update))

	top := e.TopLevels(1)
	require.Len(t, top.Bids, 1)
	assert.True(t, top.Bids[0].Quantity.Equal(decimal.RequireFromString("0.25")))
}

func TestDuplicatePriceLastWriteWins(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())

	msg := Message{Events: []Event{{
		Type: "snapshot",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "50000", NewQuantity: "1.0"},
			{Side: "bid", PriceLevel: "50000.00", NewQuantity: "2.5"},
		},
	}}}
	require.True(t, e.ProcessSnapshot(msg))

	top := e.TopLevels(10)
	require.Len(t, top.Bids, 1, "equal prices with different exponents must collide")
	assert.True(t, top.Bids[0].Quantity.Equal(decimal.RequireFromString("2.5")))
}

func TestSortInvariant(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())

	msg := Message{Events: []Event{{
		Type: "snapshot",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "49998", NewQuantity: "1"},
			{Side: "bid", PriceLevel: "50000", NewQuantity: "1"},
			{Side: "bid", PriceLevel: "49999", NewQuantity: "1"},
			{Side: "offer", PriceLevel: "50003", NewQuantity: "1"},
			{Side: "offer", PriceLevel: "50001", NewQuantity: "1"},
			{Side: "offer", PriceLevel: "50002", NewQuantity: "1"},
		},
	}}}
	require.True(t, e.ProcessSnapshot(msg))

	top := e.TopLevels(10)
	for i := 1; i < len(top.Bids); i++ {
		assert.True(t, top.Bids[i-1].Price.GreaterThan(top.Bids[i].Price),
			"bids must be strictly descending")
	}
	for i := 1; i < len(top.Asks); i++ {
		assert.True(t, top.Asks[i-1].Price.LessThan(top.Asks[i].Price),
			"asks must be strictly ascending")
	}
}

func TestMalformedUpdatesSkipped(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())
	require.True(t, e.ProcessSnapshot(snapshotMsg()))

	update := Message{Events: []Event{{
		Type: "update",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "not-a-price", NewQuantity: "1"},
			{Side: "sideways", PriceLevel: "50000", NewQuantity: "1"},
			{Side: "bid", PriceLevel: "49990", NewQuantity: "bogus"},
			{Side: "bid", PriceLevel: "49995", NewQuantity: "1.0"},
		},
	}}}
	require.True(t, e.ProcessUpdate(update), "batch continues past bad updates")

	st := e.Stats()
	assert.Equal(t, int64(3), st.SkippedCount)
	assert.Equal(t, 3, st.BidLevels, "the one valid update landed")
}

func TestEmptySideSpreadUndefined(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())

	msg := Message{Events: []Event{{
		Type: "snapshot",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "50000", NewQuantity: "1"},
		},
	}}}
	require.True(t, e.ProcessSnapshot(msg))

	info := e.SpreadInfo()
	assert.Nil(t, info.Spread)
	assert.Nil(t, info.Mid)
	assert.Nil(t, info.SpreadPct)
	assert.Nil(t, info.BestAsk)
	require.NotNil(t, info.BestBid)
}

func TestSecondSnapshotReplacesBook(t *testing.T) {
	e := NewEngine("BTC-USD", 8, testLogger())
	require.True(t, e.ProcessSnapshot(snapshotMsg()))

	resync := Message{Events: []Event{{
		Type: "snapshot",
		Updates: []LevelUpdate{
			{Side: "bid", PriceLevel: "51000", NewQuantity: "1"},
			{Side: "offer", PriceLevel: "51001", NewQuantity: "1"},
		},
	}}}
	require.True(t, e.ProcessSnapshot(resync))

	top := e.TopLevels(50)
	require.Len(t, top.Bids, 1)
	require.Len(t, top.Asks, 1)
	assert.True(t, top.Bids[0].Price.Equal(decimal.RequireFromString("51000")))
}
