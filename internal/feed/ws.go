// Package feed streams level2 order book data and trade executions over
// WebSocket into the book engine and trade-flow aggregator.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/btcindex/internal/book"
	"github.com/alanyoungcy/btcindex/internal/domain"
	"github.com/alanyoungcy/btcindex/internal/tradeflow"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// subscribeCmd is the subscription message sent after connecting.
type subscribeCmd struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channel    string   `json:"channel"`
}

// tradeEvent carries executions on the market_trades channel.
type tradeEvent struct {
	Type   string `json:"type"`
	Trades []struct {
		ProductID string `json:"product_id"`
		Price     string `json:"price"`
		Size      string `json:"size"`
		Side      string `json:"side"`
		Time      string `json:"time"`
	} `json:"trades"`
}

// tradeMessage is a market_trades channel frame.
type tradeMessage struct {
	Channel     string       `json:"channel"`
	SequenceNum int64        `json:"sequence_num"`
	Events      []tradeEvent `json:"events"`
}

// rawMessage is the envelope used to route frames by channel before full
// decoding.
type rawMessage struct {
	Channel     string `json:"channel"`
	SequenceNum int64  `json:"sequence_num"`
}

// BookFeed maintains a WebSocket subscription to the level2 and
// market_trades channels for one product, feeding the book engine and the
// trade aggregator. It reconnects forever with capped exponential backoff;
// a sequence gap forces a reconnect, whose fresh snapshot re-initializes
// the book.
type BookFeed struct {
	wsURL     string
	productID string
	engine    *book.Engine
	trades    *tradeflow.Aggregator
	logger    *slog.Logger

	lastSeq   int64
	seqSynced bool
	malformed atomic.Int64
}

// NewBookFeed creates a feed for the given product.
func NewBookFeed(wsURL, productID string, engine *book.Engine, trades *tradeflow.Aggregator, logger *slog.Logger) *BookFeed {
	return &BookFeed{
		wsURL:     wsURL,
		productID: productID,
		engine:    engine,
		trades:    trades,
		logger:    logger.With(slog.String("component", "book_feed"), slog.String("product", productID)),
	}
}

// Malformed returns how many inbound frames failed to decode.
func (f *BookFeed) Malformed() int64 { return f.malformed.Load() }

// Run connects and processes messages until ctx is cancelled. Transient
// failures, including detected sequence gaps, trigger reconnection with
// backoff; Run only returns on context cancellation.
func (f *BookFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection performs one dial/subscribe/read cycle. It always returns
// a non-nil error describing why the connection ended.
func (f *BookFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for _, channel := range []string{"level2", "market_trades"} {
		cmd := subscribeCmd{Type: "subscribe", ProductIDs: []string{f.productID}, Channel: channel}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(cmd); err != nil {
			return fmt.Errorf("feed: subscribe %s: %w", channel, err)
		}
	}
	f.logger.Info("feed subscribed")

	// A reconnect starts a new sequence scope.
	f.seqSynced = false

	// Keep-alive pings; the goroutine exits when the connection closes.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		if err := f.handleMessage(data); err != nil {
			return err
		}
	}
}

// handleMessage routes one inbound frame. Undecodable frames are counted
// and skipped; a sequence gap is returned as an error so the caller
// reconnects and resnapshots.
func (f *BookFeed) handleMessage(data []byte) error {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		f.malformed.Add(1)
		f.logger.Debug("dropping undecodable frame", slog.Int("len", len(data)))
		return nil
	}

	if err := f.checkSequence(raw.SequenceNum); err != nil {
		return err
	}

	switch raw.Channel {
	case "level2":
		var msg book.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			f.malformed.Add(1)
			return nil
		}
		f.applyBook(msg)
	case "market_trades":
		var msg tradeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.malformed.Add(1)
			return nil
		}
		f.applyTrades(msg)
	default:
		// Subscription acks and heartbeats are ignored.
	}
	return nil
}

// checkSequence tracks the per-connection sequence number. All channels
// share one sequence scope; a gap means dropped messages and forces a
// resync.
func (f *BookFeed) checkSequence(seq int64) error {
	if !f.seqSynced {
		f.lastSeq = seq
		f.seqSynced = true
		return nil
	}
	if seq != f.lastSeq+1 {
		f.logger.Warn("sequence gap, forcing resubscribe",
			slog.Int64("expected", f.lastSeq+1),
			slog.Int64("got", seq),
		)
		return fmt.Errorf("feed: %w: expected %d got %d", domain.ErrSequenceGap, f.lastSeq+1, seq)
	}
	f.lastSeq = seq
	return nil
}

func (f *BookFeed) applyBook(msg book.Message) {
	for _, ev := range msg.Events {
		switch ev.Type {
		case "snapshot":
			f.engine.ProcessSnapshot(book.Message{
				Channel:     msg.Channel,
				Timestamp:   msg.Timestamp,
				SequenceNum: msg.SequenceNum,
				Events:      []book.Event{ev},
			})
		case "update":
			f.engine.ProcessUpdate(book.Message{
				Channel:     msg.Channel,
				Timestamp:   msg.Timestamp,
				SequenceNum: msg.SequenceNum,
				Events:      []book.Event{ev},
			})
		}
	}
}

func (f *BookFeed) applyTrades(msg tradeMessage) {
	for _, ev := range msg.Events {
		for _, tr := range ev.Trades {
			price, errP := strconv.ParseFloat(tr.Price, 64)
			size, errS := strconv.ParseFloat(tr.Size, 64)
			if errP != nil || errS != nil {
				f.malformed.Add(1)
				continue
			}
			f.trades.AddTrade(price, size, domain.TradeSide(tr.Side))
		}
	}
}
