package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seoulquant/kimparb/internal/domain"
)

// BinanceFeed streams the 24h ticker and the 20-level partial book from
// Binance's spot websocket.
type BinanceFeed struct {
	wsURL   string
	symbol  string // e.g. "XRPUSDT"
	onQuote QuoteHandler
	onBook  BookHandler
	logger  *slog.Logger
}

// NewBinance creates a feed against Binance's raw-stream websocket endpoint,
// e.g. "wss://stream.binance.com:9443/ws".
func NewBinance(wsURL, symbol string, onQuote QuoteHandler, onBook BookHandler, logger *slog.Logger) *BinanceFeed {
	return &BinanceFeed{
		wsURL:   wsURL,
		symbol:  symbol,
		onQuote: onQuote,
		onBook:  onBook,
		logger: logger.With(
			slog.String("component", "feed"),
			slog.String("venue", domain.VenueBinance.String()),
		),
	}
}

func (f *BinanceFeed) Venue() domain.Venue { return domain.VenueBinance }

// Run connects, subscribes, and streams until ctx is cancelled.
func (f *BinanceFeed) Run(ctx context.Context) error {
	return runWithReconnect(ctx, f.logger, f.runConnection)
}

func (f *BinanceFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: binance: connect: %w", err)
	}
	defer conn.Close()

	stream := strings.ToLower(f.symbol)
	sub := map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{stream + "@ticker", stream + "@depth20@100ms"},
		"id":     1,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: binance: subscribe: %w", err)
	}
	f.logger.Info("feed subscribed", slog.String("symbol", f.symbol))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go pingLoop(ctx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: binance: read: %w", err)
		}
		f.dispatch(raw)
	}
}

// binanceMessage covers the ticker event and the partial depth payload, which
// arrives without an event type on the raw-stream endpoint.
type binanceMessage struct {
	Event        string     `json:"e"`
	Symbol       string     `json:"s"`
	LastPrice    string     `json:"c"`
	BestBid      string     `json:"b"`
	BestAsk      string     `json:"a"`
	Volume       string     `json:"v"`
	EventTime    int64      `json:"E"`
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (f *BinanceFeed) dispatch(raw []byte) {
	var msg binanceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Debug("feed: drop unparsable message", slog.String("error", err.Error()))
		return
	}

	switch {
	case msg.Event == "24hrTicker":
		if f.onQuote == nil {
			return
		}
		price, _ := strconv.ParseFloat(msg.LastPrice, 64)
		if price <= 0 {
			return
		}
		bid, _ := strconv.ParseFloat(msg.BestBid, 64)
		ask, _ := strconv.ParseFloat(msg.BestAsk, 64)
		vol, _ := strconv.ParseFloat(msg.Volume, 64)
		f.onQuote(domain.PriceQuote{
			Venue:     domain.VenueBinance,
			Symbol:    f.symbol,
			Price:     price,
			Bid:       bid,
			Ask:       ask,
			Volume24h: vol,
			Timestamp: time.UnixMilli(msg.EventTime),
		})

	case msg.LastUpdateID > 0:
		if f.onBook == nil {
			return
		}
		snap := domain.OrderBookSnapshot{
			Venue:     domain.VenueBinance,
			Symbol:    f.symbol,
			Bids:      parseLevels(msg.Bids),
			Asks:      parseLevels(msg.Asks),
			Timestamp: time.Now(),
		}
		snap = snap.Normalize()
		f.onBook(snap)
	}
}

func parseLevels(raw [][]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(l[0], 64)
		qty, _ := strconv.ParseFloat(l[1], 64)
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}
