package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/seoulquant/kimparb/internal/domain"
)

// UpbitFeed streams ticker and orderbook messages from Upbit's public
// websocket. Bithumb's current public websocket speaks the same protocol
// (subscribe frame, message shapes, market codes), so the same feed serves
// both KRW venues.
type UpbitFeed struct {
	venue   domain.Venue
	wsURL   string
	code    string // market code, e.g. "KRW-XRP"
	onQuote QuoteHandler
	onBook  BookHandler
	logger  *slog.Logger
}

// NewUpbit creates a feed against Upbit's websocket endpoint.
func NewUpbit(wsURL, code string, onQuote QuoteHandler, onBook BookHandler, logger *slog.Logger) *UpbitFeed {
	return newUpbitProtocol(domain.VenueUpbit, wsURL, code, onQuote, onBook, logger)
}

// NewBithumb creates a feed against Bithumb's Upbit-compatible websocket
// endpoint.
func NewBithumb(wsURL, code string, onQuote QuoteHandler, onBook BookHandler, logger *slog.Logger) *UpbitFeed {
	return newUpbitProtocol(domain.VenueBithumb, wsURL, code, onQuote, onBook, logger)
}

func newUpbitProtocol(venue domain.Venue, wsURL, code string, onQuote QuoteHandler, onBook BookHandler, logger *slog.Logger) *UpbitFeed {
	return &UpbitFeed{
		venue:   venue,
		wsURL:   wsURL,
		code:    code,
		onQuote: onQuote,
		onBook:  onBook,
		logger: logger.With(
			slog.String("component", "feed"),
			slog.String("venue", venue.String()),
		),
	}
}

func (f *UpbitFeed) Venue() domain.Venue { return f.venue }

// Run connects, subscribes to ticker and orderbook for the configured market
// code, and streams until ctx is cancelled.
func (f *UpbitFeed) Run(ctx context.Context) error {
	return runWithReconnect(ctx, f.logger, f.runConnection)
}

func (f *UpbitFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: %s: connect: %w", f.venue, err)
	}
	defer conn.Close()

	sub := []any{
		map[string]string{"ticket": uuid.NewString()},
		map[string]any{"type": "ticker", "codes": []string{f.code}},
		map[string]any{"type": "orderbook", "codes": []string{f.code}},
		map[string]string{"format": "DEFAULT"},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: %s: subscribe: %w", f.venue, err)
	}
	f.logger.Info("feed subscribed", slog.String("code", f.code))

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
		// Upbit sends payloads as binary frames.
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: %s: read: %w", f.venue, err)
		}
		f.dispatch(raw)
	}
}

// upbitMessage covers both ticker and orderbook payloads.
type upbitMessage struct {
	Type              string  `json:"type"`
	Code              string  `json:"code"`
	TradePrice        float64 `json:"trade_price"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	Timestamp         int64   `json:"timestamp"`
	OrderbookUnits    []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
		AskSize  float64 `json:"ask_size"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

func (f *UpbitFeed) dispatch(raw []byte) {
	var msg upbitMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Debug("feed: drop unparsable message", slog.String("error", err.Error()))
		return
	}

	ts := time.UnixMilli(msg.Timestamp)
	switch msg.Type {
	case "ticker":
		if f.onQuote == nil || msg.TradePrice <= 0 {
			return
		}
		f.onQuote(domain.PriceQuote{
			Venue:     f.venue,
			Symbol:    msg.Code,
			Price:     msg.TradePrice,
			Volume24h: msg.AccTradeVolume24h,
			Timestamp: ts,
		})

	case "orderbook":
		if f.onBook == nil {
			return
		}
		snap := domain.OrderBookSnapshot{
			Venue:     f.venue,
			Symbol:    msg.Code,
			Bids:      make([]domain.PriceLevel, 0, len(msg.OrderbookUnits)),
			Asks:      make([]domain.PriceLevel, 0, len(msg.OrderbookUnits)),
			Timestamp: ts,
		}
		for _, u := range msg.OrderbookUnits {
			snap.Bids = append(snap.Bids, domain.PriceLevel{Price: u.BidPrice, Quantity: u.BidSize})
			snap.Asks = append(snap.Asks, domain.PriceLevel{Price: u.AskPrice, Quantity: u.AskSize})
		}
		snap = snap.Normalize()
		f.onBook(snap)
	}
}

// pingLoop keeps the connection alive with control-frame pings until ctx is
// cancelled or a write fails.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
