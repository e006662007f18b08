package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seoulquant/kimparb/internal/domain"
)

// mexcPingInterval keeps the MEXC connection alive; the server drops peers
// silent for 30 seconds and expects an application-level PING, not a control
// frame.
const mexcPingInterval = 20 * time.Second

// MEXCFeed streams trade deals and the 20-level limit depth from MEXC's spot
// websocket, using the JSON v3 channels.
type MEXCFeed struct {
	wsURL   string
	symbol  string // e.g. "XRPUSDT"
	onQuote QuoteHandler
	onBook  BookHandler
	logger  *slog.Logger
}

// NewMEXC creates a feed against MEXC's websocket endpoint,
// e.g. "wss://wbs.mexc.com/ws".
func NewMEXC(wsURL, symbol string, onQuote QuoteHandler, onBook BookHandler, logger *slog.Logger) *MEXCFeed {
	return &MEXCFeed{
		wsURL:   wsURL,
		symbol:  symbol,
		onQuote: onQuote,
		onBook:  onBook,
		logger: logger.With(
			slog.String("component", "feed"),
			slog.String("venue", domain.VenueMEXC.String()),
		),
	}
}

func (f *MEXCFeed) Venue() domain.Venue { return domain.VenueMEXC }

// Run connects, subscribes, and streams until ctx is cancelled.
func (f *MEXCFeed) Run(ctx context.Context) error {
	return runWithReconnect(ctx, f.logger, f.runConnection)
}

func (f *MEXCFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: mexc: connect: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{
		"method": "SUBSCRIPTION",
		"params": []string{
			"spot@public.deals.v3.api@" + f.symbol,
			"spot@public.limit.depth.v3.api@" + f.symbol + "@20",
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: mexc: subscribe: %w", err)
	}
	f.logger.Info("feed subscribed", slog.String("symbol", f.symbol))

	conn.SetReadDeadline(time.Now().Add(pongWait))

	go f.mexcPingLoop(ctx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: mexc: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		f.dispatch(raw)
	}
}

// mexcPingLoop sends the JSON PING frame MEXC expects.
func (f *MEXCFeed) mexcPingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(mexcPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(map[string]string{"method": "PING"}); err != nil {
				return
			}
		}
	}
}

// mexcMessage is the envelope for v3 JSON channels.
type mexcMessage struct {
	Channel string `json:"c"`
	Symbol  string `json:"s"`
	Time    int64  `json:"t"`
	Data    struct {
		Deals []struct {
			Price string `json:"p"`
			Qty   string `json:"v"`
			Time  int64  `json:"t"`
		} `json:"deals"`
		Bids []mexcLevel `json:"bids"`
		Asks []mexcLevel `json:"asks"`
	} `json:"d"`
}

type mexcLevel struct {
	Price string `json:"p"`
	Qty   string `json:"v"`
}

func (f *MEXCFeed) dispatch(raw []byte) {
	var msg mexcMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Channel == "" {
		return
	}

	switch {
	case len(msg.Data.Deals) > 0:
		if f.onQuote == nil {
			return
		}
		// The newest deal carries the current price.
		last := msg.Data.Deals[len(msg.Data.Deals)-1]
		price, _ := strconv.ParseFloat(last.Price, 64)
		if price <= 0 {
			return
		}
		f.onQuote(domain.PriceQuote{
			Venue:     domain.VenueMEXC,
			Symbol:    f.symbol,
			Price:     price,
			Timestamp: time.UnixMilli(last.Time),
		})

	case len(msg.Data.Bids) > 0 || len(msg.Data.Asks) > 0:
		if f.onBook == nil {
			return
		}
		snap := domain.OrderBookSnapshot{
			Venue:     domain.VenueMEXC,
			Symbol:    f.symbol,
			Bids:      parseMexcLevels(msg.Data.Bids),
			Asks:      parseMexcLevels(msg.Data.Asks),
			Timestamp: time.UnixMilli(msg.Time),
		}
		snap = snap.Normalize()
		f.onBook(snap)
	}
}

func parseMexcLevels(raw []mexcLevel) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		price, _ := strconv.ParseFloat(l.Price, 64)
		qty, _ := strconv.ParseFloat(l.Qty, 64)
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}
