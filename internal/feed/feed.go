// Package feed streams real-time trade prices and orderbook snapshots from
// the venue websockets. Each feed owns one connection, reconnects with
// exponential backoff, and pushes parsed messages to the registered handlers.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// QuoteHandler is called for each trade price update.
type QuoteHandler func(domain.PriceQuote)

// BookHandler is called for each orderbook snapshot.
type BookHandler func(domain.OrderBookSnapshot)

// Feed is one venue's streaming connection.
type Feed interface {
	Venue() domain.Venue
	// Run connects and streams until ctx is cancelled, reconnecting on
	// disconnect.
	Run(ctx context.Context) error
}

// runWithReconnect drives connect until ctx is cancelled, doubling the retry
// delay on consecutive failures up to maxReconnectDelay.
func runWithReconnect(ctx context.Context, logger *slog.Logger, connect func(context.Context) error) error {
	delay := reconnectDelay
	for {
		start := time.Now()
		err := connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that lived for a while resets the backoff.
		if time.Since(start) > time.Minute {
			delay = reconnectDelay
		}
		logger.Warn("feed disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("retry_in", delay),
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

func errString(err error) string {
	if err == nil {
		return domain.ErrWSDisconnect.Error()
	}
	return err.Error()
}
