package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seoulquant/kimparb/internal/domain"
)

// quoteTTL expires stale quotes so external readers never act on a venue
// whose feed has been down for a while.
const quoteTTL = 5 * time.Minute

// PriceCache implements domain.PriceCache using Redis hashes. Each venue's
// latest quote is stored at "quote:{venue}:{symbol}" with fields for price,
// bid, ask, volume, and a Unix millisecond timestamp.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

var _ domain.PriceCache = (*PriceCache)(nil)

func quoteKey(venue domain.Venue, symbol string) string {
	return "quote:" + venue.String() + ":" + symbol
}

// SetQuote stores the latest quote for a venue and refreshes its TTL.
func (pc *PriceCache) SetQuote(ctx context.Context, quote domain.PriceQuote) error {
	key := quoteKey(quote.Venue, quote.Symbol)
	fields := map[string]interface{}{
		"price": formatFloat(quote.Price),
		"bid":   formatFloat(quote.Bid),
		"ask":   formatFloat(quote.Ask),
		"vol":   formatFloat(quote.Volume24h),
		"ts":    strconv.FormatInt(quote.Timestamp.UnixMilli(), 10),
	}

	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a venue. It returns
// domain.ErrNotFound when no quote is cached.
func (pc *PriceCache) GetQuote(ctx context.Context, venue domain.Venue, symbol string) (domain.PriceQuote, error) {
	key := quoteKey(venue, symbol)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.PriceQuote{}, domain.ErrNotFound
	}

	tsMilli, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse quote ts %s: %w", key, err)
	}

	return domain.PriceQuote{
		Venue:     venue,
		Symbol:    symbol,
		Price:     parseFloat(vals["price"]),
		Bid:       parseFloat(vals["bid"]),
		Ask:       parseFloat(vals["ask"]),
		Volume24h: parseFloat(vals["vol"]),
		Timestamp: time.UnixMilli(tsMilli),
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
