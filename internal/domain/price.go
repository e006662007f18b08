package domain

import "time"

// PriceQuote is the latest trade/top-of-book state for one venue. Produced by
// the feed layer; immutable once constructed.
type PriceQuote struct {
	Venue     Venue
	Symbol    string
	Price     float64 // last trade price, venue-local currency
	Bid       float64 // best bid
	Ask       float64 // best ask
	Volume24h float64
	Timestamp time.Time // microsecond precision from the venue feed
}

// MidPrice returns the bid/ask midpoint.
func (q PriceQuote) MidPrice() float64 {
	return (q.Bid + q.Ask) / 2
}

// Spread returns the absolute bid/ask spread.
func (q PriceQuote) Spread() float64 {
	return q.Ask - q.Bid
}

// SpreadPct returns the spread as a percentage of the midpoint.
func (q PriceQuote) SpreadPct() float64 {
	mid := q.MidPrice()
	if mid <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / mid * 100
}

// FxRate is the quote-currency-per-base-currency conversion rate (reference
// deployment: KRW per USDT) with provenance.
type FxRate struct {
	Rate      float64
	Source    string
	Timestamp time.Time
}

// Valid reports whether the rate is usable for conversion.
func (r FxRate) Valid() bool {
	return r.Rate > 0
}
