// Package liquidity provides pure functions over a single order-book
// snapshot: spread/depth/imbalance metrics and fill simulation. Nothing here
// blocks, locks, or errors; degenerate books degrade to zero-valued results
// that callers must check with Valid().
package liquidity

import (
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// DefaultDepthBandPct is the band around the best price, in percent, within
// which depth is accumulated.
const DefaultDepthBandPct = 1.0

// Metrics describes the shape of one venue's book at a point in time.
type Metrics struct {
	Venue  domain.Venue
	Symbol string

	BestBid   float64
	BestAsk   float64
	Spread    float64 // absolute
	SpreadBps float64 // basis points of mid

	BidDepth float64 // quantity within the band below best bid
	AskDepth float64 // quantity within the band above best ask
	BidValue float64 // notional within the band
	AskValue float64

	Imbalance float64 // -1 (ask-heavy) .. +1 (bid-heavy)

	BidLevels int // levels inside the band
	AskLevels int

	Timestamp time.Time
}

// MidPrice returns the bid/ask midpoint.
func (m Metrics) MidPrice() float64 {
	return (m.BestBid + m.BestAsk) / 2
}

// Valid reports whether the book had a coherent top: both bests present and
// not crossed.
func (m Metrics) Valid() bool {
	return m.BestBid > 0 && m.BestAsk > 0 && m.BestBid < m.BestAsk
}

// SufficientDepth reports whether both sides carry at least minValue notional
// inside the band.
func (m Metrics) SufficientDepth(minValue float64) bool {
	return m.BidValue >= minValue && m.AskValue >= minValue
}

// Compute derives Metrics from a snapshot. bandPct is the depth band in
// percent of the best price (DefaultDepthBandPct when <= 0). Levels are
// assumed sorted per the snapshot invariant; the walk stops at the first
// level outside the band. A book missing either best price returns metrics
// with spread and depth fields left at zero.
func Compute(ob domain.OrderBookSnapshot, bandPct float64) Metrics {
	if bandPct <= 0 {
		bandPct = DefaultDepthBandPct
	}

	m := Metrics{
		Venue:     ob.Venue,
		Symbol:    ob.Symbol,
		BestBid:   ob.BestBid(),
		BestAsk:   ob.BestAsk(),
		Timestamp: ob.Timestamp,
	}
	if m.BestBid <= 0 || m.BestAsk <= 0 {
		return m
	}

	m.Spread = m.BestAsk - m.BestBid
	if mid := m.MidPrice(); mid > 0 {
		m.SpreadBps = m.Spread / mid * 10000
	}

	bidFloor := m.BestBid * (1 - bandPct/100)
	for _, l := range ob.Bids {
		if l.Price < bidFloor {
			break
		}
		m.BidDepth += l.Quantity
		m.BidValue += l.Price * l.Quantity
		m.BidLevels++
	}

	askCeil := m.BestAsk * (1 + bandPct/100)
	for _, l := range ob.Asks {
		if l.Price > askCeil {
			break
		}
		m.AskDepth += l.Quantity
		m.AskValue += l.Price * l.Quantity
		m.AskLevels++
	}

	m.Imbalance = Imbalance(m.BidDepth, m.AskDepth)
	return m
}

// Imbalance returns (bid-ask)/(bid+ask), 0 when both depths are 0.
func Imbalance(bidDepth, askDepth float64) float64 {
	total := bidDepth + askDepth
	if total <= 0 {
		return 0
	}
	return (bidDepth - askDepth) / total
}
