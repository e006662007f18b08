package domain

import (
	"sort"
	"time"
)

// MaxOrderBookDepth bounds the number of levels retained per book side.
const MaxOrderBookDepth = 50

// PriceLevel is one order-book row.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// OrderBookSnapshot is a complete, internally consistent view of one venue's
// book. Invariants: bids strictly descending by price, asks strictly
// ascending, no zero-quantity rows, at most MaxOrderBookDepth rows per side.
// Feeds deliver snapshots already satisfying these; Normalize re-establishes
// them for snapshots assembled from unordered sources.
type OrderBookSnapshot struct {
	Venue     Venue
	Symbol    string
	Bids      []PriceLevel // descending by price
	Asks      []PriceLevel // ascending by price
	Timestamp time.Time
}

// BestBid returns the highest bid price, 0 when the bid side is empty.
func (ob OrderBookSnapshot) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price, 0 when the ask side is empty.
func (ob OrderBookSnapshot) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// MidPrice returns the midpoint of the best bid and ask.
func (ob OrderBookSnapshot) MidPrice() float64 {
	return (ob.BestBid() + ob.BestAsk()) / 2
}

// Spread returns best ask minus best bid.
func (ob OrderBookSnapshot) Spread() float64 {
	return ob.BestAsk() - ob.BestBid()
}

// Empty reports whether both sides are empty.
func (ob OrderBookSnapshot) Empty() bool {
	return len(ob.Bids) == 0 && len(ob.Asks) == 0
}

// Normalize drops zero-quantity rows, sorts bids descending and asks
// ascending, and truncates both sides to MaxOrderBookDepth. It returns the
// receiver for chaining.
func (ob OrderBookSnapshot) Normalize() OrderBookSnapshot {
	ob.Bids = cleanLevels(ob.Bids)
	ob.Asks = cleanLevels(ob.Asks)
	sort.Slice(ob.Bids, func(i, j int) bool { return ob.Bids[i].Price > ob.Bids[j].Price })
	sort.Slice(ob.Asks, func(i, j int) bool { return ob.Asks[i].Price < ob.Asks[j].Price })
	if len(ob.Bids) > MaxOrderBookDepth {
		ob.Bids = ob.Bids[:MaxOrderBookDepth]
	}
	if len(ob.Asks) > MaxOrderBookDepth {
		ob.Asks = ob.Asks[:MaxOrderBookDepth]
	}
	return ob
}

func cleanLevels(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		if l.Price > 0 && l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}
