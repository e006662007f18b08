// Package domain defines the core value types shared across the arbitrage
// engine: venues, quotes, order books, orders, dual-order requests/results,
// and recovery plans. Types here carry no behavior beyond validation and
// derived-value helpers; they flow by value between components.
package domain

import "fmt"

// Venue identifies one exchange in the deployment. Identity is an integer
// index so per-venue state can live in fixed arrays.
type Venue int

const (
	VenueUpbit Venue = iota
	VenueBithumb
	VenueBinance
	VenueMEXC

	// VenueCount is the number of venues in the reference deployment. Code
	// must size per-venue state from this constant, never a literal.
	VenueCount
)

// String returns the lowercase venue name.
func (v Venue) String() string {
	switch v {
	case VenueUpbit:
		return "upbit"
	case VenueBithumb:
		return "bithumb"
	case VenueBinance:
		return "binance"
	case VenueMEXC:
		return "mexc"
	default:
		return "unknown"
	}
}

// Valid reports whether v is one of the configured venues.
func (v Venue) Valid() bool {
	return v >= 0 && v < VenueCount
}

// IsKRW reports whether the venue settles in KRW. Prices from non-KRW venues
// must be multiplied by the FX rate before cross-venue comparison.
func (v Venue) IsKRW() bool {
	return v == VenueUpbit || v == VenueBithumb
}

// ParseVenue converts a venue name to its Venue index.
func ParseVenue(s string) (Venue, error) {
	for v := Venue(0); v < VenueCount; v++ {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("domain: unknown venue %q: %w", s, ErrInvalidRequest)
}

// Venues returns all configured venues in index order.
func Venues() []Venue {
	out := make([]Venue, VenueCount)
	for i := range out {
		out[i] = Venue(i)
	}
	return out
}
