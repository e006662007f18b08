package domain

import (
	"math"
	"time"
)

// PremiumMatrix is the N×N cross-venue premium table. Cell [buy][sell] is the
// percentage gained by buying at venue buy and selling at venue sell, both
// converted to KRW. The diagonal is always 0; a cell is NaN until both venues
// have a positive price.
type PremiumMatrix [VenueCount][VenueCount]float64

// NewPremiumMatrix returns a matrix with a zero diagonal and NaN elsewhere.
func NewPremiumMatrix() PremiumMatrix {
	var m PremiumMatrix
	for buy := 0; buy < int(VenueCount); buy++ {
		for sell := 0; sell < int(VenueCount); sell++ {
			if buy == sell {
				m[buy][sell] = 0
			} else {
				m[buy][sell] = math.NaN()
			}
		}
	}
	return m
}

// PremiumInfo describes one threshold-crossing cell of the matrix.
type PremiumInfo struct {
	BuyVenue     Venue
	SellVenue    Venue
	PremiumPct   float64
	BuyPriceKRW  float64
	SellPriceKRW float64
	FxRate       float64
	Timestamp    time.Time
}

// Valid reports whether the premium is a usable number.
func (p PremiumInfo) Valid() bool {
	return !math.IsNaN(p.PremiumPct)
}
