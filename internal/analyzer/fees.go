package analyzer

import "github.com/seoulquant/kimparb/internal/domain"

// FeeSchedule holds per-venue maker and taker fee rates (fractions, not
// percent). Rates here are base-tier defaults; operators override them from
// config when VIP tiers or fee coupons apply.
type FeeSchedule struct {
	maker [domain.VenueCount]float64
	taker [domain.VenueCount]float64
}

// DefaultFeeSchedule returns the reference deployment's base-tier rates.
func DefaultFeeSchedule() FeeSchedule {
	var f FeeSchedule
	f.maker = [domain.VenueCount]float64{
		domain.VenueUpbit:   0.0005,
		domain.VenueBithumb: 0.0004,
		domain.VenueBinance: 0.0010,
		domain.VenueMEXC:    0.0000,
	}
	f.taker = [domain.VenueCount]float64{
		domain.VenueUpbit:   0.0005,
		domain.VenueBithumb: 0.0004,
		domain.VenueBinance: 0.0010,
		domain.VenueMEXC:    0.0002,
	}
	return f
}

// SetMaker overrides one venue's maker rate.
func (f *FeeSchedule) SetMaker(v domain.Venue, rate float64) {
	if v.Valid() && rate >= 0 {
		f.maker[v] = rate
	}
}

// SetTaker overrides one venue's taker rate.
func (f *FeeSchedule) SetTaker(v domain.Venue, rate float64) {
	if v.Valid() && rate >= 0 {
		f.taker[v] = rate
	}
}

// Maker returns the maker fee rate for a venue.
func (f FeeSchedule) Maker(v domain.Venue) float64 {
	if !v.Valid() {
		return 0
	}
	return f.maker[v]
}

// Taker returns the taker fee rate for a venue.
func (f FeeSchedule) Taker(v domain.Venue) float64 {
	if !v.Valid() {
		return 0
	}
	return f.taker[v]
}
