package liquidity

import (
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// FillLevel records one book level consumed during fill simulation, kept for
// audit and debugging of executed plans.
type FillLevel struct {
	Price           float64
	Quantity        float64 // quantity taken at this level
	CumulativeQty   float64
	CumulativeValue float64
	VWAP            float64 // volume-weighted average up to this level
	DistancePct     float64 // adverse distance from the best price, percent
	Level           int
}

// SlippageEstimate is the result of simulating a taker fill against a
// snapshot. FillRatio < 1 is not an error; it signals the caller to size down
// or treat the plan as high-risk.
type SlippageEstimate struct {
	Venue    domain.Venue
	Side     domain.OrderSide
	Quantity float64

	BestPrice        float64
	ExpectedAvgPrice float64
	WorstPrice       float64 // last level touched
	SlippageBps      float64 // adverse movement is always positive
	SlippageValue    float64 // notional cost of the slippage

	LevelsConsumed int
	FillableQty    float64
	FillRatio      float64 // 0..1
	FullyFillable  bool

	Path []FillLevel
}

// Valid reports whether the estimate is based on a usable book and quantity.
func (e SlippageEstimate) Valid() bool {
	return e.Quantity > 0 && e.BestPrice > 0
}

// SlippagePct returns the slippage in percent rather than basis points.
func (e SlippageEstimate) SlippagePct() float64 {
	return e.SlippageBps / 100
}

// opposingSide returns the levels a taker order consumes and their best
// price: buys consume asks, sells consume bids.
func opposingSide(ob domain.OrderBookSnapshot, side domain.OrderSide) ([]domain.PriceLevel, float64) {
	if side == domain.OrderSideBuy {
		return ob.Asks, ob.BestAsk()
	}
	return ob.Bids, ob.BestBid()
}

// EstimateFill simulates consuming the opposing side of the book level by
// level until quantity is reached or the book is exhausted.
func EstimateFill(ob domain.OrderBookSnapshot, side domain.OrderSide, quantity float64) SlippageEstimate {
	est := SlippageEstimate{Venue: ob.Venue, Side: side, Quantity: quantity}
	if quantity <= 0 {
		return est
	}

	levels, best := opposingSide(ob, side)
	est.BestPrice = best
	if best <= 0 || len(levels) == 0 {
		return est
	}

	var cumQty, cumValue float64
	for _, l := range levels {
		if l.Price <= 0 || l.Quantity <= 0 {
			continue
		}
		fillQty := quantity - cumQty
		if l.Quantity < fillQty {
			fillQty = l.Quantity
		}
		cumQty += fillQty
		cumValue += l.Price * fillQty

		fl := FillLevel{
			Price:           l.Price,
			Quantity:        fillQty,
			CumulativeQty:   cumQty,
			CumulativeValue: cumValue,
			Level:           len(est.Path),
		}
		if cumQty > 0 {
			fl.VWAP = cumValue / cumQty
		}
		if side == domain.OrderSideBuy {
			fl.DistancePct = (l.Price - best) / best * 100
		} else {
			fl.DistancePct = (best - l.Price) / best * 100
		}
		est.Path = append(est.Path, fl)

		est.WorstPrice = l.Price
		est.LevelsConsumed++

		if cumQty >= quantity {
			break
		}
	}

	est.FillableQty = cumQty
	est.FullyFillable = cumQty >= quantity
	est.FillRatio = cumQty / quantity
	if est.FillRatio > 1 {
		est.FillRatio = 1
	}
	if cumQty > 0 {
		est.ExpectedAvgPrice = cumValue / cumQty
	}
	est.finishSlippage(cumQty)
	return est
}

// EstimateFillToPrice simulates the same walk bounded by a limit price
// instead of a quantity: it answers how much could be moved before breaching
// limitPrice. The walk stops at the first level beyond the limit.
func EstimateFillToPrice(ob domain.OrderBookSnapshot, side domain.OrderSide, limitPrice float64) SlippageEstimate {
	est := SlippageEstimate{Venue: ob.Venue, Side: side}
	if limitPrice <= 0 {
		return est
	}

	levels, best := opposingSide(ob, side)
	est.BestPrice = best
	if best <= 0 || len(levels) == 0 {
		return est
	}

	var cumQty, cumValue float64
	for _, l := range levels {
		if l.Price <= 0 || l.Quantity <= 0 {
			continue
		}
		if side == domain.OrderSideBuy && l.Price > limitPrice {
			break
		}
		if side == domain.OrderSideSell && l.Price < limitPrice {
			break
		}
		cumQty += l.Quantity
		cumValue += l.Price * l.Quantity

		fl := FillLevel{
			Price:           l.Price,
			Quantity:        l.Quantity,
			CumulativeQty:   cumQty,
			CumulativeValue: cumValue,
			Level:           len(est.Path),
		}
		fl.VWAP = cumValue / cumQty
		if side == domain.OrderSideBuy {
			fl.DistancePct = (l.Price - best) / best * 100
		} else {
			fl.DistancePct = (best - l.Price) / best * 100
		}
		est.Path = append(est.Path, fl)

		est.WorstPrice = l.Price
		est.LevelsConsumed++
	}

	est.Quantity = cumQty
	est.FillableQty = cumQty
	est.FillRatio = 1
	est.FullyFillable = true
	if cumQty > 0 {
		est.ExpectedAvgPrice = cumValue / cumQty
	}
	est.finishSlippage(cumQty)
	return est
}

// finishSlippage derives the signed slippage fields. The sign convention makes
// adverse movement positive for both sides: buys slip upward, sells downward.
func (e *SlippageEstimate) finishSlippage(filledQty float64) {
	if e.BestPrice <= 0 || e.ExpectedAvgPrice <= 0 {
		return
	}
	var diff float64
	if e.Side == domain.OrderSideBuy {
		diff = e.ExpectedAvgPrice - e.BestPrice
	} else {
		diff = e.BestPrice - e.ExpectedAvgPrice
	}
	e.SlippageBps = diff / e.BestPrice * 10000
	e.SlippageValue = diff * filledQty
}

// MakerPriceEstimate recommends where to rest a maker order.
type MakerPriceEstimate struct {
	Venue domain.Venue
	Side  domain.OrderSide

	BestPrice           float64
	RecommendedPrice    float64
	DistanceFromBestBps float64

	FillProbability  float64
	EstimatedWaitSec float64
}

// Valid reports whether the estimate is usable.
func (e MakerPriceEstimate) Valid() bool {
	return e.BestPrice > 0 && e.RecommendedPrice > 0
}

// Wait-time heuristic: roughly one price level per 10 bps of distance, one
// second per level.
const (
	bpsPerLevel         = 10.0
	fillTimePerLevelSec = 1.0
	fallbackFillProb    = 0.5
)

// RecommendMakerPrice suggests a resting price for a maker order targeting
// the given fill probability in [0,1]. The model is a deliberate heuristic,
// not a fill-time forecast: it interpolates linearly between the best price
// (probability ~1) and one full spread away (probability ~0), and estimates
// wait time from the implied level distance, capped at maxWait. Buy makers
// rest on the bid side, sell makers on the ask side.
func RecommendMakerPrice(ob domain.OrderBookSnapshot, side domain.OrderSide, targetFillProb float64, maxWait time.Duration) MakerPriceEstimate {
	est := MakerPriceEstimate{Venue: ob.Venue, Side: side}

	if side == domain.OrderSideBuy {
		est.BestPrice = ob.BestBid()
	} else {
		est.BestPrice = ob.BestAsk()
	}
	if est.BestPrice <= 0 {
		return est
	}

	if targetFillProb < 0 {
		targetFillProb = 0
	}
	if targetFillProb > 1 {
		targetFillProb = 1
	}

	spread := ob.Spread()
	if ob.MidPrice() <= 0 || spread <= 0 {
		est.RecommendedPrice = est.BestPrice
		est.FillProbability = fallbackFillProb
		return est
	}

	offset := spread * (1 - targetFillProb)
	if side == domain.OrderSideBuy {
		est.RecommendedPrice = est.BestPrice - offset
	} else {
		est.RecommendedPrice = est.BestPrice + offset
	}
	est.DistanceFromBestBps = offset / est.BestPrice * 10000
	est.FillProbability = targetFillProb

	impliedLevels := est.DistanceFromBestBps / bpsPerLevel
	waitSec := impliedLevels * fillTimePerLevelSec
	if limit := maxWait.Seconds(); waitSec > limit {
		waitSec = limit
	}
	est.EstimatedWaitSec = waitSec

	return est
}
