package domain

import (
	"fmt"
	"time"
)

// DualOrderRequest is a matched pair of order instructions: one buy leg and
// one sell leg on two distinct venues, submitted as close to simultaneously
// as possible.
type DualOrderRequest struct {
	ID                 string // UUID
	BuyOrder           OrderRequest
	SellOrder          OrderRequest
	ExpectedPremiumPct float64
	SubmittedAt        time.Time
}

// Validate rejects malformed requests before any side effect: both legs on
// the same venue, wrong side assignment, or non-positive quantity.
func (r DualOrderRequest) Validate() error {
	if r.BuyOrder.Venue == r.SellOrder.Venue {
		return fmt.Errorf("domain: buy and sell legs target the same venue %s: %w",
			r.BuyOrder.Venue, ErrInvalidRequest)
	}
	if !r.BuyOrder.Venue.Valid() || !r.SellOrder.Venue.Valid() {
		return fmt.Errorf("domain: leg venue out of range: %w", ErrInvalidRequest)
	}
	if r.BuyOrder.Side != OrderSideBuy {
		return fmt.Errorf("domain: buy leg has side %q: %w", r.BuyOrder.Side, ErrInvalidRequest)
	}
	if r.SellOrder.Side != OrderSideSell {
		return fmt.Errorf("domain: sell leg has side %q: %w", r.SellOrder.Side, ErrInvalidRequest)
	}
	if r.BuyOrder.Quantity <= 0 || r.SellOrder.Quantity <= 0 {
		return fmt.Errorf("domain: non-positive leg quantity: %w", ErrInvalidRequest)
	}
	return nil
}

// LegResult captures one leg's outcome: either an OrderOutcome or an error,
// plus timing. Errors are data here, never control flow across the leg
// boundary — both legs must be observed regardless of one failing.
type LegResult struct {
	Venue       Venue
	Outcome     *OrderOutcome
	Err         error
	Latency     time.Duration
	StartedAt   time.Time
	CompletedAt time.Time
}

// Success reports whether the leg produced an outcome without transport error
// or venue rejection.
func (l LegResult) Success() bool {
	return l.Err == nil && l.Outcome != nil && !l.Outcome.IsFailed()
}

// Failed reports whether the leg errored or the venue rejected it.
func (l LegResult) Failed() bool {
	return !l.Success()
}

// Filled reports whether the leg fully filled.
func (l LegResult) Filled() bool {
	return l.Success() && l.Outcome.IsFilled()
}

// FilledQty returns the filled quantity, 0 when no outcome exists.
func (l LegResult) FilledQty() float64 {
	if l.Outcome == nil {
		return 0
	}
	return l.Outcome.FilledQty
}

// AvgPrice returns the average fill price, 0 when no outcome exists.
func (l LegResult) AvgPrice() float64 {
	if l.Outcome == nil {
		return 0
	}
	return l.Outcome.AvgPrice
}

// ErrorMessage returns a human-readable failure description, empty on success.
func (l LegResult) ErrorMessage() string {
	if l.Err != nil {
		return l.Err.Error()
	}
	if l.Outcome != nil && l.Outcome.IsFailed() {
		return l.Outcome.Message
	}
	return ""
}

// DualOrderResult joins the two leg results for one DualOrderRequest.
type DualOrderResult struct {
	RequestID        string
	BuyLeg           LegResult
	SellLeg          LegResult
	StartedAt        time.Time
	CompletedAt      time.Time
	ActualPremiumPct float64
}

// BothSuccess reports whether both legs succeeded.
func (r DualOrderResult) BothSuccess() bool {
	return r.BuyLeg.Success() && r.SellLeg.Success()
}

// BothFailed reports whether both legs failed.
func (r DualOrderResult) BothFailed() bool {
	return r.BuyLeg.Failed() && r.SellLeg.Failed()
}

// PartialFill reports whether exactly one leg succeeded. This is the only
// state that requires recovery: the position is directional and unhedged.
func (r DualOrderResult) PartialFill() bool {
	return r.BuyLeg.Success() != r.SellLeg.Success()
}

// AnySuccess reports whether at least one leg succeeded.
func (r DualOrderResult) AnySuccess() bool {
	return r.BuyLeg.Success() || r.SellLeg.Success()
}

// TotalLatency is the wall time from first submission to last completion.
func (r DualOrderResult) TotalLatency() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// MaxLegLatency is the slower of the two legs.
func (r DualOrderResult) MaxLegLatency() time.Duration {
	if r.BuyLeg.Latency > r.SellLeg.Latency {
		return r.BuyLeg.Latency
	}
	return r.SellLeg.Latency
}

// BuyCostKRW returns the buy leg's filled notional converted to KRW.
func (r DualOrderResult) BuyCostKRW(fxRate float64) float64 {
	cost := r.BuyLeg.FilledQty() * r.BuyLeg.AvgPrice()
	if !r.BuyLeg.Venue.IsKRW() {
		cost *= fxRate
	}
	return cost
}

// SellRevenueKRW returns the sell leg's filled notional converted to KRW.
func (r DualOrderResult) SellRevenueKRW(fxRate float64) float64 {
	revenue := r.SellLeg.FilledQty() * r.SellLeg.AvgPrice()
	if !r.SellLeg.Venue.IsKRW() {
		revenue *= fxRate
	}
	return revenue
}

// GrossProfitKRW is sell revenue minus buy cost, fees excluded.
func (r DualOrderResult) GrossProfitKRW(fxRate float64) float64 {
	return r.SellRevenueKRW(fxRate) - r.BuyCostKRW(fxRate)
}

// ComputeActualPremium derives the realized premium from both fills and stores
// it on the result. It is a no-op unless both legs have a positive average
// price.
func (r *DualOrderResult) ComputeActualPremium(fxRate float64) {
	buy := r.BuyLeg.AvgPrice()
	sell := r.SellLeg.AvgPrice()
	if buy <= 0 || sell <= 0 {
		return
	}
	if !r.BuyLeg.Venue.IsKRW() {
		buy *= fxRate
	}
	if !r.SellLeg.Venue.IsKRW() {
		sell *= fxRate
	}
	r.ActualPremiumPct = (sell - buy) / buy * 100
}
