package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueRoundTrip(t *testing.T) {
	for _, v := range Venues() {
		parsed, err := ParseVenue(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, parsed)
	}

	_, err := ParseVenue("bitfinex")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	assert.False(t, Venue(-1).Valid())
	assert.False(t, VenueCount.Valid())
	assert.Equal(t, "unknown", Venue(99).String())
}

func TestVenueIsKRW(t *testing.T) {
	assert.True(t, VenueUpbit.IsKRW())
	assert.True(t, VenueBithumb.IsKRW())
	assert.False(t, VenueBinance.IsKRW())
	assert.False(t, VenueMEXC.IsKRW())
}

func TestOrderSideOpposite(t *testing.T) {
	assert.Equal(t, OrderSideSell, OrderSideBuy.Opposite())
	assert.Equal(t, OrderSideBuy, OrderSideSell.Opposite())
}

func TestOrderBookNormalize(t *testing.T) {
	ob := OrderBookSnapshot{
		Venue:  VenueUpbit,
		Symbol: "KRW-XRP",
		Bids: []PriceLevel{
			{Price: 98, Quantity: 4},
			{Price: 99, Quantity: 3},
			{Price: 97, Quantity: 0}, // dropped
		},
		Asks: []PriceLevel{
			{Price: 101, Quantity: 2},
			{Price: 100, Quantity: 1},
			{Price: 0, Quantity: 9}, // dropped
		},
	}.Normalize()

	require.Len(t, ob.Bids, 2)
	require.Len(t, ob.Asks, 2)
	assert.Equal(t, 99.0, ob.BestBid())
	assert.Equal(t, 100.0, ob.BestAsk())
	assert.Equal(t, 1.0, ob.Spread())
	assert.Equal(t, 99.5, ob.MidPrice())
	assert.False(t, ob.Empty())
}

func TestOrderBookNormalizeTruncatesDepth(t *testing.T) {
	var ob OrderBookSnapshot
	for i := 0; i < MaxOrderBookDepth+10; i++ {
		ob.Bids = append(ob.Bids, PriceLevel{Price: float64(1000 - i), Quantity: 1})
	}
	ob = ob.Normalize()
	assert.Len(t, ob.Bids, MaxOrderBookDepth)
	assert.Equal(t, 1000.0, ob.BestBid())
}

func TestEmptyBookAccessors(t *testing.T) {
	var ob OrderBookSnapshot
	assert.True(t, ob.Empty())
	assert.Zero(t, ob.BestBid())
	assert.Zero(t, ob.BestAsk())
}

func validRequest() DualOrderRequest {
	return DualOrderRequest{
		ID: "req-1",
		BuyOrder: OrderRequest{
			Venue: VenueBinance, Symbol: "XRPUSDT",
			Side: OrderSideBuy, Type: OrderTypeLimit,
			Quantity: 10, Price: 2.0,
		},
		SellOrder: OrderRequest{
			Venue: VenueUpbit, Symbol: "KRW-XRP",
			Side: OrderSideSell, Type: OrderTypeMarket,
			Quantity: 10,
		},
		SubmittedAt: time.Now(),
	}
}

func TestDualOrderRequestValidate(t *testing.T) {
	require.NoError(t, validRequest().Validate())

	sameVenue := validRequest()
	sameVenue.SellOrder.Venue = VenueBinance
	assert.ErrorIs(t, sameVenue.Validate(), ErrInvalidRequest)

	badVenue := validRequest()
	badVenue.BuyOrder.Venue = Venue(42)
	assert.ErrorIs(t, badVenue.Validate(), ErrInvalidRequest)

	wrongSide := validRequest()
	wrongSide.BuyOrder.Side = OrderSideSell
	assert.ErrorIs(t, wrongSide.Validate(), ErrInvalidRequest)

	zeroQty := validRequest()
	zeroQty.SellOrder.Quantity = 0
	assert.ErrorIs(t, zeroQty.Validate(), ErrInvalidRequest)
}

func filledLeg(venue Venue, qty, price float64) LegResult {
	return LegResult{
		Venue: venue,
		Outcome: &OrderOutcome{
			OrderID: "ord", Status: OrderStatusFilled,
			FilledQty: qty, AvgPrice: price,
		},
	}
}

func failedLeg(venue Venue, err error) LegResult {
	return LegResult{Venue: venue, Err: err}
}

func TestLegResultStates(t *testing.T) {
	ok := filledLeg(VenueUpbit, 10, 3100)
	assert.True(t, ok.Success())
	assert.True(t, ok.Filled())
	assert.Empty(t, ok.ErrorMessage())

	errored := failedLeg(VenueBinance, errors.New("timeout"))
	assert.False(t, errored.Success())
	assert.True(t, errored.Failed())
	assert.Equal(t, "timeout", errored.ErrorMessage())
	assert.Zero(t, errored.FilledQty())

	rejected := LegResult{
		Venue:   VenueBinance,
		Outcome: &OrderOutcome{Status: OrderStatusFailed, Message: "insufficient balance"},
	}
	assert.True(t, rejected.Failed())
	assert.Equal(t, "insufficient balance", rejected.ErrorMessage())

	// An outcome-less leg without an error never counts as success.
	assert.False(t, LegResult{Venue: VenueUpbit}.Success())
}

func TestDualOrderResultClassification(t *testing.T) {
	buy := filledLeg(VenueBinance, 10, 2.0)
	sell := filledLeg(VenueUpbit, 10, 3100)
	failed := failedLeg(VenueUpbit, errors.New("rejected"))

	both := DualOrderResult{BuyLeg: buy, SellLeg: sell}
	assert.True(t, both.BothSuccess())
	assert.False(t, both.PartialFill())
	assert.False(t, both.BothFailed())
	assert.True(t, both.AnySuccess())

	partial := DualOrderResult{BuyLeg: buy, SellLeg: failed}
	assert.True(t, partial.PartialFill())
	assert.False(t, partial.BothSuccess())
	assert.False(t, partial.BothFailed())

	partial = DualOrderResult{BuyLeg: failedLeg(VenueBinance, errors.New("x")), SellLeg: sell}
	assert.True(t, partial.PartialFill())

	neither := DualOrderResult{
		BuyLeg:  failedLeg(VenueBinance, errors.New("x")),
		SellLeg: failedLeg(VenueUpbit, errors.New("y")),
	}
	assert.True(t, neither.BothFailed())
	assert.False(t, neither.PartialFill())
	assert.False(t, neither.AnySuccess())
}

func TestComputeActualPremium(t *testing.T) {
	res := DualOrderResult{
		BuyLeg:  filledLeg(VenueBinance, 10, 2.0),
		SellLeg: filledLeg(VenueUpbit, 10, 3100),
	}
	res.ComputeActualPremium(1400)

	// Buy at 2800 KRW-equivalent, sell at 3100 KRW.
	want := (3100.0 - 2800.0) / 2800.0 * 100
	assert.InDelta(t, want, res.ActualPremiumPct, 1e-9)
	assert.InDelta(t, 28000.0, res.BuyCostKRW(1400), 1e-9)
	assert.InDelta(t, 31000.0, res.SellRevenueKRW(1400), 1e-9)
	assert.InDelta(t, 3000.0, res.GrossProfitKRW(1400), 1e-9)
}

func TestComputeActualPremiumSkipsMissingFills(t *testing.T) {
	res := DualOrderResult{
		BuyLeg:  filledLeg(VenueBinance, 10, 2.0),
		SellLeg: failedLeg(VenueUpbit, errors.New("rejected")),
	}
	res.ComputeActualPremium(1400)
	assert.Zero(t, res.ActualPremiumPct)
}

func TestDualOrderResultLatencies(t *testing.T) {
	start := time.Now()
	res := DualOrderResult{
		StartedAt:   start,
		CompletedAt: start.Add(250 * time.Millisecond),
		BuyLeg:      LegResult{Latency: 80 * time.Millisecond},
		SellLeg:     LegResult{Latency: 120 * time.Millisecond},
	}
	assert.Equal(t, 250*time.Millisecond, res.TotalLatency())
	assert.Equal(t, 120*time.Millisecond, res.MaxLegLatency())
}

func TestRecoveryPlanPolicy(t *testing.T) {
	plan := RecoveryPlan{Action: RecoverySellBought, RetryCount: 0, MaxRetries: 3}
	assert.True(t, plan.NeedsExecution())
	assert.True(t, plan.CanRetry())

	plan.RetryCount = 3
	assert.False(t, plan.CanRetry())

	manual := RecoveryPlan{Action: RecoveryManualIntervention}
	assert.False(t, manual.NeedsExecution())
	assert.False(t, RecoveryPlan{Action: RecoveryNone}.NeedsExecution())
	assert.True(t, RecoveryPlan{Action: RecoveryBuySold}.NeedsExecution())
}

func TestRecoveryResultCompleted(t *testing.T) {
	assert.True(t, RecoveryResult{Success: true}.Completed())
	assert.True(t, RecoveryResult{
		Plan: RecoveryPlan{RetryCount: 3, MaxRetries: 3},
	}.Completed())
	assert.False(t, RecoveryResult{
		Plan: RecoveryPlan{RetryCount: 1, MaxRetries: 3},
	}.Completed())
}

func TestPremiumInfoValid(t *testing.T) {
	assert.True(t, PremiumInfo{PremiumPct: 1.5}.Valid())
	assert.False(t, PremiumInfo{PremiumPct: math.NaN()}.Valid())
}

func TestNewPremiumMatrix(t *testing.T) {
	m := NewPremiumMatrix()
	for buy := Venue(0); buy < VenueCount; buy++ {
		for sell := Venue(0); sell < VenueCount; sell++ {
			if buy == sell {
				assert.Zero(t, m[buy][sell])
			} else {
				assert.True(t, math.IsNaN(m[buy][sell]))
			}
		}
	}
}
