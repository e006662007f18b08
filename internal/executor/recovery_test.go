package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulquant/kimparb/internal/domain"
)

func partialResult(buyOK bool) domain.DualOrderResult {
	filled := domain.LegResult{Outcome: &domain.OrderOutcome{
		Status:    domain.OrderStatusFilled,
		FilledQty: 100,
		AvgPrice:  2.1,
	}}
	failed := domain.LegResult{Err: errors.New("rejected")}

	res := domain.DualOrderResult{RequestID: "req-1"}
	if buyOK {
		res.BuyLeg, res.SellLeg = filled, failed
		res.BuyLeg.Venue, res.SellLeg.Venue = domain.VenueBinance, domain.VenueUpbit
	} else {
		res.SellLeg, res.BuyLeg = filled, failed
		res.SellLeg.Venue, res.BuyLeg.Venue = domain.VenueUpbit, domain.VenueBinance
	}
	return res
}

func recoveryManager(placers domain.OrderPlacers) *RecoveryManager {
	return NewRecoveryManager(placers, RecoveryConfig{
		MaxRetries:           3,
		RetryDelay:           time.Millisecond,
		SlippageTolerancePct: 0.5,
	}, testLogger())
}

func TestCreatePlanBothSuccessNeedsNothing(t *testing.T) {
	mgr := recoveryManager(nil)
	res := domain.DualOrderResult{
		BuyLeg:  domain.LegResult{Outcome: &domain.OrderOutcome{Status: domain.OrderStatusFilled, FilledQty: 1}},
		SellLeg: domain.LegResult{Outcome: &domain.OrderOutcome{Status: domain.OrderStatusFilled, FilledQty: 1}},
	}

	plan := mgr.CreatePlan(testRequest(), res)
	assert.Equal(t, domain.RecoveryNone, plan.Action)
	assert.False(t, plan.NeedsExecution())
}

func TestCreatePlanBothFailedNeedsNothing(t *testing.T) {
	mgr := recoveryManager(nil)
	res := domain.DualOrderResult{
		BuyLeg:  domain.LegResult{Err: errors.New("down")},
		SellLeg: domain.LegResult{Err: errors.New("down")},
	}

	plan := mgr.CreatePlan(testRequest(), res)
	assert.Equal(t, domain.RecoveryNone, plan.Action)
}

func TestCreatePlanSellBought(t *testing.T) {
	mgr := recoveryManager(nil)

	plan := mgr.CreatePlan(testRequest(), partialResult(true))

	assert.Equal(t, domain.RecoverySellBought, plan.Action)
	assert.NotEmpty(t, plan.Reason)
	assert.Equal(t, "req-1", plan.RequestID)
	assert.Equal(t, domain.VenueBinance, plan.Order.Venue)
	assert.Equal(t, domain.OrderSideSell, plan.Order.Side)
	assert.Equal(t, 100.0, plan.Order.Quantity)
	// Limit priced 0.5% below the 2.1 fill.
	assert.Equal(t, domain.OrderTypeLimit, plan.Order.Type)
	assert.InDelta(t, 2.1*0.995, plan.Order.Price, 1e-9)
}

func TestCreatePlanBuySold(t *testing.T) {
	mgr := recoveryManager(nil)

	plan := mgr.CreatePlan(testRequest(), partialResult(false))

	assert.Equal(t, domain.RecoveryBuySold, plan.Action)
	assert.Equal(t, domain.VenueUpbit, plan.Order.Venue)
	assert.Equal(t, domain.OrderSideBuy, plan.Order.Side)
	assert.InDelta(t, 2.1*1.005, plan.Order.Price, 1e-9)
}

func TestCreatePlanZeroFillNeedsManualIntervention(t *testing.T) {
	mgr := recoveryManager(nil)
	res := partialResult(true)
	res.BuyLeg.Outcome.FilledQty = 0

	plan := mgr.CreatePlan(testRequest(), res)
	assert.Equal(t, domain.RecoveryManualIntervention, plan.Action)
	assert.False(t, plan.NeedsExecution())
	assert.Equal(t, uint64(1), mgr.Stats().ManualIntervention)
}

func TestCreatePlanDeterministic(t *testing.T) {
	mgr := recoveryManager(nil)
	req := testRequest()
	res := partialResult(true)

	a := mgr.CreatePlan(req, res)
	b := mgr.CreatePlan(req, res)

	assert.Equal(t, a.Action, b.Action)
	assert.Equal(t, a.Reason, b.Reason)
	assert.Equal(t, a.Order.Venue, b.Order.Venue)
	assert.Equal(t, a.Order.Quantity, b.Order.Quantity)
	assert.Equal(t, a.Order.Price, b.Order.Price)
}

func TestCreatePlanMarketFallbackWithoutFillPrice(t *testing.T) {
	mgr := recoveryManager(nil)
	res := partialResult(true)
	res.BuyLeg.Outcome.AvgPrice = 0

	plan := mgr.CreatePlan(testRequest(), res)
	assert.Equal(t, domain.OrderTypeMarket, plan.Order.Type)
	assert.Zero(t, plan.Order.Price)
}

func TestExecuteRecoverySucceedsFirstAttempt(t *testing.T) {
	stub := &stubPlacer{outcome: filledOutcome(100, 2.09)}
	mgr := recoveryManager(domain.OrderPlacers{domain.VenueBinance: stub})

	plan := mgr.CreatePlan(testRequest(), partialResult(true))
	res := mgr.ExecuteRecovery(context.Background(), plan)

	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Plan.RetryCount) // nothing was retried
	assert.True(t, res.Completed())
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestExecuteRecoverySucceedsAfterRetries(t *testing.T) {
	stub := &stubPlacer{outcome: filledOutcome(100, 2.09), failFirst: 2}
	mgr := recoveryManager(domain.OrderPlacers{domain.VenueBinance: stub})

	plan := mgr.CreatePlan(testRequest(), partialResult(true))
	res := mgr.ExecuteRecovery(context.Background(), plan)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Plan.RetryCount)
	assert.Equal(t, int64(3), stub.calls.Load())
}

func TestExecuteRecoveryExhaustsRetries(t *testing.T) {
	stub := &stubPlacer{err: errors.New("still down")}
	mgr := recoveryManager(domain.OrderPlacers{domain.VenueBinance: stub})

	plan := mgr.CreatePlan(testRequest(), partialResult(true))
	res := mgr.ExecuteRecovery(context.Background(), plan)

	assert.False(t, res.Success)
	assert.True(t, res.Completed())
	assert.Equal(t, 3, res.Plan.RetryCount)
	assert.Equal(t, int64(3), stub.calls.Load())
	assert.Contains(t, res.Message, "still down")
}

func TestExecuteRecoveryStopsOnCancel(t *testing.T) {
	stub := &stubPlacer{err: errors.New("down")}
	mgr := NewRecoveryManager(domain.OrderPlacers{domain.VenueBinance: stub}, RecoveryConfig{
		MaxRetries: 10,
		RetryDelay: time.Hour, // should never be waited out
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := mgr.CreatePlan(testRequest(), partialResult(true))
	res := mgr.ExecuteRecovery(ctx, plan)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Plan.RetryCount)
	assert.Contains(t, res.Message, "cancelled")
}

func TestExecuteRecoveryDryRun(t *testing.T) {
	stub := &stubPlacer{outcome: filledOutcome(100, 2.09)}
	mgr := NewRecoveryManager(domain.OrderPlacers{domain.VenueBinance: stub}, RecoveryConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		DryRun:     true,
	}, testLogger())

	plan := mgr.CreatePlan(testRequest(), partialResult(true))
	res := mgr.ExecuteRecovery(context.Background(), plan)

	assert.True(t, res.Success)
	assert.Equal(t, "dry run", res.Message)
	assert.Equal(t, int64(0), stub.calls.Load())
}

func TestRecoveryQueueProcessesSequentially(t *testing.T) {
	stub := &stubPlacer{outcome: filledOutcome(100, 2.09)}
	mgr := recoveryManager(domain.OrderPlacers{domain.VenueBinance: stub})
	q := NewRecoveryQueue(mgr, 8, testLogger())

	done := make(chan domain.RecoveryResult, 2)
	q.OnDone(func(r domain.RecoveryResult) { done <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.True(t, q.Enqueue(mgr.CreatePlan(testRequest(), partialResult(true))))
	require.True(t, q.Enqueue(mgr.CreatePlan(testRequest(), partialResult(true))))

	for i := 0; i < 2; i++ {
		select {
		case r := <-done:
			assert.True(t, r.Success)
		case <-time.After(time.Second):
			t.Fatal("queued recovery did not complete")
		}
	}
	assert.Equal(t, int64(2), stub.calls.Load())
}

func TestRecoveryQueueEnqueueFullReportsFalse(t *testing.T) {
	mgr := recoveryManager(nil)
	q := NewRecoveryQueue(mgr, 1, testLogger())

	assert.True(t, q.Enqueue(domain.RecoveryPlan{ID: "a"}))
	assert.False(t, q.Enqueue(domain.RecoveryPlan{ID: "b"}))
	assert.Equal(t, 1, q.Len())
}
