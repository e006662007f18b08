package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulquant/kimparb/internal/domain"
)

// stubPlacer returns a canned outcome or error; optional delay simulates
// venue latency.
type stubPlacer struct {
	outcome   domain.OrderOutcome
	err       error
	delay     time.Duration
	failFirst int64 // first N calls fail before outcome is returned
	calls     atomic.Int64
}

func (s *stubPlacer) Place(ctx context.Context, req domain.OrderRequest) (domain.OrderOutcome, error) {
	n := s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return domain.OrderOutcome{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if n <= s.failFirst {
		return domain.OrderOutcome{}, errors.New("venue unavailable")
	}
	if s.err != nil {
		return domain.OrderOutcome{}, s.err
	}
	return s.outcome, nil
}

func (s *stubPlacer) Cancel(ctx context.Context, orderID string) error { return nil }

func (s *stubPlacer) GetOrder(ctx context.Context, orderID string) (domain.OrderOutcome, error) {
	return s.outcome, s.err
}

func (s *stubPlacer) GetBalance(ctx context.Context, currency string) (domain.Balance, error) {
	return domain.Balance{Currency: currency}, nil
}

func filledOutcome(qty, price float64) domain.OrderOutcome {
	return domain.OrderOutcome{
		OrderID:   "ord-1",
		Status:    domain.OrderStatusFilled,
		FilledQty: qty,
		AvgPrice:  price,
		Timestamp: time.Now(),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() domain.DualOrderRequest {
	return domain.DualOrderRequest{
		ID: "req-1",
		BuyOrder: domain.OrderRequest{
			Venue:    domain.VenueBinance,
			Symbol:   "XRPUSDT",
			Side:     domain.OrderSideBuy,
			Type:     domain.OrderTypeLimit,
			Quantity: 100,
			Price:    2.1,
		},
		SellOrder: domain.OrderRequest{
			Venue:    domain.VenueUpbit,
			Symbol:   "KRW-XRP",
			Side:     domain.OrderSideSell,
			Type:     domain.OrderTypeLimit,
			Quantity: 100,
			Price:    3100,
		},
		ExpectedPremiumPct: 1.5,
		SubmittedAt:        time.Now(),
	}
}

func TestExecuteBothSuccess(t *testing.T) {
	placers := domain.OrderPlacers{
		domain.VenueBinance: &stubPlacer{outcome: filledOutcome(100, 2.1)},
		domain.VenueUpbit:   &stubPlacer{outcome: filledOutcome(100, 3100)},
	}
	ex := New(placers, Config{LegTimeout: time.Second}, testLogger())

	res, err := ex.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, res.BothSuccess())
	assert.False(t, res.PartialFill())
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, 100.0, res.BuyLeg.FilledQty())
	assert.Equal(t, 100.0, res.SellLeg.FilledQty())

	snap := ex.StatsSnapshot()
	assert.Equal(t, uint64(1), snap.TotalRequests)
	assert.Equal(t, uint64(1), snap.BothSuccess)
	assert.Equal(t, 100.0, snap.SuccessRate)
}

func TestExecutePartialFillBuySucceeds(t *testing.T) {
	placers := domain.OrderPlacers{
		domain.VenueBinance: &stubPlacer{outcome: filledOutcome(100, 2.1)},
		domain.VenueUpbit:   &stubPlacer{err: errors.New("insufficient balance")},
	}
	ex := New(placers, Config{LegTimeout: time.Second}, testLogger())

	res, err := ex.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, res.PartialFill())
	assert.True(t, res.BuyLeg.Success())
	assert.True(t, res.SellLeg.Failed())
	assert.Contains(t, res.SellLeg.ErrorMessage(), "insufficient balance")

	snap := ex.StatsSnapshot()
	assert.Equal(t, uint64(1), snap.PartialFills)
	assert.Equal(t, uint64(0), snap.BothSuccess)
}

func TestExecuteBothFailed(t *testing.T) {
	placers := domain.OrderPlacers{
		domain.VenueBinance: &stubPlacer{err: errors.New("down")},
		domain.VenueUpbit:   &stubPlacer{err: errors.New("down")},
	}
	ex := New(placers, Config{LegTimeout: time.Second}, testLogger())

	res, err := ex.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, res.BothFailed())
	assert.False(t, res.PartialFill())
	assert.Equal(t, uint64(1), ex.StatsSnapshot().BothFailed)
}

func TestExecuteLegTimeout(t *testing.T) {
	placers := domain.OrderPlacers{
		domain.VenueBinance: &stubPlacer{outcome: filledOutcome(100, 2.1), delay: 200 * time.Millisecond},
		domain.VenueUpbit:   &stubPlacer{outcome: filledOutcome(100, 3100)},
	}
	ex := New(placers, Config{LegTimeout: 20 * time.Millisecond}, testLogger())

	res, err := ex.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, res.PartialFill())
	assert.True(t, res.BuyLeg.Failed())
	assert.ErrorIs(t, res.BuyLeg.Err, domain.ErrOrderTimeout)
	assert.True(t, res.SellLeg.Success())
}

func TestExecuteValidationFailsFast(t *testing.T) {
	binance := &stubPlacer{outcome: filledOutcome(100, 2.1)}
	upbit := &stubPlacer{outcome: filledOutcome(100, 3100)}
	placers := domain.OrderPlacers{
		domain.VenueBinance: binance,
		domain.VenueUpbit:   upbit,
	}
	ex := New(placers, Config{LegTimeout: time.Second}, testLogger())

	req := testRequest()
	req.SellOrder.Venue = domain.VenueBinance // same venue both legs

	_, err := ex.Execute(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, int64(0), binance.calls.Load())
	assert.Equal(t, int64(0), upbit.calls.Load())
	assert.Equal(t, uint64(0), ex.StatsSnapshot().TotalRequests)
}

func TestExecuteVenueNotConfigured(t *testing.T) {
	placers := domain.OrderPlacers{
		domain.VenueBinance: &stubPlacer{outcome: filledOutcome(100, 2.1)},
	}
	ex := New(placers, Config{LegTimeout: time.Second}, testLogger())

	_, err := ex.Execute(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrVenueNotConfigured)
}

func TestExecuteDeduplicatesRequestID(t *testing.T) {
	placers := domain.OrderPlacers{
		domain.VenueBinance: &stubPlacer{outcome: filledOutcome(100, 2.1)},
		domain.VenueUpbit:   &stubPlacer{outcome: filledOutcome(100, 3100)},
	}
	ex := New(placers, Config{LegTimeout: time.Second, DedupTTL: time.Minute}, testLogger())

	_, err := ex.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	_, err = ex.Execute(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, uint64(1), ex.StatsSnapshot().TotalRequests)
}

func TestExecutePartialTriggersAutoRecovery(t *testing.T) {
	buyStub := &stubPlacer{outcome: filledOutcome(100, 2.1)}
	placers := domain.OrderPlacers{
		domain.VenueBinance: buyStub,
		domain.VenueUpbit:   &stubPlacer{err: errors.New("rejected")},
	}
	mgr := NewRecoveryManager(placers, RecoveryConfig{
		MaxRetries:           2,
		RetryDelay:           time.Millisecond,
		SlippageTolerancePct: 0.5,
	}, testLogger())

	ex := New(placers, Config{LegTimeout: time.Second, AutoRecovery: true}, testLogger())
	ex.SetRecovery(mgr, nil)

	var got domain.RecoveryResult
	ex.OnRecovery(func(r domain.RecoveryResult) { got = r })

	res, err := ex.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	require.True(t, res.PartialFill())

	// Buy filled on Binance, so the compensating sell goes back to Binance.
	assert.True(t, got.Success)
	assert.Equal(t, domain.RecoverySellBought, got.Plan.Action)
	assert.Equal(t, domain.VenueBinance, got.Plan.Order.Venue)
	assert.Equal(t, int64(2), buyStub.calls.Load()) // original leg + compensation

	snap := ex.StatsSnapshot()
	assert.Equal(t, uint64(1), snap.RecoveryAttempts)
	assert.Equal(t, uint64(1), snap.RecoverySuccesses)
}

func TestExecuteAsyncDeliversResult(t *testing.T) {
	placers := domain.OrderPlacers{
		domain.VenueBinance: &stubPlacer{outcome: filledOutcome(100, 2.1)},
		domain.VenueUpbit:   &stubPlacer{outcome: filledOutcome(100, 3100)},
	}
	ex := New(placers, Config{LegTimeout: time.Second}, testLogger())

	select {
	case res := <-ex.ExecuteAsync(context.Background(), testRequest()):
		assert.True(t, res.BothSuccess())
	case <-time.After(time.Second):
		t.Fatal("no result within deadline")
	}
}
