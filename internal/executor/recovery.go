package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/seoulquant/kimparb/internal/domain"
)

// RecoveryConfig holds the tunables for partial-fill compensation.
type RecoveryConfig struct {
	// MaxRetries is the attempt budget per plan.
	MaxRetries int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
	// SlippageTolerancePct prices compensating limit orders away from the
	// filled leg's average price: sell-backs at avg*(1-tol/100), buy-backs at
	// avg*(1+tol/100). Higher tolerance fills faster but gives back more edge.
	SlippageTolerancePct float64
	// DryRun plans and logs without placing orders. Every executed plan
	// reports success with a dry-run message.
	DryRun bool
}

// DefaultRecoveryConfig returns the tunables used unless overridden.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxRetries:           3,
		RetryDelay:           2 * time.Second,
		SlippageTolerancePct: 0.5,
	}
}

// RecoveryManager decides and executes compensation for partially filled
// dual orders. Planning is deterministic; execution retries with a fixed
// delay until success or budget exhaustion.
type RecoveryManager struct {
	placers domain.OrderPlacers
	cfg     RecoveryConfig
	logger  *slog.Logger

	plansCreated atomic.Uint64
	executed     atomic.Uint64
	succeeded    atomic.Uint64
	manualCount  atomic.Uint64
}

// NewRecoveryManager creates a manager over the same per-venue order clients
// the executor uses.
func NewRecoveryManager(placers domain.OrderPlacers, cfg RecoveryConfig, logger *slog.Logger) *RecoveryManager {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRecoveryConfig().MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRecoveryConfig().RetryDelay
	}
	return &RecoveryManager{
		placers: placers,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "recovery")),
	}
}

// CreatePlan derives the compensating action for a dual-order outcome. It is
// pure decision logic: the same request and result always yield the same
// action, order, and reason.
func (m *RecoveryManager) CreatePlan(req domain.DualOrderRequest, res domain.DualOrderResult) domain.RecoveryPlan {
	plan := domain.RecoveryPlan{
		ID:         uuid.NewString(),
		RequestID:  req.ID,
		Action:     domain.RecoveryNone,
		MaxRetries: m.cfg.MaxRetries,
		RetryDelay: m.cfg.RetryDelay,
	}

	switch {
	case res.BothSuccess():
		plan.Reason = "both legs succeeded, nothing to unwind"
	case res.BothFailed():
		plan.Reason = "both legs failed, no position opened"

	case res.BuyLeg.Success():
		qty := res.BuyLeg.FilledQty()
		if qty <= 0 {
			plan.Action = domain.RecoveryManualIntervention
			plan.Reason = fmt.Sprintf("buy leg on %s reported success with zero filled quantity", res.BuyLeg.Venue)
			break
		}
		plan.Action = domain.RecoverySellBought
		plan.Reason = fmt.Sprintf("buy leg filled %.8f on %s, sell leg failed on %s: %s",
			qty, res.BuyLeg.Venue, res.SellLeg.Venue, res.SellLeg.ErrorMessage())
		plan.Order = m.compensatingOrder(req.BuyOrder, domain.OrderSideSell, qty, res.BuyLeg.AvgPrice())

	default: // sell leg succeeded, buy leg failed
		qty := res.SellLeg.FilledQty()
		if qty <= 0 {
			plan.Action = domain.RecoveryManualIntervention
			plan.Reason = fmt.Sprintf("sell leg on %s reported success with zero filled quantity", res.SellLeg.Venue)
			break
		}
		plan.Action = domain.RecoveryBuySold
		plan.Reason = fmt.Sprintf("sell leg filled %.8f on %s, buy leg failed on %s: %s",
			qty, res.SellLeg.Venue, res.BuyLeg.Venue, res.BuyLeg.ErrorMessage())
		plan.Order = m.compensatingOrder(req.SellOrder, domain.OrderSideBuy, qty, res.SellLeg.AvgPrice())
	}

	m.plansCreated.Add(1)
	if plan.Action == domain.RecoveryManualIntervention {
		m.manualCount.Add(1)
	}
	return plan
}

// compensatingOrder reverses a filled leg on its own venue. When the fill
// price is known the order is a limit priced inside the slippage tolerance;
// otherwise it degrades to a market order.
func (m *RecoveryManager) compensatingOrder(filled domain.OrderRequest, side domain.OrderSide, qty, avgPrice float64) domain.OrderRequest {
	order := domain.OrderRequest{
		Venue:         filled.Venue,
		Symbol:        filled.Symbol,
		Side:          side,
		Type:          domain.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: uuid.NewString(),
	}
	if avgPrice > 0 {
		order.Type = domain.OrderTypeLimit
		tol := m.cfg.SlippageTolerancePct / 100
		if side == domain.OrderSideSell {
			order.Price = avgPrice * (1 - tol)
		} else {
			order.Price = avgPrice * (1 + tol)
		}
	}
	return order
}

// ExecuteRecovery submits the plan's compensating order, retrying with a
// fixed delay until it fills or the budget is spent. Manual-intervention and
// no-op plans return immediately. Context cancellation stops the retry loop.
func (m *RecoveryManager) ExecuteRecovery(ctx context.Context, plan domain.RecoveryPlan) domain.RecoveryResult {
	if !plan.NeedsExecution() {
		return domain.RecoveryResult{
			Plan:    plan,
			Success: plan.Action == domain.RecoveryNone,
			Message: plan.Reason,
		}
	}

	m.executed.Add(1)

	if m.cfg.DryRun {
		m.logger.Info("dry run, skipping compensating order",
			slog.String("plan_id", plan.ID),
			slog.String("action", string(plan.Action)),
			slog.String("venue", plan.Order.Venue.String()),
			slog.Float64("quantity", plan.Order.Quantity),
		)
		m.succeeded.Add(1)
		return domain.RecoveryResult{Plan: plan, Success: true, Message: "dry run"}
	}

	placer, ok := m.placers[plan.Order.Venue]
	if !ok {
		return domain.RecoveryResult{
			Plan:    plan,
			Message: fmt.Sprintf("no order client for %s", plan.Order.Venue),
		}
	}

	var leg domain.LegResult
	for plan.CanRetry() {
		leg = m.attempt(ctx, placer, plan.Order)
		if leg.Success() {
			m.succeeded.Add(1)
			m.logger.Info("recovery order filled",
				slog.String("plan_id", plan.ID),
				slog.String("action", string(plan.Action)),
				slog.Int("attempt", plan.RetryCount+1),
			)
			return domain.RecoveryResult{Plan: plan, Leg: leg, Success: true, Message: "compensating order placed"}
		}

		// Only failed attempts count against the retry budget.
		plan.RetryCount++
		m.logger.Warn("recovery attempt failed",
			slog.String("plan_id", plan.ID),
			slog.Int("attempt", plan.RetryCount),
			slog.Int("max_retries", plan.MaxRetries),
			slog.String("error", leg.ErrorMessage()),
		)
		if !plan.CanRetry() {
			break
		}
		select {
		case <-ctx.Done():
			return domain.RecoveryResult{
				Plan: plan,
				Leg:  leg,
				Message: fmt.Sprintf("cancelled after %d attempts: %v",
					plan.RetryCount, ctx.Err()),
			}
		case <-time.After(plan.RetryDelay):
		}
	}

	return domain.RecoveryResult{
		Plan: plan,
		Leg:  leg,
		Message: fmt.Sprintf("%v: %d attempts, last error: %s",
			domain.ErrRecoveryExhausted, plan.RetryCount, leg.ErrorMessage()),
	}
}

func (m *RecoveryManager) attempt(ctx context.Context, placer domain.OrderPlacer, order domain.OrderRequest) domain.LegResult {
	leg := domain.LegResult{Venue: order.Venue, StartedAt: time.Now()}
	outcome, err := placer.Place(ctx, order)
	leg.CompletedAt = time.Now()
	leg.Latency = leg.CompletedAt.Sub(leg.StartedAt)
	if err != nil {
		leg.Err = err
		return leg
	}
	leg.Outcome = &outcome
	return leg
}

// RecoveryStats is a point-in-time view of the manager's counters.
type RecoveryStats struct {
	PlansCreated       uint64
	Executed           uint64
	Succeeded          uint64
	ManualIntervention uint64
}

// Stats returns current counter values.
func (m *RecoveryManager) Stats() RecoveryStats {
	return RecoveryStats{
		PlansCreated:       m.plansCreated.Load(),
		Executed:           m.executed.Load(),
		Succeeded:          m.succeeded.Load(),
		ManualIntervention: m.manualCount.Load(),
	}
}
