// Package service ties the premium matrix to the dual-order executor: a
// threshold crossing is pre-filtered against the breakeven premium, planned
// against live order books and, if still profitable, executed and persisted.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seoulquant/kimparb/internal/analyzer"
	"github.com/seoulquant/kimparb/internal/cache/redis"
	"github.com/seoulquant/kimparb/internal/domain"
	"github.com/seoulquant/kimparb/internal/executor"
	"github.com/seoulquant/kimparb/internal/notify"
	"github.com/seoulquant/kimparb/internal/premium"
)

// Config holds the service's execution gates.
type Config struct {
	// OrderQuantity is the base-asset size of every dual order.
	OrderQuantity float64
	// Cooldown is the minimum gap between two executions. Crossings inside
	// the window are observed and published but never traded.
	Cooldown time.Duration
	// AlertInterval rate-limits notifications per (buy venue, sell venue)
	// pair and per liquidity alert kind.
	AlertInterval time.Duration
	// Symbols maps each venue to its local market code.
	Symbols map[domain.Venue]string
}

// ArbitrageService routes premium crossings into dual-order executions. A nil
// executor puts the service in monitor mode: crossings are published and
// alerted but nothing trades.
type ArbitrageService struct {
	calc       *premium.Calculator
	analyzer   *analyzer.Analyzer
	exec       *executor.Executor
	executions domain.ExecutionStore
	recoveries domain.RecoveryStore
	bus        domain.SignalBus
	notifier   *notify.Notifier

	cfg    Config
	logger *slog.Logger
	stats  Stats

	mu        sync.Mutex
	inFlight  bool
	lastExec  time.Time
	lastAlert map[string]time.Time
}

// New creates an ArbitrageService. calc, anlz and logger are required; every
// other dependency may be nil and the matching side effect is skipped.
func New(
	calc *premium.Calculator,
	anlz *analyzer.Analyzer,
	exec *executor.Executor,
	executions domain.ExecutionStore,
	recoveries domain.RecoveryStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	cfg Config,
	logger *slog.Logger,
) *ArbitrageService {
	return &ArbitrageService{
		calc:       calc,
		analyzer:   anlz,
		exec:       exec,
		executions: executions,
		recoveries: recoveries,
		bus:        bus,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "arbitrage_service")),
		lastAlert:  make(map[string]time.Time),
	}
}

// Run registers the service as the premium, liquidity-alert and recovery
// handler and blocks until ctx is cancelled. ctx bounds every side effect
// spawned by a crossing.
func (s *ArbitrageService) Run(ctx context.Context) error {
	s.calc.SetCallback(func(info domain.PremiumInfo) {
		s.handlePremium(ctx, info)
	})
	s.analyzer.SetAlertCallback(func(venue domain.Venue, kind analyzer.AlertKind, msg string) {
		s.handleLiquidityAlert(ctx, venue, kind, msg)
	})
	if s.exec != nil {
		s.exec.OnRecovery(func(res domain.RecoveryResult) {
			s.handleRecovery(ctx, res)
		})
	}
	<-ctx.Done()
	return ctx.Err()
}

// handlePremium is invoked synchronously from the calculator's rebuild, so it
// must stay cheap: publish, maybe notify, and hand the slow path to a
// goroutine. At most one execution is in flight at a time.
func (s *ArbitrageService) handlePremium(ctx context.Context, info domain.PremiumInfo) {
	s.stats.Crossings.Add(1)
	s.publishPremium(ctx, info)
	s.alertPremium(ctx, info)

	if s.exec == nil || !s.tryReserve() {
		return
	}
	go func() {
		defer s.release()
		s.execute(ctx, info)
	}()
}

// tryReserve claims the single execution slot if no order is in flight and
// the cooldown has elapsed.
func (s *ArbitrageService) tryReserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	if !s.lastExec.IsZero() && time.Since(s.lastExec) < s.cfg.Cooldown {
		return false
	}
	s.inFlight = true
	return true
}

func (s *ArbitrageService) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// execute runs the full gate chain for one crossing: breakeven pre-filter,
// book-level plan, profitability, then the dual order itself.
func (s *ArbitrageService) execute(ctx context.Context, info domain.PremiumInfo) {
	breakeven := s.analyzer.BreakevenPremium(info.BuyVenue, info.SellVenue)
	if info.PremiumPct <= breakeven {
		s.stats.Skips.Add(1)
		s.logger.DebugContext(ctx, "crossing below breakeven",
			slog.String("buy_venue", info.BuyVenue.String()),
			slog.String("sell_venue", info.SellVenue.String()),
			slog.Float64("premium_pct", info.PremiumPct),
			slog.Float64("breakeven_pct", breakeven),
		)
		return
	}

	plan := s.analyzer.PlanMakerTakerOrder(info.BuyVenue, info.SellVenue, s.cfg.OrderQuantity, info.FxRate)
	if !plan.Profitable() {
		s.stats.Skips.Add(1)
		s.logger.DebugContext(ctx, "plan not profitable",
			slog.String("buy_venue", info.BuyVenue.String()),
			slog.String("sell_venue", info.SellVenue.String()),
			slog.Float64("gross_premium_pct", plan.GrossPremiumPct),
			slog.Float64("net_premium_pct", plan.NetPremiumPct),
			slog.Bool("valid", plan.Valid()),
		)
		return
	}

	req, err := s.buildRequest(plan)
	if err != nil {
		s.logger.ErrorContext(ctx, "cannot build dual order",
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.lastExec = time.Now()
	s.mu.Unlock()
	s.stats.Executions.Add(1)

	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "execution rejected",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	res.ComputeActualPremium(info.FxRate)
	s.recordExecution(ctx, req, res)
}

// buildRequest converts a plan into a DualOrderRequest: the maker leg rests
// as a limit order at the recommended price, the taker leg sweeps as a market
// order carrying the expected average fill as its reference price.
func (s *ArbitrageService) buildRequest(plan analyzer.DualOrderPlan) (domain.DualOrderRequest, error) {
	makerSymbol, ok := s.cfg.Symbols[plan.MakerVenue]
	if !ok {
		return domain.DualOrderRequest{}, fmt.Errorf("service: no symbol configured for venue %s", plan.MakerVenue)
	}
	takerSymbol, ok := s.cfg.Symbols[plan.TakerVenue]
	if !ok {
		return domain.DualOrderRequest{}, fmt.Errorf("service: no symbol configured for venue %s", plan.TakerVenue)
	}

	maker := domain.OrderRequest{
		Venue:         plan.MakerVenue,
		Symbol:        makerSymbol,
		Side:          plan.MakerSide,
		Type:          domain.OrderTypeLimit,
		Quantity:      plan.MakerQuantity,
		Price:         plan.MakerPrice,
		ClientOrderID: uuid.NewString(),
	}
	taker := domain.OrderRequest{
		Venue:         plan.TakerVenue,
		Symbol:        takerSymbol,
		Side:          plan.TakerSide,
		Type:          domain.OrderTypeMarket,
		Quantity:      plan.TakerQuantity,
		Price:         plan.TakerPrice,
		ClientOrderID: uuid.NewString(),
	}

	req := domain.DualOrderRequest{
		ID:                 uuid.NewString(),
		ExpectedPremiumPct: plan.GrossPremiumPct,
		SubmittedAt:        time.Now(),
	}
	if plan.MakerSide == domain.OrderSideBuy {
		req.BuyOrder, req.SellOrder = maker, taker
	} else {
		req.BuyOrder, req.SellOrder = taker, maker
	}
	return req, nil
}

// recordExecution persists the result, publishes it on the bus and notifies.
// Persistence failure is logged loudly but never unwinds the execution: the
// orders are already on the venues.
func (s *ArbitrageService) recordExecution(ctx context.Context, req domain.DualOrderRequest, res domain.DualOrderResult) {
	if s.executions != nil {
		if err := s.executions.Create(ctx, req, res); err != nil {
			s.logger.ErrorContext(ctx, "persist execution failed",
				slog.String("request_id", req.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publish(ctx, redis.ChannelExecution, map[string]any{
		"event":              "execution",
		"request_id":         res.RequestID,
		"expected_premium":   req.ExpectedPremiumPct,
		"actual_premium":     res.ActualPremiumPct,
		"buy_venue":          res.BuyLeg.Venue.String(),
		"sell_venue":         res.SellLeg.Venue.String(),
		"both_success":       res.BothSuccess(),
		"partial_fill":       res.PartialFill(),
		"total_latency_ms":   res.TotalLatency().Milliseconds(),
		"max_leg_latency_ms": res.MaxLegLatency().Milliseconds(),
	})

	switch {
	case res.PartialFill():
		s.notify(ctx, notify.EventPartialFill, "Partial fill",
			fmt.Sprintf("request %s: buy leg %s on %s, sell leg %s on %s",
				res.RequestID,
				legState(res.BuyLeg), res.BuyLeg.Venue,
				legState(res.SellLeg), res.SellLeg.Venue))
	case res.BothSuccess():
		s.notify(ctx, notify.EventExecution, "Dual order filled",
			fmt.Sprintf("request %s: expected %.2f%%, actual %.2f%%",
				res.RequestID, req.ExpectedPremiumPct, res.ActualPremiumPct))
	default:
		s.notify(ctx, notify.EventError, "Dual order failed",
			fmt.Sprintf("request %s: buy: %s; sell: %s",
				res.RequestID, res.BuyLeg.ErrorMessage(), res.SellLeg.ErrorMessage()))
	}
}

// handleRecovery persists the recovery disposition and surfaces it. Manual
// interventions are the operator's worklist; losing one strands a position.
func (s *ArbitrageService) handleRecovery(ctx context.Context, res domain.RecoveryResult) {
	if s.recoveries != nil {
		if err := s.recoveries.Create(ctx, res); err != nil {
			s.logger.ErrorContext(ctx, "persist recovery failed",
				slog.String("request_id", res.Plan.RequestID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publish(ctx, redis.ChannelRecovery, map[string]any{
		"event":      "recovery",
		"request_id": res.Plan.RequestID,
		"action":     string(res.Plan.Action),
		"success":    res.Success,
		"retries":    res.Plan.RetryCount,
		"message":    res.Message,
	})

	title := "Recovery succeeded"
	if !res.Success {
		title = "Recovery FAILED"
	}
	if res.Plan.Action == domain.RecoveryManualIntervention {
		title = "MANUAL INTERVENTION required"
	}
	s.notify(ctx, notify.EventRecovery,
		title,
		fmt.Sprintf("request %s: %s (%s)", res.Plan.RequestID, res.Message, res.Plan.Action))
}

// handleLiquidityAlert publishes book-quality degradation, rate-limited per
// (venue, kind).
func (s *ArbitrageService) handleLiquidityAlert(ctx context.Context, venue domain.Venue, kind analyzer.AlertKind, msg string) {
	if !s.shouldAlert(venue.String() + ":" + string(kind)) {
		return
	}
	s.logger.WarnContext(ctx, "liquidity alert",
		slog.String("venue", venue.String()),
		slog.String("kind", string(kind)),
		slog.String("message", msg),
	)
	s.publish(ctx, redis.ChannelAlert, map[string]any{
		"event":   "liquidity_alert",
		"venue":   venue.String(),
		"kind":    string(kind),
		"message": msg,
	})
}

func (s *ArbitrageService) publishPremium(ctx context.Context, info domain.PremiumInfo) {
	s.publish(ctx, redis.ChannelPremium, map[string]any{
		"event":          "premium_crossing",
		"buy_venue":      info.BuyVenue.String(),
		"sell_venue":     info.SellVenue.String(),
		"premium_pct":    info.PremiumPct,
		"buy_price_krw":  info.BuyPriceKRW,
		"sell_price_krw": info.SellPriceKRW,
		"fx_rate":        info.FxRate,
		"ts":             info.Timestamp.UnixMilli(),
	})
}

// alertPremium notifies at most once per AlertInterval per venue pair.
func (s *ArbitrageService) alertPremium(ctx context.Context, info domain.PremiumInfo) {
	if !s.shouldAlert(info.BuyVenue.String() + ">" + info.SellVenue.String()) {
		return
	}
	s.stats.Alerts.Add(1)
	s.notify(ctx, notify.EventPremiumAlert, "Premium threshold crossed",
		fmt.Sprintf("buy %s / sell %s: %.2f%% (fx %.2f)",
			info.BuyVenue, info.SellVenue, info.PremiumPct, info.FxRate))
}

// shouldAlert applies the per-key rate limit. Keys are unbounded only by the
// venue-pair and alert-kind space, so the map never needs sweeping.
func (s *ArbitrageService) shouldAlert(key string) bool {
	if s.cfg.AlertInterval <= 0 {
		return true
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastAlert[key]; ok && now.Sub(last) < s.cfg.AlertInterval {
		return false
	}
	s.lastAlert[key] = now
	return true
}

func (s *ArbitrageService) publish(ctx context.Context, channel string, event map[string]any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ArbitrageService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// RecentExecutions returns the latest persisted dual-order results.
func (s *ArbitrageService) RecentExecutions(ctx context.Context, limit int) ([]domain.DualOrderResult, error) {
	if s.executions == nil {
		return nil, nil
	}
	results, err := s.executions.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: list recent executions: %w", err)
	}
	return results, nil
}

// PendingRecoveries returns the unresolved manual-intervention worklist.
func (s *ArbitrageService) PendingRecoveries(ctx context.Context) ([]domain.RecoveryResult, error) {
	if s.recoveries == nil {
		return nil, nil
	}
	results, err := s.recoveries.ListPendingManual(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list pending recoveries: %w", err)
	}
	return results, nil
}

// StatsSnapshot returns current counter values.
func (s *ArbitrageService) StatsSnapshot() StatsSnapshot {
	return s.stats.Snapshot()
}

func legState(l domain.LegResult) string {
	if l.Success() {
		return "filled"
	}
	return "failed"
}
