// Package executor races the two legs of a dual-order request against their
// venue order clients, classifies the joint outcome, and drives compensation
// for partial fills.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// ResultCallback receives every classified dual-order result.
type ResultCallback func(domain.DualOrderResult)

// RecoveryCallback receives the disposition of every recovery attempt,
// including manual-intervention plans that were never executed.
type RecoveryCallback func(domain.RecoveryResult)

// Config holds the executor's tunables.
type Config struct {
	// LegTimeout bounds each leg submission independently. A timed-out leg
	// counts as failed; it is never retried at this level.
	LegTimeout time.Duration
	// AutoRecovery hands partial fills to the recovery manager. When false,
	// partial results are surfaced to the caller untouched.
	AutoRecovery bool
	// DedupTTL is how long a request ID blocks re-execution. Zero disables
	// deduplication.
	DedupTTL time.Duration
}

// Executor submits both legs of a DualOrderRequest concurrently and joins the
// results. It owns no venue connections; placement goes through the injected
// per-venue collaborators.
type Executor struct {
	placers  domain.OrderPlacers
	recovery *RecoveryManager
	queue    *RecoveryQueue
	cfg      Config

	onResult   ResultCallback
	onRecovery RecoveryCallback
	dedup      *dedup

	logger *slog.Logger
	stats  Stats
}

// New creates an Executor over the given per-venue order clients.
func New(placers domain.OrderPlacers, cfg Config, logger *slog.Logger) *Executor {
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = 30 * time.Second
	}
	e := &Executor{
		placers: placers,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "dual_executor")),
	}
	if cfg.DedupTTL > 0 {
		e.dedup = newDedup(cfg.DedupTTL)
	}
	return e
}

// SetRecovery attaches a recovery manager. When queue is non-nil, partial
// fills are enqueued for the sequential recovery worker instead of being
// compensated inline.
func (e *Executor) SetRecovery(mgr *RecoveryManager, queue *RecoveryQueue) {
	e.recovery = mgr
	e.queue = queue
}

// OnResult registers the single result handler, invoked after classification.
func (e *Executor) OnResult(cb ResultCallback) { e.onResult = cb }

// OnRecovery registers the single recovery handler.
func (e *Executor) OnRecovery(cb RecoveryCallback) { e.onRecovery = cb }

// HasVenue reports whether an order client is configured for the venue.
func (e *Executor) HasVenue(v domain.Venue) bool {
	_, ok := e.placers[v]
	return ok
}

// Execute validates the request, submits both legs concurrently, joins and
// classifies the outcome, and (when enabled) triggers recovery for partial
// fills. The returned error is non-nil only for requests rejected before any
// side effect; leg-level failures are data on the result.
func (e *Executor) Execute(ctx context.Context, req domain.DualOrderRequest) (domain.DualOrderResult, error) {
	if err := req.Validate(); err != nil {
		return domain.DualOrderResult{}, err
	}
	if !e.HasVenue(req.BuyOrder.Venue) {
		return domain.DualOrderResult{}, fmt.Errorf("executor: buy venue %s: %w",
			req.BuyOrder.Venue, domain.ErrVenueNotConfigured)
	}
	if !e.HasVenue(req.SellOrder.Venue) {
		return domain.DualOrderResult{}, fmt.Errorf("executor: sell venue %s: %w",
			req.SellOrder.Venue, domain.ErrVenueNotConfigured)
	}
	if e.dedup != nil && e.dedup.isDuplicate(req.ID) {
		return domain.DualOrderResult{}, fmt.Errorf("executor: duplicate request %s: %w",
			req.ID, domain.ErrInvalidRequest)
	}

	result := domain.DualOrderResult{
		RequestID: req.ID,
		StartedAt: time.Now(),
	}

	buyCh := make(chan domain.LegResult, 1)
	sellCh := make(chan domain.LegResult, 1)
	go func() { buyCh <- e.executeLeg(ctx, req.BuyOrder) }()
	go func() { sellCh <- e.executeLeg(ctx, req.SellOrder) }()

	// Join: both legs must be observed regardless of either failing.
	result.BuyLeg = <-buyCh
	result.SellLeg = <-sellCh
	result.CompletedAt = time.Now()

	e.stats.Record(result)
	e.logResult(req, result)

	if result.PartialFill() && e.cfg.AutoRecovery && e.recovery != nil {
		e.handleRecovery(ctx, req, result)
	}

	if e.onResult != nil {
		e.onResult(result)
	}
	return result, nil
}

// ExecuteAsync runs Execute on its own goroutine and delivers the result on
// the returned channel. Validation errors surface as a result whose legs
// carry the error.
func (e *Executor) ExecuteAsync(ctx context.Context, req domain.DualOrderRequest) <-chan domain.DualOrderResult {
	out := make(chan domain.DualOrderResult, 1)
	go func() {
		defer close(out)
		res, err := e.Execute(ctx, req)
		if err != nil {
			now := time.Now()
			res = domain.DualOrderResult{
				RequestID:   req.ID,
				BuyLeg:      domain.LegResult{Venue: req.BuyOrder.Venue, Err: err, StartedAt: now, CompletedAt: now},
				SellLeg:     domain.LegResult{Venue: req.SellOrder.Venue, Err: err, StartedAt: now, CompletedAt: now},
				StartedAt:   now,
				CompletedAt: now,
			}
		}
		out <- res
	}()
	return out
}

// executeLeg submits one order with its own timeout and captures outcome,
// error, and timing. It never panics across the leg boundary; all failure is
// data on the LegResult.
func (e *Executor) executeLeg(ctx context.Context, order domain.OrderRequest) domain.LegResult {
	leg := domain.LegResult{
		Venue:     order.Venue,
		StartedAt: time.Now(),
	}

	legCtx, cancel := context.WithTimeout(ctx, e.cfg.LegTimeout)
	defer cancel()

	outcome, err := e.placers[order.Venue].Place(legCtx, order)
	leg.CompletedAt = time.Now()
	leg.Latency = leg.CompletedAt.Sub(leg.StartedAt)

	switch {
	case err != nil && legCtx.Err() != nil:
		leg.Err = fmt.Errorf("executor: %s leg after %s: %w", order.Venue, leg.Latency, domain.ErrOrderTimeout)
	case err != nil:
		leg.Err = fmt.Errorf("executor: %s leg: %w", order.Venue, err)
	default:
		leg.Outcome = &outcome
	}
	return leg
}

// handleRecovery builds the compensation plan and either executes it inline
// or hands it to the sequential queue. Manual-intervention plans are never
// executed; they are surfaced through the recovery callback and an error log.
func (e *Executor) handleRecovery(ctx context.Context, req domain.DualOrderRequest, res domain.DualOrderResult) {
	plan := e.recovery.CreatePlan(req, res)

	switch {
	case plan.Action == domain.RecoveryNone:
		return

	case plan.Action == domain.RecoveryManualIntervention:
		e.logger.Error("recovery requires manual intervention",
			slog.String("request_id", req.ID),
			slog.String("reason", plan.Reason),
		)
		if e.onRecovery != nil {
			e.onRecovery(domain.RecoveryResult{
				Plan:    plan,
				Success: false,
				Message: "manual intervention required",
			})
		}
		return

	case e.queue != nil:
		if !e.queue.Enqueue(plan) {
			e.logger.Error("recovery queue full, compensating inline",
				slog.String("request_id", req.ID),
			)
			e.runRecovery(ctx, plan)
		}
		return

	default:
		e.runRecovery(ctx, plan)
	}
}

func (e *Executor) runRecovery(ctx context.Context, plan domain.RecoveryPlan) {
	recRes := e.recovery.ExecuteRecovery(ctx, plan)
	e.stats.RecordRecovery(recRes.Success)
	if e.onRecovery != nil {
		e.onRecovery(recRes)
	}
}

func (e *Executor) logResult(req domain.DualOrderRequest, res domain.DualOrderResult) {
	attrs := []any{
		slog.String("request_id", req.ID),
		slog.String("buy_venue", req.BuyOrder.Venue.String()),
		slog.String("sell_venue", req.SellOrder.Venue.String()),
		slog.Duration("total_latency", res.TotalLatency()),
	}
	switch {
	case res.BothSuccess():
		e.logger.Info("dual order completed", attrs...)
	case res.PartialFill():
		e.logger.Warn("dual order partial fill",
			append(attrs,
				slog.Bool("buy_ok", res.BuyLeg.Success()),
				slog.Bool("sell_ok", res.SellLeg.Success()),
				slog.String("buy_error", res.BuyLeg.ErrorMessage()),
				slog.String("sell_error", res.SellLeg.ErrorMessage()),
			)...)
	default:
		e.logger.Warn("dual order failed on both legs",
			append(attrs,
				slog.String("buy_error", res.BuyLeg.ErrorMessage()),
				slog.String("sell_error", res.SellLeg.ErrorMessage()),
			)...)
	}
}

// StatsSnapshot returns current counter values.
func (e *Executor) StatsSnapshot() StatsSnapshot {
	return e.stats.Snapshot()
}
