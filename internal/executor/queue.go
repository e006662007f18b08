package executor

import (
	"context"
	"log/slog"

	"github.com/seoulquant/kimparb/internal/domain"
)

// RecoveryQueue serializes recovery plans through a single worker so
// compensating orders never race each other on a venue.
type RecoveryQueue struct {
	mgr    *RecoveryManager
	plans  chan domain.RecoveryPlan
	onDone RecoveryCallback
	logger *slog.Logger
}

// NewRecoveryQueue creates a queue with the given buffer size. A buffer of 0
// means enqueueing blocks until the worker is free.
func NewRecoveryQueue(mgr *RecoveryManager, buffer int, logger *slog.Logger) *RecoveryQueue {
	if buffer < 0 {
		buffer = 0
	}
	return &RecoveryQueue{
		mgr:    mgr,
		plans:  make(chan domain.RecoveryPlan, buffer),
		logger: logger.With(slog.String("component", "recovery_queue")),
	}
}

// OnDone registers a handler invoked after each plan completes.
func (q *RecoveryQueue) OnDone(cb RecoveryCallback) { q.onDone = cb }

// Enqueue submits a plan without blocking. It reports false when the buffer
// is full so the caller can fall back to inline execution.
func (q *RecoveryQueue) Enqueue(plan domain.RecoveryPlan) bool {
	select {
	case q.plans <- plan:
		return true
	default:
		return false
	}
}

// Len returns the number of plans waiting in the buffer.
func (q *RecoveryQueue) Len() int { return len(q.plans) }

// Run processes plans one at a time until the context is cancelled. It is the
// queue's single worker; call it once, typically inside an errgroup.
func (q *RecoveryQueue) Run(ctx context.Context) error {
	q.logger.Info("recovery queue started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("recovery queue stopped", slog.Int("pending", len(q.plans)))
			return ctx.Err()
		case plan := <-q.plans:
			res := q.mgr.ExecuteRecovery(ctx, plan)
			if !res.Success {
				q.logger.Error("queued recovery failed",
					slog.String("plan_id", plan.ID),
					slog.String("request_id", plan.RequestID),
					slog.String("message", res.Message),
				)
			}
			if q.onDone != nil {
				q.onDone(res)
			}
		}
	}
}
