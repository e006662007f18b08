package domain

import "time"

// RecoveryAction classifies the compensation required after a dual-order
// outcome.
type RecoveryAction string

const (
	// RecoveryNone: both legs succeeded or both failed; nothing to unwind.
	RecoveryNone RecoveryAction = "none"
	// RecoverySellBought: buy leg filled, sell leg failed; sell the bought
	// quantity back to flatten the long.
	RecoverySellBought RecoveryAction = "sell_bought"
	// RecoveryBuySold: sell leg filled, buy leg failed; buy the sold quantity
	// back to cover the short.
	RecoveryBuySold RecoveryAction = "buy_sold"
	// RecoveryManualIntervention: the fills do not reconcile into a single
	// compensating order. No automatic order is placed; an operator must act.
	RecoveryManualIntervention RecoveryAction = "manual_intervention"
)

// RecoveryPlan is the decision output of the recovery manager: at most one
// compensating order plus retry policy.
type RecoveryPlan struct {
	ID         string // UUID
	RequestID  string // originating DualOrderRequest ID
	Action     RecoveryAction
	Order      OrderRequest
	Reason     string
	RetryCount int
	MaxRetries int
	RetryDelay time.Duration
}

// NeedsExecution reports whether the plan carries an order the manager should
// submit. Manual-intervention plans are surfaced, never executed.
func (p RecoveryPlan) NeedsExecution() bool {
	return p.Action == RecoverySellBought || p.Action == RecoveryBuySold
}

// CanRetry reports whether another attempt is allowed.
func (p RecoveryPlan) CanRetry() bool {
	return p.RetryCount < p.MaxRetries
}

// RecoveryResult is the final disposition of one recovery plan.
type RecoveryResult struct {
	Plan    RecoveryPlan // RetryCount reflects failed attempts
	Leg     LegResult
	Success bool
	Message string
}

// Completed reports whether the recovery reached a terminal state: either it
// succeeded or the retry budget is spent.
func (r RecoveryResult) Completed() bool {
	return r.Success || r.Plan.RetryCount >= r.Plan.MaxRetries
}
