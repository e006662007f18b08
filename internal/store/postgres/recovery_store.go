package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seoulquant/kimparb/internal/domain"
)

// RecoveryStore implements domain.RecoveryStore using PostgreSQL.
type RecoveryStore struct {
	pool *pgxpool.Pool
}

// NewRecoveryStore creates a new RecoveryStore.
func NewRecoveryStore(pool *pgxpool.Pool) *RecoveryStore {
	return &RecoveryStore{pool: pool}
}

var _ domain.RecoveryStore = (*RecoveryStore)(nil)

// Create inserts one recovery disposition.
func (s *RecoveryStore) Create(ctx context.Context, res domain.RecoveryResult) error {
	plan := res.Plan
	orderID := ""
	if res.Leg.Outcome != nil {
		orderID = res.Leg.Outcome.OrderID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO recoveries (
			id, request_id, action, venue, symbol, side, order_type,
			quantity, price, reason, retry_count, max_retries, success, message, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		plan.ID, plan.RequestID, string(plan.Action),
		plan.Order.Venue.String(), plan.Order.Symbol, string(plan.Order.Side), string(plan.Order.Type),
		plan.Order.Quantity, plan.Order.Price, plan.Reason,
		plan.RetryCount, plan.MaxRetries, res.Success, res.Message, orderID,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert recovery: %w", err)
	}
	return nil
}

// ListPendingManual returns unresolved manual-intervention records, oldest
// first, as the operator's worklist.
func (s *RecoveryStore) ListPendingManual(ctx context.Context) ([]domain.RecoveryResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, action, venue, symbol, side, order_type,
			quantity, price, reason, retry_count, max_retries, success, message
		FROM recoveries
		WHERE action = 'manual_intervention' AND success = FALSE
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list manual recoveries: %w", err)
	}
	defer rows.Close()

	var out []domain.RecoveryResult
	for rows.Next() {
		var res domain.RecoveryResult
		var action, venue, side, orderType string
		err := rows.Scan(&res.Plan.ID, &res.Plan.RequestID, &action, &venue, &res.Plan.Order.Symbol,
			&side, &orderType, &res.Plan.Order.Quantity, &res.Plan.Order.Price,
			&res.Plan.Reason, &res.Plan.RetryCount, &res.Plan.MaxRetries, &res.Success, &res.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan recovery: %w", err)
		}
		res.Plan.Action = domain.RecoveryAction(action)
		res.Plan.Order.Venue, _ = domain.ParseVenue(venue)
		res.Plan.Order.Side = domain.OrderSide(side)
		res.Plan.Order.Type = domain.OrderType(orderType)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list manual recoveries: %w", err)
	}
	return out, nil
}
