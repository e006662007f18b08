package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seoulquant/kimparb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)

// Create inserts a dual-order result. Legs are flattened into one row; a leg
// with an empty order_id and non-empty error never reached the venue.
func (s *ExecutionStore) Create(ctx context.Context, req domain.DualOrderRequest, res domain.DualOrderResult) error {
	buy := flattenLeg(res.BuyLeg)
	sell := flattenLeg(res.SellLeg)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO executions (
			request_id, expected_premium_pct, actual_premium_pct,
			buy_venue, buy_symbol, buy_order_id, buy_status, buy_filled_qty, buy_avg_price, buy_commission, buy_error, buy_latency_ms,
			sell_venue, sell_symbol, sell_order_id, sell_status, sell_filled_qty, sell_avg_price, sell_commission, sell_error, sell_latency_ms,
			started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		res.RequestID, req.ExpectedPremiumPct, res.ActualPremiumPct,
		res.BuyLeg.Venue.String(), req.BuyOrder.Symbol, buy.orderID, buy.status, buy.filledQty, buy.avgPrice, buy.commission, buy.errMsg, buy.latencyMS,
		res.SellLeg.Venue.String(), req.SellOrder.Symbol, sell.orderID, sell.status, sell.filledQty, sell.avgPrice, sell.commission, sell.errMsg, sell.latencyMS,
		res.StartedAt, res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}
	return nil
}

// GetByRequestID returns one stored execution.
func (s *ExecutionStore) GetByRequestID(ctx context.Context, requestID string) (domain.DualOrderResult, error) {
	row := s.pool.QueryRow(ctx, selectExecution+" WHERE request_id = $1", requestID)

	res, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DualOrderResult{}, domain.ErrNotFound
		}
		return domain.DualOrderResult{}, fmt.Errorf("postgres: get execution %s: %w", requestID, err)
	}
	return res, nil
}

// ListRecent returns the newest executions, most recent first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.DualOrderResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, selectExecution+" ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var out []domain.DualOrderResult
	for rows.Next() {
		res, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	return out, nil
}

const selectExecution = `
	SELECT request_id, actual_premium_pct,
		buy_venue, buy_order_id, buy_status, buy_filled_qty, buy_avg_price, buy_commission, buy_error, buy_latency_ms,
		sell_venue, sell_order_id, sell_status, sell_filled_qty, sell_avg_price, sell_commission, sell_error, sell_latency_ms,
		started_at, completed_at
	FROM executions`

// flatLeg is the row shape of one leg.
type flatLeg struct {
	orderID    string
	status     string
	filledQty  float64
	avgPrice   float64
	commission float64
	errMsg     string
	latencyMS  int64
}

func flattenLeg(leg domain.LegResult) flatLeg {
	f := flatLeg{
		errMsg:    leg.ErrorMessage(),
		latencyMS: leg.Latency.Milliseconds(),
	}
	if leg.Outcome != nil {
		f.orderID = leg.Outcome.OrderID
		f.status = string(leg.Outcome.Status)
		f.filledQty = leg.Outcome.FilledQty
		f.avgPrice = leg.Outcome.AvgPrice
		f.commission = leg.Outcome.Commission
	}
	return f
}

// restoreLeg rebuilds a LegResult from its flattened row. A leg without an
// order ID and with an error message is restored as a transport failure.
func restoreLeg(venue string, f flatLeg, at time.Time) domain.LegResult {
	v, _ := domain.ParseVenue(venue)
	leg := domain.LegResult{
		Venue:       v,
		Latency:     time.Duration(f.latencyMS) * time.Millisecond,
		StartedAt:   at,
		CompletedAt: at.Add(time.Duration(f.latencyMS) * time.Millisecond),
	}
	if f.orderID != "" || f.status != "" {
		leg.Outcome = &domain.OrderOutcome{
			OrderID:    f.orderID,
			Status:     domain.OrderStatus(f.status),
			FilledQty:  f.filledQty,
			AvgPrice:   f.avgPrice,
			Commission: f.commission,
			Message:    f.errMsg,
			Timestamp:  at,
		}
	} else if f.errMsg != "" {
		leg.Err = errors.New(f.errMsg)
	}
	return leg
}

func scanExecution(row pgx.Row) (domain.DualOrderResult, error) {
	var res domain.DualOrderResult
	var buyVenue, sellVenue string
	var buy, sell flatLeg

	err := row.Scan(&res.RequestID, &res.ActualPremiumPct,
		&buyVenue, &buy.orderID, &buy.status, &buy.filledQty, &buy.avgPrice, &buy.commission, &buy.errMsg, &buy.latencyMS,
		&sellVenue, &sell.orderID, &sell.status, &sell.filledQty, &sell.avgPrice, &sell.commission, &sell.errMsg, &sell.latencyMS,
		&res.StartedAt, &res.CompletedAt,
	)
	if err != nil {
		return domain.DualOrderResult{}, err
	}

	res.BuyLeg = restoreLeg(buyVenue, buy, res.StartedAt)
	res.SellLeg = restoreLeg(sellVenue, sell, res.StartedAt)
	return res, nil
}
