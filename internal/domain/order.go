package domain

import (
	"context"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus tracks the order lifecycle as reported by a venue.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusFailed          OrderStatus = "failed"
)

// OrderRequest is one order instruction for a single venue.
type OrderRequest struct {
	Venue         Venue
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64 // 0 for market orders
	ClientOrderID string
}

// Notional returns price * quantity in the venue-local currency.
func (r OrderRequest) Notional() float64 {
	return r.Price * r.Quantity
}

// OrderOutcome is the venue's response to a placed or queried order.
type OrderOutcome struct {
	OrderID    string
	Status     OrderStatus
	FilledQty  float64
	AvgPrice   float64
	Commission float64
	Message    string
	Timestamp  time.Time
}

// IsFilled reports whether the order filled completely.
func (o OrderOutcome) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// IsFailed reports whether the venue rejected or failed the order.
func (o OrderOutcome) IsFailed() bool {
	return o.Status == OrderStatusFailed || o.Status == OrderStatusCancelled
}

// Balance is a single-currency venue balance.
type Balance struct {
	Currency  string
	Available float64
	Locked    float64
}

// Total returns available plus locked.
func (b Balance) Total() float64 {
	return b.Available + b.Locked
}

// OrderPlacer is the per-venue order-placement collaborator. Implementations
// live outside the core (REST clients per venue) and must be safe to call
// concurrently for different venues. Call ordering within one venue is not
// guaranteed by the core.
type OrderPlacer interface {
	Place(ctx context.Context, req OrderRequest) (OrderOutcome, error)
	Cancel(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (OrderOutcome, error)
	GetBalance(ctx context.Context, currency string) (Balance, error)
}

// OrderPlacers maps venue identity to its placement collaborator. A mapping is
// sufficient; venue identity is data, not a type hierarchy.
type OrderPlacers map[Venue]OrderPlacer
