package domain

import "context"

// ExecutionStore persists dual-order results for audit and PnL accounting.
type ExecutionStore interface {
	Create(ctx context.Context, req DualOrderRequest, res DualOrderResult) error
	GetByRequestID(ctx context.Context, requestID string) (DualOrderResult, error)
	ListRecent(ctx context.Context, limit int) ([]DualOrderResult, error)
}

// RecoveryStore persists recovery dispositions. Manual-intervention records
// are the operator's worklist and must never be lost.
type RecoveryStore interface {
	Create(ctx context.Context, res RecoveryResult) error
	ListPendingManual(ctx context.Context) ([]RecoveryResult, error)
}

// PriceCache stores the latest quote per venue for consumers outside the
// in-process ingestion path (dashboards, other processes).
type PriceCache interface {
	SetQuote(ctx context.Context, quote PriceQuote) error
	GetQuote(ctx context.Context, venue Venue, symbol string) (PriceQuote, error)
}

// SignalBus is a publish/subscribe channel for premium and alert events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter writes an object to blob storage.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}

// Archiver batches order-book snapshots into periodic blob objects.
type Archiver interface {
	Add(snapshot OrderBookSnapshot)
	Flush(ctx context.Context) error
}

// FxRateSource supplies the KRW/USDT conversion rate.
type FxRateSource interface {
	Rate(ctx context.Context) (FxRate, error)
}
