package premium

import "sync/atomic"

// Stats counts calculator activity. Observational only; no control flow reads
// these.
type Stats struct {
	PriceUpdates atomic.Uint64
	FxUpdates    atomic.Uint64
	Rebuilds     atomic.Uint64
	Alerts       atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	PriceUpdates uint64
	FxUpdates    uint64
	Rebuilds     uint64
	Alerts       uint64
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PriceUpdates: s.PriceUpdates.Load(),
		FxUpdates:    s.FxUpdates.Load(),
		Rebuilds:     s.Rebuilds.Load(),
		Alerts:       s.Alerts.Load(),
	}
}
