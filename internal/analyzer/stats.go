package analyzer

import "sync/atomic"

// Stats counts analyzer activity. Observational only.
type Stats struct {
	Updates atomic.Uint64
	Queries atomic.Uint64
	Alerts  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Updates uint64
	Queries uint64
	Alerts  uint64
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Updates: s.Updates.Load(),
		Queries: s.Queries.Load(),
		Alerts:  s.Alerts.Load(),
	}
}
