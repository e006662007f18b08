package service

import "sync/atomic"

// Stats counts service activity. Observational only.
type Stats struct {
	Crossings  atomic.Uint64
	Executions atomic.Uint64
	Skips      atomic.Uint64
	Alerts     atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Crossings  uint64
	Executions uint64
	Skips      uint64
	Alerts     uint64
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Crossings:  s.Crossings.Load(),
		Executions: s.Executions.Load(),
		Skips:      s.Skips.Load(),
		Alerts:     s.Alerts.Load(),
	}
}
