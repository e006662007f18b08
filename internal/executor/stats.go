package executor

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// Stats counts executor outcomes and latency aggregates. Monotonic,
// observational only; nothing in the execution path reads these back.
type Stats struct {
	TotalRequests     atomic.Uint64
	BothSuccess       atomic.Uint64
	PartialFills      atomic.Uint64
	BothFailed        atomic.Uint64
	RecoveryAttempts  atomic.Uint64
	RecoverySuccesses atomic.Uint64

	totalLatencyUS atomic.Int64
	maxLatencyUS   atomic.Int64
	minLatencyUS   atomic.Int64
}

// Record classifies one result into exactly one outcome bucket and folds its
// latency into the aggregates.
func (s *Stats) Record(res domain.DualOrderResult) {
	s.TotalRequests.Add(1)
	switch {
	case res.BothSuccess():
		s.BothSuccess.Add(1)
	case res.PartialFill():
		s.PartialFills.Add(1)
	default:
		s.BothFailed.Add(1)
	}

	us := res.TotalLatency().Microseconds()
	s.totalLatencyUS.Add(us)

	for {
		cur := s.maxLatencyUS.Load()
		if us <= cur || s.maxLatencyUS.CompareAndSwap(cur, us) {
			break
		}
	}
	for {
		cur := s.minLatencyUS.Load()
		if cur != 0 && us >= cur {
			break
		}
		if s.minLatencyUS.CompareAndSwap(cur, us) {
			break
		}
	}
}

// RecordRecovery counts one recovery attempt and its outcome.
func (s *Stats) RecordRecovery(success bool) {
	s.RecoveryAttempts.Add(1)
	if success {
		s.RecoverySuccesses.Add(1)
	}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TotalRequests     uint64
	BothSuccess       uint64
	PartialFills      uint64
	BothFailed        uint64
	RecoveryAttempts  uint64
	RecoverySuccesses uint64
	AvgLatency        time.Duration
	MaxLatency        time.Duration
	MinLatency        time.Duration
	SuccessRate       float64 // percent of requests with both legs filled
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TotalRequests:     s.TotalRequests.Load(),
		BothSuccess:       s.BothSuccess.Load(),
		PartialFills:      s.PartialFills.Load(),
		BothFailed:        s.BothFailed.Load(),
		RecoveryAttempts:  s.RecoveryAttempts.Load(),
		RecoverySuccesses: s.RecoverySuccesses.Load(),
		MaxLatency:        time.Duration(s.maxLatencyUS.Load()) * time.Microsecond,
		MinLatency:        time.Duration(s.minLatencyUS.Load()) * time.Microsecond,
	}
	if snap.TotalRequests > 0 {
		snap.AvgLatency = time.Duration(s.totalLatencyUS.Load()/int64(snap.TotalRequests)) * time.Microsecond
		snap.SuccessRate = math.Round(float64(snap.BothSuccess)/float64(snap.TotalRequests)*10000) / 100
	}
	return snap
}
