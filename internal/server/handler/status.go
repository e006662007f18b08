package handler

import (
	"net/http"
	"time"

	"github.com/seoulquant/kimparb/internal/analyzer"
	"github.com/seoulquant/kimparb/internal/domain"
	"github.com/seoulquant/kimparb/internal/executor"
	"github.com/seoulquant/kimparb/internal/premium"
	"github.com/seoulquant/kimparb/internal/service"
)

// StatusHandler reports the engine's runtime counters and per-venue book
// quality in one response.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	calc      *premium.Calculator
	anlz      *analyzer.Analyzer
	svc       *service.ArbitrageService
	exec      *executor.Executor // nil in monitor mode
}

// NewStatusHandler creates a StatusHandler. exec may be nil.
func NewStatusHandler(mode string, calc *premium.Calculator, anlz *analyzer.Analyzer, svc *service.ArbitrageService, exec *executor.Executor) *StatusHandler {
	return &StatusHandler{
		mode:      mode,
		startedAt: time.Now().UTC(),
		calc:      calc,
		anlz:      anlz,
		svc:       svc,
		exec:      exec,
	}
}

// Status returns the engine mode, uptime, counters, and the latest liquidity
// metrics per venue.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	calcStats := h.calc.StatsSnapshot()
	anlzStats := h.anlz.StatsSnapshot()
	svcStats := h.svc.StatsSnapshot()

	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"fx_rate":        h.calc.FxRate(),
		"premium": map[string]any{
			"price_updates": calcStats.PriceUpdates,
			"fx_updates":    calcStats.FxUpdates,
			"rebuilds":      calcStats.Rebuilds,
			"alerts":        calcStats.Alerts,
		},
		"analyzer": map[string]any{
			"updates": anlzStats.Updates,
			"queries": anlzStats.Queries,
			"alerts":  anlzStats.Alerts,
		},
		"service": map[string]any{
			"crossings":  svcStats.Crossings,
			"executions": svcStats.Executions,
			"skips":      svcStats.Skips,
			"alerts":     svcStats.Alerts,
		},
		"liquidity": h.liquidity(),
	}

	if h.exec != nil {
		execStats := h.exec.StatsSnapshot()
		resp["executor"] = map[string]any{
			"total_requests":     execStats.TotalRequests,
			"both_success":       execStats.BothSuccess,
			"partial_fills":      execStats.PartialFills,
			"both_failed":        execStats.BothFailed,
			"recovery_attempts":  execStats.RecoveryAttempts,
			"recovery_successes": execStats.RecoverySuccesses,
			"success_rate_pct":   execStats.SuccessRate,
			"avg_latency_ms":     execStats.AvgLatency.Milliseconds(),
			"max_latency_ms":     execStats.MaxLatency.Milliseconds(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) liquidity() map[string]any {
	out := make(map[string]any, domain.VenueCount)
	for _, m := range h.anlz.AllLiquidity() {
		if m.Timestamp.IsZero() {
			continue
		}
		out[m.Venue.String()] = map[string]any{
			"symbol":     m.Symbol,
			"best_bid":   m.BestBid,
			"best_ask":   m.BestAsk,
			"spread_bps": m.SpreadBps,
			"bid_depth":  m.BidDepth,
			"ask_depth":  m.AskDepth,
			"bid_value":  m.BidValue,
			"ask_value":  m.AskValue,
			"imbalance":  m.Imbalance,
			"timestamp":  m.Timestamp.UTC(),
		}
	}
	return out
}
