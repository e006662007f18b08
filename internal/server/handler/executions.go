package handler

import (
	"net/http"

	"github.com/seoulquant/kimparb/internal/domain"
	"github.com/seoulquant/kimparb/internal/service"
)

// ExecutionHandler exposes persisted execution and recovery history.
type ExecutionHandler struct {
	svc *service.ArbitrageService
}

// NewExecutionHandler creates an ExecutionHandler backed by the service.
func NewExecutionHandler(svc *service.ArbitrageService) *ExecutionHandler {
	return &ExecutionHandler{svc: svc}
}

// ListRecent returns the most recent dual-order results.
// GET /api/executions/recent?limit=50
func (h *ExecutionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.RecentExecutions(r.Context(), parseLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		out = append(out, executionJSON(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": out})
}

// ListPendingRecoveries returns unresolved manual-intervention recoveries,
// oldest first.
// GET /api/recoveries/pending
func (h *ExecutionHandler) ListPendingRecoveries(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.PendingRecoveries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recoveries")
		return
	}

	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		out = append(out, map[string]any{
			"request_id": res.Plan.RequestID,
			"action":     string(res.Plan.Action),
			"reason":     res.Plan.Reason,
			"message":    res.Message,
			"venue":      res.Plan.Order.Venue.String(),
			"symbol":     res.Plan.Order.Symbol,
			"side":       string(res.Plan.Order.Side),
			"quantity":   res.Plan.Order.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"recoveries": out})
}

func executionJSON(res domain.DualOrderResult) map[string]any {
	return map[string]any{
		"request_id":       res.RequestID,
		"actual_premium":   res.ActualPremiumPct,
		"both_success":     res.BothSuccess(),
		"partial_fill":     res.PartialFill(),
		"started_at":       res.StartedAt.UTC(),
		"completed_at":     res.CompletedAt.UTC(),
		"total_latency_ms": res.TotalLatency().Milliseconds(),
		"buy_leg":          legJSON(res.BuyLeg),
		"sell_leg":         legJSON(res.SellLeg),
	}
}

func legJSON(leg domain.LegResult) map[string]any {
	out := map[string]any{
		"venue":      leg.Venue.String(),
		"success":    leg.Success(),
		"filled_qty": leg.FilledQty(),
		"avg_price":  leg.AvgPrice(),
		"latency_ms": leg.Latency.Milliseconds(),
	}
	if msg := leg.ErrorMessage(); msg != "" {
		out["error"] = msg
	}
	return out
}
