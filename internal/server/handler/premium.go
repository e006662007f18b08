package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/seoulquant/kimparb/internal/domain"
	"github.com/seoulquant/kimparb/internal/premium"
)

// PremiumHandler exposes the live premium matrix.
type PremiumHandler struct {
	calc *premium.Calculator
}

// NewPremiumHandler creates a PremiumHandler backed by the given calculator.
func NewPremiumHandler(calc *premium.Calculator) *PremiumHandler {
	return &PremiumHandler{calc: calc}
}

// Matrix returns the full N×N premium matrix keyed by venue name. NaN cells
// (missing prices) are encoded as null.
// GET /api/premium
func (h *PremiumHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	matrix := h.calc.Matrix()

	cells := make(map[string]map[string]any, domain.VenueCount)
	for _, buy := range domain.Venues() {
		row := make(map[string]any, domain.VenueCount)
		for _, sell := range domain.Venues() {
			pct := matrix[buy][sell]
			if math.IsNaN(pct) {
				row[sell.String()] = nil
			} else {
				row[sell.String()] = pct
			}
		}
		cells[buy.String()] = row
	}

	resp := map[string]any{
		"matrix":  cells,
		"fx_rate": h.calc.FxRate(),
	}
	if best, ok := h.calc.BestOpportunity(); ok {
		resp["best"] = opportunityJSON(best)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Opportunities returns all matrix cells at or above the "min" query
// parameter (percent, default 0), sorted descending.
// GET /api/premium/opportunities?min=1.5
func (h *PremiumHandler) Opportunities(w http.ResponseWriter, r *http.Request) {
	minPct := 0.0
	if v := r.URL.Query().Get("min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min must be a number")
			return
		}
		minPct = f
	}

	opps := h.calc.Opportunities(minPct)
	out := make([]map[string]any, 0, len(opps))
	for _, opp := range opps {
		out = append(out, opportunityJSON(opp))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"min_pct":       minPct,
		"opportunities": out,
	})
}

func opportunityJSON(info domain.PremiumInfo) map[string]any {
	return map[string]any{
		"buy_venue":      info.BuyVenue.String(),
		"sell_venue":     info.SellVenue.String(),
		"premium_pct":    info.PremiumPct,
		"buy_price_krw":  info.BuyPriceKRW,
		"sell_price_krw": info.SellPriceKRW,
		"fx_rate":        info.FxRate,
		"timestamp":      info.Timestamp.UTC(),
	}
}
