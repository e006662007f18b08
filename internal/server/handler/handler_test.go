package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulquant/kimparb/internal/domain"
	"github.com/seoulquant/kimparb/internal/premium"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func primedCalculator() *premium.Calculator {
	calc := premium.NewCalculator(premium.Config{ThresholdPct: 1.0, DefaultFxRate: 1400}, testLogger())
	calc.UpdatePrice(domain.VenueUpbit, 3100)
	calc.UpdatePrice(domain.VenueBinance, 2.10)
	return calc
}

func TestPremiumMatrixEncodesUnknownCellsAsNull(t *testing.T) {
	h := NewPremiumHandler(primedCalculator())

	rec := httptest.NewRecorder()
	h.Matrix(rec, httptest.NewRequest(http.MethodGet, "/api/premium", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 1400.0, body["fx_rate"])

	matrix, ok := body["matrix"].(map[string]any)
	require.True(t, ok)
	binanceRow, ok := matrix["binance"].(map[string]any)
	require.True(t, ok)

	// Binance at 2.10 USDT (2940 KRW), Upbit at 3100 KRW.
	assert.InDelta(t, (3100.0-2940.0)/2940.0*100, binanceRow["upbit"].(float64), 1e-9)
	assert.Zero(t, binanceRow["binance"])
	assert.Nil(t, binanceRow["mexc"]) // no MEXC price yet

	best, ok := body["best"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "binance", best["buy_venue"])
	assert.Equal(t, "upbit", best["sell_venue"])
}

func TestPremiumOpportunitiesFilter(t *testing.T) {
	h := NewPremiumHandler(primedCalculator())

	rec := httptest.NewRecorder()
	h.Opportunities(rec, httptest.NewRequest(http.MethodGet, "/api/premium/opportunities?min=1.5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 1.5, body["min_pct"])

	opps, ok := body["opportunities"].([]any)
	require.True(t, ok)
	require.Len(t, opps, 1) // only binance→upbit clears 1.5%
	first := opps[0].(map[string]any)
	assert.Equal(t, "binance", first["buy_venue"])
	assert.Greater(t, first["premium_pct"].(float64), 1.5)
}

func TestPremiumOpportunitiesRejectsBadMin(t *testing.T) {
	h := NewPremiumHandler(primedCalculator())

	rec := httptest.NewRecorder()
	h.Opportunities(rec, httptest.NewRequest(http.MethodGet, "/api/premium/opportunities?min=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "min must be a number")
}

func TestParseLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/executions/recent", nil)
	assert.Equal(t, 50, parseLimit(req, 50))

	req = httptest.NewRequest(http.MethodGet, "/api/executions/recent?limit=10", nil)
	assert.Equal(t, 10, parseLimit(req, 50))

	req = httptest.NewRequest(http.MethodGet, "/api/executions/recent?limit=9999", nil)
	assert.Equal(t, 500, parseLimit(req, 50))

	req = httptest.NewRequest(http.MethodGet, "/api/executions/recent?limit=-1", nil)
	assert.Equal(t, 50, parseLimit(req, 50))
}
