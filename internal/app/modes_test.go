package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seoulquant/kimparb/internal/config"
	"github.com/seoulquant/kimparb/internal/domain"
)

func TestBuildAnalyzerAppliesConfigFees(t *testing.T) {
	cfg := config.Defaults()
	cfg.Upbit.MakerFee = 0.00025
	cfg.Binance.TakerFee = 0.00075

	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fees := a.buildAnalyzer().Fees()

	assert.Equal(t, 0.00025, fees.Maker(domain.VenueUpbit))
	assert.Equal(t, 0.00075, fees.Taker(domain.VenueBinance))
	// Venues without overrides keep the base-tier rates.
	assert.Equal(t, 0.0004, fees.Maker(domain.VenueBithumb))
	assert.Equal(t, 0.0002, fees.Taker(domain.VenueMEXC))
}
