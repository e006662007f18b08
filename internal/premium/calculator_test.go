package premium

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulquant/kimparb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCalculator() *Calculator {
	return NewCalculator(Config{ThresholdPct: 1.0, DefaultFxRate: 1480}, testLogger())
}

func TestNewMatrixDiagonalZeroRestNaN(t *testing.T) {
	c := newTestCalculator()
	m := c.Matrix()

	for _, buy := range domain.Venues() {
		for _, sell := range domain.Venues() {
			if buy == sell {
				assert.Zero(t, m[buy][sell])
			} else {
				assert.True(t, math.IsNaN(m[buy][sell]))
			}
		}
	}
}

func TestPremiumKnownValue(t *testing.T) {
	c := newTestCalculator()
	c.UpdatePrice(domain.VenueUpbit, 3100)
	c.UpdatePrice(domain.VenueBinance, 2.10)

	// Buy Binance at 2.10 USDT (3108 KRW at 1480), sell Upbit at 3100 KRW.
	want := (3100 - 2.10*1480) / (2.10 * 1480) * 100
	assert.InDelta(t, want, c.Premium(domain.VenueBinance, domain.VenueUpbit), 1e-9)

	// The reverse direction is computed off the other base price.
	reverse := (2.10*1480 - 3100) / 3100 * 100
	assert.InDelta(t, reverse, c.Premium(domain.VenueUpbit, domain.VenueBinance), 1e-9)

	// Cells touching a venue without a price stay NaN.
	assert.True(t, math.IsNaN(c.Premium(domain.VenueMEXC, domain.VenueUpbit)))
}

func TestUpdateFxRateRebuilds(t *testing.T) {
	c := newTestCalculator()
	c.UpdatePrice(domain.VenueUpbit, 3100)
	c.UpdatePrice(domain.VenueBinance, 2.10)

	before := c.Premium(domain.VenueBinance, domain.VenueUpbit)
	c.UpdateFxRate(1400)
	after := c.Premium(domain.VenueBinance, domain.VenueUpbit)

	assert.NotEqual(t, before, after)
	assert.Equal(t, 1400.0, c.FxRate())

	// Non-positive rates are ignored.
	c.UpdateFxRate(0)
	assert.Equal(t, 1400.0, c.FxRate())
}

func TestZeroPriceMarksVenueUnknown(t *testing.T) {
	c := newTestCalculator()
	c.UpdatePrice(domain.VenueUpbit, 3100)
	c.UpdatePrice(domain.VenueBinance, 2.10)
	require.False(t, math.IsNaN(c.Premium(domain.VenueBinance, domain.VenueUpbit)))

	c.UpdatePrice(domain.VenueBinance, 0)
	assert.True(t, math.IsNaN(c.Premium(domain.VenueBinance, domain.VenueUpbit)))

	// Restoring the price yields the same cell as a fresh calculator.
	c.UpdatePrice(domain.VenueBinance, 2.10)
	fresh := newTestCalculator()
	fresh.UpdatePrice(domain.VenueUpbit, 3100)
	fresh.UpdatePrice(domain.VenueBinance, 2.10)
	assert.Equal(t,
		fresh.Premium(domain.VenueBinance, domain.VenueUpbit),
		c.Premium(domain.VenueBinance, domain.VenueUpbit))
}

func TestCallbackFiresOnThresholdCrossing(t *testing.T) {
	c := newTestCalculator()

	var got []domain.PremiumInfo
	c.SetCallback(func(info domain.PremiumInfo) {
		got = append(got, info)
	})

	c.UpdatePrice(domain.VenueBinance, 2.10)
	assert.Empty(t, got) // only one venue priced, nothing crosses

	c.UpdatePrice(domain.VenueUpbit, 3100) // ~ -0.26% and +0.26% at fx 1480
	assert.Empty(t, got)

	c.UpdateFxRate(1400) // binance→upbit jumps to ~5.4%
	require.NotEmpty(t, got)
	assert.Equal(t, domain.VenueBinance, got[0].BuyVenue)
	assert.Equal(t, domain.VenueUpbit, got[0].SellVenue)
	assert.Greater(t, got[0].PremiumPct, 1.0)
	assert.Equal(t, 1400.0, got[0].FxRate)
}

func TestBestOpportunity(t *testing.T) {
	c := newTestCalculator()

	_, ok := c.BestOpportunity()
	assert.False(t, ok)

	c.UpdatePrice(domain.VenueUpbit, 3100)
	c.UpdatePrice(domain.VenueBithumb, 3150)
	c.UpdatePrice(domain.VenueBinance, 2.10)
	c.UpdateFxRate(1400)

	best, ok := c.BestOpportunity()
	require.True(t, ok)
	// Bithumb is the most expensive sell side; Binance the cheapest buy side.
	assert.Equal(t, domain.VenueBinance, best.BuyVenue)
	assert.Equal(t, domain.VenueBithumb, best.SellVenue)
}

func TestOpportunitiesSortedDescending(t *testing.T) {
	c := newTestCalculator()
	c.UpdatePrice(domain.VenueUpbit, 3100)
	c.UpdatePrice(domain.VenueBithumb, 3150)
	c.UpdatePrice(domain.VenueBinance, 2.10)
	c.UpdateFxRate(1400)

	opps := c.Opportunities(1.0)
	require.NotEmpty(t, opps)
	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].PremiumPct, opps[i].PremiumPct)
	}
	for _, opp := range opps {
		assert.GreaterOrEqual(t, opp.PremiumPct, 1.0)
		assert.True(t, opp.Valid())
	}
}

func TestStatsCountActivity(t *testing.T) {
	c := newTestCalculator()
	c.UpdatePrice(domain.VenueUpbit, 3100)
	c.UpdateFxRate(1400)

	snap := c.StatsSnapshot()
	assert.Equal(t, uint64(1), snap.PriceUpdates)
	assert.Equal(t, uint64(1), snap.FxUpdates)
	assert.Equal(t, uint64(2), snap.Rebuilds)
}
