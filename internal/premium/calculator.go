// Package premium maintains the cross-venue premium matrix. Every price or FX
// update rebuilds the whole matrix under a write lock — no incremental cell
// patching — so readers always observe the product of one complete rebuild.
package premium

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// Callback receives threshold-crossing premium cells. It is invoked
// synchronously after a rebuild, outside the matrix lock, so it may safely
// read back into the calculator.
type Callback func(domain.PremiumInfo)

// Config holds the calculator's tunables.
type Config struct {
	// ThresholdPct is the minimum premium that triggers the callback.
	ThresholdPct float64
	// DefaultFxRate seeds the FX rate until the first UpdateFxRate.
	DefaultFxRate float64
}

// Calculator tracks the last price per venue plus the FX rate and derives the
// premium matrix. Writers (venue feeds, FX poller) and readers (planning,
// monitoring) may call concurrently; rebuilds are serialized.
type Calculator struct {
	mu     sync.RWMutex
	prices [domain.VenueCount]float64 // venue-local; 0 = unknown
	fxRate float64
	matrix domain.PremiumMatrix

	cfg      Config
	callback Callback
	logger   *slog.Logger
	stats    Stats
}

// NewCalculator creates a calculator seeded with the configured default FX
// rate and an all-NaN matrix (zero diagonal).
func NewCalculator(cfg Config, logger *slog.Logger) *Calculator {
	return &Calculator{
		fxRate: cfg.DefaultFxRate,
		matrix: domain.NewPremiumMatrix(),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "premium_calculator")),
	}
}

// SetCallback registers the single threshold handler. Fan-out to multiple
// listeners belongs to the handler, not the calculator.
func (c *Calculator) SetCallback(cb Callback) {
	c.mu.Lock()
	c.callback = cb
	c.mu.Unlock()
}

// UpdatePrice stores a venue's latest price and rebuilds the matrix before
// returning. A non-positive price marks the venue unknown again.
func (c *Calculator) UpdatePrice(venue domain.Venue, price float64) {
	if !venue.Valid() {
		return
	}
	c.stats.PriceUpdates.Add(1)
	c.mu.Lock()
	c.prices[venue] = price
	crossings := c.rebuildLocked()
	cb := c.callback
	c.mu.Unlock()
	c.fire(cb, crossings)
}

// UpdateFxRate stores a new FX rate and rebuilds the matrix.
func (c *Calculator) UpdateFxRate(rate float64) {
	if rate <= 0 {
		return
	}
	c.stats.FxUpdates.Add(1)
	c.mu.Lock()
	c.fxRate = rate
	crossings := c.rebuildLocked()
	cb := c.callback
	c.mu.Unlock()
	c.fire(cb, crossings)
}

// rebuildLocked recomputes every cell and returns the threshold crossings.
// Callers must hold the write lock.
func (c *Calculator) rebuildLocked() []domain.PremiumInfo {
	c.stats.Rebuilds.Add(1)
	now := time.Now()

	var crossings []domain.PremiumInfo
	for buy := domain.Venue(0); buy < domain.VenueCount; buy++ {
		for sell := domain.Venue(0); sell < domain.VenueCount; sell++ {
			if buy == sell {
				c.matrix[buy][sell] = 0
				continue
			}
			buyPrice, sellPrice := c.prices[buy], c.prices[sell]
			if buyPrice <= 0 || sellPrice <= 0 {
				c.matrix[buy][sell] = math.NaN()
				continue
			}
			buyKRW := c.toKRWLocked(buy, buyPrice)
			sellKRW := c.toKRWLocked(sell, sellPrice)
			pct := (sellKRW - buyKRW) / buyKRW * 100
			c.matrix[buy][sell] = pct

			if pct >= c.cfg.ThresholdPct {
				crossings = append(crossings, domain.PremiumInfo{
					BuyVenue:     buy,
					SellVenue:    sell,
					PremiumPct:   pct,
					BuyPriceKRW:  buyKRW,
					SellPriceKRW: sellKRW,
					FxRate:       c.fxRate,
					Timestamp:    now,
				})
			}
		}
	}
	return crossings
}

func (c *Calculator) fire(cb Callback, crossings []domain.PremiumInfo) {
	if cb == nil {
		return
	}
	for _, info := range crossings {
		c.stats.Alerts.Add(1)
		cb(info)
	}
}

func (c *Calculator) toKRWLocked(v domain.Venue, price float64) float64 {
	if v.IsKRW() {
		return price
	}
	return price * c.fxRate
}

// Premium returns the matrix cell for buying at buy and selling at sell.
// NaN means at least one input price is unknown.
func (c *Calculator) Premium(buy, sell domain.Venue) float64 {
	if !buy.Valid() || !sell.Valid() {
		return math.NaN()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.matrix[buy][sell]
}

// Matrix returns a copy of the full premium matrix.
func (c *Calculator) Matrix() domain.PremiumMatrix {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.matrix
}

// FxRate returns the rate currently used for conversion.
func (c *Calculator) FxRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fxRate
}

// BestOpportunity returns the single highest valid cell, or false when every
// off-diagonal cell is NaN.
func (c *Calculator) BestOpportunity() (domain.PremiumInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := math.Inf(-1)
	bestBuy, bestSell := domain.Venue(-1), domain.Venue(-1)
	for buy := domain.Venue(0); buy < domain.VenueCount; buy++ {
		for sell := domain.Venue(0); sell < domain.VenueCount; sell++ {
			if buy == sell {
				continue
			}
			pct := c.matrix[buy][sell]
			if !math.IsNaN(pct) && pct > best {
				best = pct
				bestBuy, bestSell = buy, sell
			}
		}
	}
	if bestBuy < 0 {
		return domain.PremiumInfo{}, false
	}
	return c.infoLocked(bestBuy, bestSell, best), true
}

// Opportunities returns all cells at or above minPct, sorted descending by
// premium.
func (c *Calculator) Opportunities(minPct float64) []domain.PremiumInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.PremiumInfo
	for buy := domain.Venue(0); buy < domain.VenueCount; buy++ {
		for sell := domain.Venue(0); sell < domain.VenueCount; sell++ {
			if buy == sell {
				continue
			}
			pct := c.matrix[buy][sell]
			if !math.IsNaN(pct) && pct >= minPct {
				out = append(out, c.infoLocked(buy, sell, pct))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PremiumPct > out[j].PremiumPct })
	return out
}

// infoLocked builds a PremiumInfo from current state. Callers must hold at
// least the read lock.
func (c *Calculator) infoLocked(buy, sell domain.Venue, pct float64) domain.PremiumInfo {
	return domain.PremiumInfo{
		BuyVenue:     buy,
		SellVenue:    sell,
		PremiumPct:   pct,
		BuyPriceKRW:  c.toKRWLocked(buy, c.prices[buy]),
		SellPriceKRW: c.toKRWLocked(sell, c.prices[sell]),
		FxRate:       c.fxRate,
		Timestamp:    time.Now(),
	}
}

// StatsSnapshot returns current counter values.
func (c *Calculator) StatsSnapshot() StatsSnapshot {
	return c.stats.Snapshot()
}
