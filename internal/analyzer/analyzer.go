// Package analyzer owns the latest order-book snapshot and derived liquidity
// metrics per venue and composes the liquidity model into fee- and
// slippage-aware maker+taker order plans.
package analyzer

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
	"github.com/seoulquant/kimparb/internal/liquidity"
)

// AlertKind classifies a liquidity alert.
type AlertKind string

const (
	AlertLowBidDepth   AlertKind = "low_bid_depth"
	AlertLowAskDepth   AlertKind = "low_ask_depth"
	AlertWideSpread    AlertKind = "wide_spread"
	AlertHighImbalance AlertKind = "high_imbalance"
)

// AlertCallback receives liquidity alerts. Invoked outside the analyzer lock.
type AlertCallback func(domain.Venue, AlertKind, string)

// AssignLegs decides which side of a (buy venue, sell venue) pair rests as
// the maker. The reference deployment rests the buy leg overseas and sweeps
// the sell leg domestically; that is a latency-profile policy, not a law, so
// it is injected rather than hard-coded.
type AssignLegs func(buyVenue, sellVenue domain.Venue) domain.OrderSide

// MakerOnBuyVenue is the reference policy: the buy leg is the maker.
func MakerOnBuyVenue(buyVenue, sellVenue domain.Venue) domain.OrderSide {
	return domain.OrderSideBuy
}

// MakerOnSellVenue rests the sell leg instead.
func MakerOnSellVenue(buyVenue, sellVenue domain.Venue) domain.OrderSide {
	return domain.OrderSideSell
}

// Config holds the analyzer's tunables.
type Config struct {
	DepthBandPct         float64       // depth band for liquidity metrics, percent
	MinDepthValue        float64       // minimum in-band notional before alerting
	MaxSpreadBps         float64       // spread ceiling before alerting
	ImbalanceLimit       float64       // |imbalance| ceiling before alerting
	MakerFillProbability float64       // target fill probability for maker pricing
	MakerMaxWait         time.Duration // cap on estimated maker wait
	BreakevenSlippagePct float64       // conservative slippage allowance, percent
}

// DefaultConfig returns the reference deployment's settings.
func DefaultConfig() Config {
	return Config{
		DepthBandPct:         liquidity.DefaultDepthBandPct,
		MinDepthValue:        50_000_000, // KRW
		MaxSpreadBps:         30,
		ImbalanceLimit:       0.7,
		MakerFillProbability: 0.8,
		MakerMaxWait:         30 * time.Second,
		BreakevenSlippagePct: 0.1,
	}
}

// DualOrderPlan is an executable maker+taker pairing with its cost breakdown.
// All monetary fields are KRW.
type DualOrderPlan struct {
	MakerVenue          domain.Venue
	MakerSide           domain.OrderSide
	MakerPrice          float64 // venue-local
	MakerQuantity       float64
	MakerFeeRate        float64
	ExpectedFillTimeSec float64

	TakerVenue         domain.Venue
	TakerSide          domain.OrderSide
	TakerPrice         float64 // venue-local expected average fill
	TakerQuantity      float64
	TakerFeeRate       float64
	TakerSlippageBps   float64
	TakerSlippageValue float64 // KRW

	TotalFeeValue      float64 // KRW
	TotalSlippageValue float64 // KRW
	GrossPremiumPct    float64
	NetPremiumPct      float64
	ExpectedProfitKRW  float64
}

// Valid reports whether the plan may be executed. Invalid plans come from
// missing or too-shallow books and must not reach the executor.
func (p DualOrderPlan) Valid() bool {
	return p.MakerPrice > 0 && p.TakerPrice > 0 && p.MakerQuantity > 0
}

// Profitable reports whether the plan clears all modeled costs.
func (p DualOrderPlan) Profitable() bool {
	return p.Valid() && p.NetPremiumPct > 0
}

// Analyzer holds one snapshot and one metrics value per venue behind a single
// reader/writer lock. Snapshots are replaced wholesale; readers never observe
// a half-updated book.
type Analyzer struct {
	mu      sync.RWMutex
	books   [domain.VenueCount]domain.OrderBookSnapshot
	metrics [domain.VenueCount]liquidity.Metrics

	cfg     Config
	fees    FeeSchedule
	assign  AssignLegs
	alertCb AlertCallback

	logger *slog.Logger
	stats  Stats
}

// New creates an Analyzer. A nil assign falls back to MakerOnBuyVenue.
func New(cfg Config, fees FeeSchedule, assign AssignLegs, logger *slog.Logger) *Analyzer {
	if assign == nil {
		assign = MakerOnBuyVenue
	}
	if cfg.ImbalanceLimit <= 0 {
		cfg.ImbalanceLimit = DefaultConfig().ImbalanceLimit
	}
	return &Analyzer{
		cfg:    cfg,
		fees:   fees,
		assign: assign,
		logger: logger.With(slog.String("component", "orderbook_analyzer")),
	}
}

// SetAlertCallback registers the single liquidity-alert handler.
func (a *Analyzer) SetAlertCallback(cb AlertCallback) {
	a.mu.Lock()
	a.alertCb = cb
	a.mu.Unlock()
}

// Update replaces a venue's snapshot and derived metrics in one critical
// section, then evaluates liquidity alerts outside the lock.
func (a *Analyzer) Update(venue domain.Venue, ob domain.OrderBookSnapshot) {
	if !venue.Valid() {
		return
	}
	m := liquidity.Compute(ob, a.cfg.DepthBandPct)

	a.mu.Lock()
	a.books[venue] = ob
	a.metrics[venue] = m
	cb := a.alertCb
	a.mu.Unlock()

	a.stats.Updates.Add(1)
	a.checkAlerts(venue, m, cb)
}

// checkAlerts fires at most one alert per update, checked in priority order:
// bid depth, ask depth, spread, imbalance.
func (a *Analyzer) checkAlerts(venue domain.Venue, m liquidity.Metrics, cb AlertCallback) {
	if cb == nil {
		return
	}
	var (
		kind AlertKind
		msg  string
	)
	switch {
	case m.BidValue < a.cfg.MinDepthValue:
		kind, msg = AlertLowBidDepth, "bid depth below configured minimum"
	case m.AskValue < a.cfg.MinDepthValue:
		kind, msg = AlertLowAskDepth, "ask depth below configured minimum"
	case m.SpreadBps > a.cfg.MaxSpreadBps:
		kind, msg = AlertWideSpread, "spread above configured ceiling"
	case math.Abs(m.Imbalance) > a.cfg.ImbalanceLimit:
		kind, msg = AlertHighImbalance, "order imbalance above configured limit"
	default:
		return
	}
	a.stats.Alerts.Add(1)
	cb(venue, kind, msg)
}

// Book returns the latest snapshot for a venue and whether any data exists.
func (a *Analyzer) Book(venue domain.Venue) (domain.OrderBookSnapshot, bool) {
	if !venue.Valid() {
		return domain.OrderBookSnapshot{}, false
	}
	a.mu.RLock()
	ob := a.books[venue]
	a.mu.RUnlock()
	a.stats.Queries.Add(1)
	return ob, !ob.Empty()
}

// Liquidity returns the latest metrics for a venue.
func (a *Analyzer) Liquidity(venue domain.Venue) liquidity.Metrics {
	if !venue.Valid() {
		return liquidity.Metrics{}
	}
	a.mu.RLock()
	m := a.metrics[venue]
	a.mu.RUnlock()
	a.stats.Queries.Add(1)
	return m
}

// AllLiquidity returns the metrics of every venue in index order.
func (a *Analyzer) AllLiquidity() []liquidity.Metrics {
	out := make([]liquidity.Metrics, domain.VenueCount)
	a.mu.RLock()
	copy(out, a.metrics[:])
	a.mu.RUnlock()
	a.stats.Queries.Add(1)
	return out
}

// EstimateSlippage runs the taker fill simulation against a venue's latest
// book.
func (a *Analyzer) EstimateSlippage(venue domain.Venue, side domain.OrderSide, quantity float64) liquidity.SlippageEstimate {
	if !venue.Valid() {
		return liquidity.SlippageEstimate{}
	}
	a.mu.RLock()
	ob := a.books[venue]
	a.mu.RUnlock()
	a.stats.Queries.Add(1)
	return liquidity.EstimateFill(ob, side, quantity)
}

// PlanMakerTakerOrder builds a dual-order plan for buying quantity at
// buyVenue and selling it at sellVenue. Which leg rests as the maker comes
// from the injected assignment policy. Two concurrent calls may observe
// different snapshots if an Update interleaves; each call sees internally
// consistent books.
func (a *Analyzer) PlanMakerTakerOrder(buyVenue, sellVenue domain.Venue, quantity, fxRate float64) DualOrderPlan {
	var plan DualOrderPlan
	if quantity <= 0 || !buyVenue.Valid() || !sellVenue.Valid() || buyVenue == sellVenue {
		return plan
	}

	a.mu.RLock()
	buyBook := a.books[buyVenue]
	sellBook := a.books[sellVenue]
	a.mu.RUnlock()
	a.stats.Queries.Add(1)

	makerSide := a.assign(buyVenue, sellVenue)

	var (
		makerBook, takerBook   domain.OrderBookSnapshot
		makerVenue, takerVenue domain.Venue
		takerSide              domain.OrderSide
	)
	if makerSide == domain.OrderSideBuy {
		makerBook, makerVenue = buyBook, buyVenue
		takerBook, takerVenue, takerSide = sellBook, sellVenue, domain.OrderSideSell
	} else {
		makerBook, makerVenue = sellBook, sellVenue
		takerBook, takerVenue, takerSide = buyBook, buyVenue, domain.OrderSideBuy
	}

	makerEst := liquidity.RecommendMakerPrice(makerBook, makerSide, a.cfg.MakerFillProbability, a.cfg.MakerMaxWait)
	takerEst := liquidity.EstimateFill(takerBook, takerSide, quantity)

	plan.MakerVenue = makerVenue
	plan.MakerSide = makerSide
	plan.MakerPrice = makerEst.RecommendedPrice
	plan.MakerQuantity = quantity
	plan.MakerFeeRate = a.fees.Maker(makerVenue)
	plan.ExpectedFillTimeSec = makerEst.EstimatedWaitSec

	plan.TakerVenue = takerVenue
	plan.TakerSide = takerSide
	plan.TakerPrice = takerEst.ExpectedAvgPrice
	plan.TakerQuantity = quantity
	plan.TakerFeeRate = a.fees.Taker(takerVenue)
	plan.TakerSlippageBps = takerEst.SlippageBps
	plan.TakerSlippageValue = toKRW(takerVenue, takerEst.SlippageValue, fxRate)

	if !plan.Valid() {
		return plan
	}

	// Leg prices in the common currency. The buy leg is whichever of
	// maker/taker carries the buy side.
	var buyPrice, sellPrice float64
	if makerSide == domain.OrderSideBuy {
		buyPrice = toKRW(makerVenue, plan.MakerPrice, fxRate)
		sellPrice = toKRW(takerVenue, plan.TakerPrice, fxRate)
	} else {
		buyPrice = toKRW(takerVenue, plan.TakerPrice, fxRate)
		sellPrice = toKRW(makerVenue, plan.MakerPrice, fxRate)
	}
	buyValue := buyPrice * quantity
	sellValue := sellPrice * quantity

	makerValue := toKRW(makerVenue, plan.MakerPrice, fxRate) * quantity
	takerValue := toKRW(takerVenue, plan.TakerPrice, fxRate) * quantity
	plan.TotalFeeValue = makerValue*plan.MakerFeeRate + takerValue*plan.TakerFeeRate
	plan.TotalSlippageValue = plan.TakerSlippageValue

	if buyPrice > 0 {
		plan.GrossPremiumPct = (sellPrice - buyPrice) / buyPrice * 100
		costPct := (plan.TotalFeeValue + plan.TotalSlippageValue) / buyValue * 100
		plan.NetPremiumPct = plan.GrossPremiumPct - costPct
		plan.ExpectedProfitKRW = sellValue - buyValue - plan.TotalFeeValue - plan.TotalSlippageValue
	}

	return plan
}

// BreakevenPremium returns the minimum gross premium, in percent, before a
// (buyVenue, sellVenue) plan can be net-profitable: maker fee plus taker fee
// plus the configured conservative slippage allowance. Cheap pre-filter for
// PlanMakerTakerOrder.
func (a *Analyzer) BreakevenPremium(buyVenue, sellVenue domain.Venue) float64 {
	makerSide := a.assign(buyVenue, sellVenue)
	makerVenue, takerVenue := buyVenue, sellVenue
	if makerSide == domain.OrderSideSell {
		makerVenue, takerVenue = sellVenue, buyVenue
	}
	makerFeePct := a.fees.Maker(makerVenue) * 100
	takerFeePct := a.fees.Taker(takerVenue) * 100
	return makerFeePct + takerFeePct + a.cfg.BreakevenSlippagePct
}

// StatsSnapshot returns current counter values.
func (a *Analyzer) StatsSnapshot() StatsSnapshot {
	return a.stats.Snapshot()
}

// Fees returns a copy of the fee schedule in effect.
func (a *Analyzer) Fees() FeeSchedule {
	return a.fees
}

func toKRW(v domain.Venue, value, fxRate float64) float64 {
	if v.IsKRW() {
		return value
	}
	return value * fxRate
}
