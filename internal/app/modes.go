package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seoulquant/kimparb/internal/analyzer"
	"github.com/seoulquant/kimparb/internal/config"
	"github.com/seoulquant/kimparb/internal/domain"
	"github.com/seoulquant/kimparb/internal/executor"
	"github.com/seoulquant/kimparb/internal/feed"
	"github.com/seoulquant/kimparb/internal/fx"
	"github.com/seoulquant/kimparb/internal/premium"
	"github.com/seoulquant/kimparb/internal/server"
	"github.com/seoulquant/kimparb/internal/server/handler"
	"github.com/seoulquant/kimparb/internal/server/ws"
	"github.com/seoulquant/kimparb/internal/service"
	"github.com/seoulquant/kimparb/internal/venue/binance"
	"github.com/seoulquant/kimparb/internal/venue/upbit"
)

// alertInterval rate-limits operator notifications per venue pair and alert
// kind. Crossings and alerts are still published on the signal bus at full
// rate.
const alertInterval = time.Minute

// MonitorMode runs feeds, the premium matrix and alerting without placing any
// orders.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runEngine(ctx, deps, false)
}

// TradeMode runs the full detect, execute and recover loop.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runEngine(ctx, deps, true)
}

// runEngine starts every long-running goroutine for the selected mode under
// one errgroup: the FX poller, the venue feeds, the snapshot archiver, the
// recovery queue (trade only) and the arbitrage service itself. The first
// fatal error cancels all of them.
func (a *App) runEngine(ctx context.Context, deps *Dependencies, trade bool) error {
	g, ctx := errgroup.WithContext(ctx)

	calc := premium.NewCalculator(premium.Config{
		ThresholdPct:  a.cfg.Premium.ThresholdPct,
		DefaultFxRate: a.cfg.Fx.DefaultRate,
	}, a.logger)
	anlz := a.buildAnalyzer()

	var exec *executor.Executor
	if trade {
		placers := a.buildPlacers()
		exec = executor.New(placers, executor.Config{
			LegTimeout:   a.cfg.Executor.LegTimeout.Duration,
			AutoRecovery: a.cfg.Executor.AutoRecovery,
			DedupTTL:     a.cfg.Executor.DedupTTL.Duration,
		}, a.logger)

		mgr := executor.NewRecoveryManager(placers, executor.RecoveryConfig{
			MaxRetries:           a.cfg.Recovery.MaxRetries,
			RetryDelay:           a.cfg.Recovery.RetryDelay.Duration,
			SlippageTolerancePct: a.cfg.Recovery.SlippageTolerancePct,
			DryRun:               a.cfg.Recovery.DryRun,
		}, a.logger)
		queue := executor.NewRecoveryQueue(mgr, a.cfg.Recovery.QueueSize, a.logger)
		exec.SetRecovery(mgr, queue)
		g.Go(func() error {
			return queue.Run(ctx)
		})
	}

	svc := service.New(
		calc, anlz, exec,
		deps.Executions, deps.Recoveries,
		deps.SignalBus, deps.Notifier,
		service.Config{
			OrderQuantity: a.cfg.Executor.OrderQuantity,
			Cooldown:      a.cfg.Executor.Cooldown.Duration,
			AlertInterval: alertInterval,
			Symbols:       a.venueSymbols(),
		},
		a.logger,
	)
	g.Go(func() error {
		return svc.Run(ctx)
	})

	// FX poller: every successful poll rebuilds the matrix.
	poller := fx.NewPoller(fx.Config{
		URL:          a.cfg.Fx.URL,
		PollInterval: a.cfg.Fx.PollInterval.Duration,
		DefaultRate:  a.cfg.Fx.DefaultRate,
		StaleAfter:   a.cfg.Fx.StaleAfter.Duration,
	}, a.logger)
	poller.OnRate(func(rate domain.FxRate) {
		calc.UpdateFxRate(rate.Rate)
	})
	g.Go(func() error {
		return poller.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, calc, anlz, svc, exec)
	}

	feeds := a.buildFeeds(ctx, deps, calc, anlz)
	if len(feeds) == 0 {
		return fmt.Errorf("app: no venue feeds enabled")
	}
	for _, f := range feeds {
		f := f
		g.Go(func() error {
			return f.Run(ctx)
		})
	}

	a.logger.InfoContext(ctx, "engine running",
		slog.Int("feeds", len(feeds)),
		slog.Bool("trading", trade),
		slog.Float64("threshold_pct", a.cfg.Premium.ThresholdPct),
	)

	return g.Wait()
}

// startServer launches the ops HTTP/WebSocket API under the engine's
// errgroup, with a graceful shutdown hook tied to ctx.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, calc *premium.Calculator, anlz *analyzer.Analyzer, svc *service.ArbitrageService, exec *executor.Executor) {
	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Status:     handler.NewStatusHandler(a.cfg.Mode, calc, anlz, svc, exec),
		Premium:    handler.NewPremiumHandler(calc),
		Executions: handler.NewExecutionHandler(svc),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}

func (a *App) buildAnalyzer() *analyzer.Analyzer {
	assign := analyzer.MakerOnBuyVenue
	if a.cfg.Analyzer.MakerLeg == "sell" {
		assign = analyzer.MakerOnSellVenue
	}
	fees := analyzer.DefaultFeeSchedule()
	for venue, vc := range a.venueConfigs() {
		fees.SetMaker(venue, vc.MakerFee)
		fees.SetTaker(venue, vc.TakerFee)
	}
	return analyzer.New(analyzer.Config{
		DepthBandPct:         a.cfg.Analyzer.DepthBandPct,
		MinDepthValue:        a.cfg.Analyzer.MinDepthValue,
		MaxSpreadBps:         a.cfg.Analyzer.MaxSpreadBps,
		ImbalanceLimit:       a.cfg.Analyzer.ImbalanceLimit,
		MakerFillProbability: a.cfg.Analyzer.MakerFillProbability,
		MakerMaxWait:         a.cfg.Analyzer.MakerMaxWait.Duration,
		BreakevenSlippagePct: a.cfg.Analyzer.BreakevenSlippagePct,
	}, fees, assign, a.logger)
}

// buildPlacers constructs a REST client per venue that carries credentials.
// Bithumb and MEXC stream market data only in this deployment.
func (a *App) buildPlacers() domain.OrderPlacers {
	placers := domain.OrderPlacers{}
	if a.cfg.Upbit.Tradable() {
		placers[domain.VenueUpbit] = upbit.NewClient(
			a.cfg.Upbit.RestURL, a.cfg.Upbit.ApiKey, a.cfg.Upbit.SecretKey)
	}
	if a.cfg.Binance.Tradable() {
		placers[domain.VenueBinance] = binance.NewClient(
			a.cfg.Binance.RestURL, a.cfg.Binance.ApiKey, a.cfg.Binance.SecretKey)
	}
	return placers
}

func (a *App) venueSymbols() map[domain.Venue]string {
	symbols := make(map[domain.Venue]string, domain.VenueCount)
	for venue, vc := range a.venueConfigs() {
		if vc.Enabled {
			symbols[venue] = vc.Symbol
		}
	}
	return symbols
}

func (a *App) venueConfigs() map[domain.Venue]config.VenueConfig {
	return map[domain.Venue]config.VenueConfig{
		domain.VenueUpbit:   a.cfg.Upbit,
		domain.VenueBithumb: a.cfg.Bithumb,
		domain.VenueBinance: a.cfg.Binance,
		domain.VenueMEXC:    a.cfg.MEXC,
	}
}

// buildFeeds creates one websocket feed per enabled venue. Quotes go to the
// matrix and the price cache; books go to the analyzer and, when enabled, the
// snapshot archiver.
func (a *App) buildFeeds(ctx context.Context, deps *Dependencies, calc *premium.Calculator, anlz *analyzer.Analyzer) []feed.Feed {
	onQuote := func(q domain.PriceQuote) {
		calc.UpdatePrice(q.Venue, q.Price)
		if deps.PriceCache != nil {
			if err := deps.PriceCache.SetQuote(ctx, q); err != nil {
				a.logger.DebugContext(ctx, "price cache write failed",
					slog.String("venue", q.Venue.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	onBook := func(ob domain.OrderBookSnapshot) {
		anlz.Update(ob.Venue, ob)
		if deps.Archiver != nil {
			deps.Archiver.Add(ob)
		}
	}

	var feeds []feed.Feed
	if a.cfg.Upbit.Enabled {
		feeds = append(feeds, feed.NewUpbit(a.cfg.Upbit.WsURL, a.cfg.Upbit.Symbol, onQuote, onBook, a.logger))
	}
	if a.cfg.Bithumb.Enabled {
		feeds = append(feeds, feed.NewBithumb(a.cfg.Bithumb.WsURL, a.cfg.Bithumb.Symbol, onQuote, onBook, a.logger))
	}
	if a.cfg.Binance.Enabled {
		feeds = append(feeds, feed.NewBinance(a.cfg.Binance.WsURL, a.cfg.Binance.Symbol, onQuote, onBook, a.logger))
	}
	if a.cfg.MEXC.Enabled {
		feeds = append(feeds, feed.NewMEXC(a.cfg.MEXC.WsURL, a.cfg.MEXC.Symbol, onQuote, onBook, a.logger))
	}
	return feeds
}
