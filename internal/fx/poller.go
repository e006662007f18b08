// Package fx polls a public quotation API for the USD/KRW rate and caches the
// latest value for the premium calculator.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// RateHandler is called after each successful poll.
type RateHandler func(domain.FxRate)

// Config holds the poller's tunables.
type Config struct {
	URL          string
	PollInterval time.Duration
	// DefaultRate seeds the poller until the first successful fetch so the
	// engine never divides by zero on startup.
	DefaultRate float64
	// StaleAfter marks the cached rate invalid when the source has been
	// unreachable for this long. Zero disables staleness checks.
	StaleAfter time.Duration
}

// Poller fetches the USD/KRW rate on a fixed interval and serves the latest
// value. It implements domain.FxRateSource.
type Poller struct {
	cfg        Config
	httpClient *http.Client
	onRate     RateHandler
	logger     *slog.Logger

	mu   sync.RWMutex
	last domain.FxRate
}

// NewPoller creates a poller seeded with the default rate.
func NewPoller(cfg Config, logger *slog.Logger) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Poller{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "fx")),
		last: domain.FxRate{
			Rate:      cfg.DefaultRate,
			Source:    "default",
			Timestamp: time.Now(),
		},
	}
}

var _ domain.FxRateSource = (*Poller)(nil)

// OnRate registers the single handler invoked after each successful poll.
func (p *Poller) OnRate(cb RateHandler) { p.onRate = cb }

// Rate returns the most recent rate. It reports an error when the cached
// value has gone stale.
func (p *Poller) Rate(ctx context.Context) (domain.FxRate, error) {
	p.mu.RLock()
	last := p.last
	p.mu.RUnlock()

	if !last.Valid() {
		return last, fmt.Errorf("fx: no usable rate: %w", domain.ErrNotFound)
	}
	if p.cfg.StaleAfter > 0 && last.Source != "default" && time.Since(last.Timestamp) > p.cfg.StaleAfter {
		return last, fmt.Errorf("fx: rate stale since %s: %w", last.Timestamp.Format(time.RFC3339), domain.ErrNotFound)
	}
	return last, nil
}

// Run polls immediately and then on every tick until ctx is cancelled. Fetch
// failures keep the previous rate and are retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	rate, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("fx poll failed, keeping previous rate",
			slog.String("error", err.Error()),
			slog.Float64("previous", p.lastRate()),
		)
		return
	}

	p.mu.Lock()
	p.last = rate
	p.mu.Unlock()

	p.logger.Debug("fx rate updated", slog.Float64("rate", rate.Rate))
	if p.onRate != nil {
		p.onRate(rate)
	}
}

// quotationResponse matches the Dunamu forex quotation payload, which returns
// an array with basePrice in KRW per USD.
type quotationResponse []struct {
	Code      string  `json:"code"`
	BasePrice float64 `json:"basePrice"`
	Timestamp int64   `json:"timestamp"`
}

func (p *Poller) fetch(ctx context.Context) (domain.FxRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("fx: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("fx: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("fx: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.FxRate{}, fmt.Errorf("fx: status %d: %s", resp.StatusCode, body)
	}

	var quotes quotationResponse
	if err := json.Unmarshal(body, &quotes); err != nil {
		return domain.FxRate{}, fmt.Errorf("fx: decode response: %w", err)
	}
	if len(quotes) == 0 || quotes[0].BasePrice <= 0 {
		return domain.FxRate{}, fmt.Errorf("fx: empty quotation")
	}

	ts := time.UnixMilli(quotes[0].Timestamp)
	if quotes[0].Timestamp == 0 {
		ts = time.Now()
	}
	return domain.FxRate{
		Rate:      quotes[0].BasePrice,
		Source:    quotes[0].Code,
		Timestamp: ts,
	}, nil
}

func (p *Poller) lastRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last.Rate
}
