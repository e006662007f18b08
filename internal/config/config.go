// Package config defines the top-level configuration for the arbitrage engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KIMPARB_* environment variables.
type Config struct {
	Symbol   string         `toml:"symbol"` // coin traded on every venue, e.g. "XRP"
	Upbit    VenueConfig    `toml:"upbit"`
	Bithumb  VenueConfig    `toml:"bithumb"`
	Binance  VenueConfig    `toml:"binance"`
	MEXC     VenueConfig    `toml:"mexc"`
	Fx       FxConfig       `toml:"fx"`
	Premium  PremiumConfig  `toml:"premium"`
	Analyzer AnalyzerConfig `toml:"analyzer"`
	Executor ExecutorConfig `toml:"executor"`
	Recovery RecoveryConfig `toml:"recovery"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// VenueConfig holds one exchange's endpoints and credentials. Feeds only need
// the websocket URL; trading additionally requires the REST credentials.
type VenueConfig struct {
	Enabled   bool    `toml:"enabled"`
	RestURL   string  `toml:"rest_url"`
	WsURL     string  `toml:"ws_url"`
	ApiKey    string  `toml:"api_key"`
	SecretKey string  `toml:"secret_key"`
	Symbol    string  `toml:"symbol"`    // venue-local market code, e.g. "KRW-XRP" or "XRPUSDT"
	MakerFee  float64 `toml:"maker_fee"` // fraction, e.g. 0.0005 = 5 bps
	TakerFee  float64 `toml:"taker_fee"`
}

// Tradable reports whether the venue carries credentials for order placement.
func (v VenueConfig) Tradable() bool {
	return v.Enabled && v.ApiKey != "" && v.SecretKey != ""
}

// FxConfig holds the USD/KRW rate source parameters.
type FxConfig struct {
	URL          string   `toml:"url"`
	PollInterval duration `toml:"poll_interval"`
	DefaultRate  float64  `toml:"default_rate"` // used until the first successful poll
	StaleAfter   duration `toml:"stale_after"`
}

// PremiumConfig holds premium matrix parameters.
type PremiumConfig struct {
	ThresholdPct float64 `toml:"threshold_pct"`
}

// AnalyzerConfig holds liquidity-quality thresholds and maker pricing
// parameters.
type AnalyzerConfig struct {
	DepthBandPct         float64  `toml:"depth_band_pct"`
	MinDepthValue        float64  `toml:"min_depth_value"` // KRW for KRW venues, quote units otherwise
	MaxSpreadBps         float64  `toml:"max_spread_bps"`
	ImbalanceLimit       float64  `toml:"imbalance_limit"`
	MakerFillProbability float64  `toml:"maker_fill_probability"`
	MakerMaxWait         duration `toml:"maker_max_wait"`
	BreakevenSlippagePct float64  `toml:"breakeven_slippage_pct"`
	MakerLeg             string   `toml:"maker_leg"` // "buy" or "sell"
}

// ExecutorConfig holds dual-order execution parameters.
type ExecutorConfig struct {
	Enabled       bool     `toml:"enabled"`
	OrderQuantity float64  `toml:"order_quantity"`
	LegTimeout    duration `toml:"leg_timeout"`
	AutoRecovery  bool     `toml:"auto_recovery"`
	DedupTTL      duration `toml:"dedup_ttl"`
	Cooldown      duration `toml:"cooldown"` // minimum gap between executions
}

// RecoveryConfig holds partial-fill compensation parameters.
type RecoveryConfig struct {
	MaxRetries           int      `toml:"max_retries"`
	RetryDelay           duration `toml:"retry_delay"`
	SlippageTolerancePct float64  `toml:"slippage_tolerance_pct"`
	QueueSize            int      `toml:"queue_size"`
	DryRun               bool     `toml:"dry_run"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for orderbook
// snapshot archiving.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	FlushInterval  duration `toml:"flush_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// ServerConfig holds the ops HTTP/WebSocket API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"` // empty disables authentication
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Symbol: "XRP",
		Upbit: VenueConfig{
			Enabled:  true,
			RestURL:  "https://api.upbit.com",
			WsURL:    "wss://api.upbit.com/websocket/v1",
			Symbol:   "KRW-XRP",
			MakerFee: 0.0005,
			TakerFee: 0.0005,
		},
		Bithumb: VenueConfig{
			Enabled:  true,
			RestURL:  "https://api.bithumb.com",
			WsURL:    "wss://ws-api.bithumb.com/websocket/v1",
			Symbol:   "KRW-XRP",
			MakerFee: 0.0004,
			TakerFee: 0.0004,
		},
		Binance: VenueConfig{
			Enabled:  true,
			RestURL:  "https://api.binance.com",
			WsURL:    "wss://stream.binance.com:9443/ws",
			Symbol:   "XRPUSDT",
			MakerFee: 0.0010,
			TakerFee: 0.0010,
		},
		MEXC: VenueConfig{
			Enabled:  true,
			WsURL:    "wss://wbs.mexc.com/ws",
			Symbol:   "XRPUSDT",
			MakerFee: 0,
			TakerFee: 0.0002,
		},
		Fx: FxConfig{
			URL:          "https://quotation-api-cdn.dunamu.com/v1/forex/recent?codes=FRX.KRWUSD",
			PollInterval: duration{time.Minute},
			DefaultRate:  1400,
			StaleAfter:   duration{10 * time.Minute},
		},
		Premium: PremiumConfig{
			ThresholdPct: 1.0,
		},
		Analyzer: AnalyzerConfig{
			DepthBandPct:         1.0,
			MinDepthValue:        50_000_000,
			MaxSpreadBps:         30,
			ImbalanceLimit:       0.8,
			MakerFillProbability: 0.7,
			MakerMaxWait:         duration{30 * time.Second},
			BreakevenSlippagePct: 0.1,
			MakerLeg:             "buy",
		},
		Executor: ExecutorConfig{
			Enabled:       false,
			OrderQuantity: 100,
			LegTimeout:    duration{10 * time.Second},
			AutoRecovery:  true,
			DedupTTL:      duration{time.Minute},
			Cooldown:      duration{5 * time.Second},
		},
		Recovery: RecoveryConfig{
			MaxRetries:           3,
			RetryDelay:           duration{2 * time.Second},
			SlippageTolerancePct: 0.5,
			QueueSize:            64,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "kimparb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "ap-northeast-2",
			Bucket:         "kimparb-data",
			ForcePathStyle: true,
			FlushInterval:  duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"premium_alert", "execution", "partial_fill", "recovery", "error"},
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"trade":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Symbol) == "" {
		errs = append(errs, "symbol must not be empty")
	}

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, trade)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	for _, v := range []struct {
		name string
		cfg  VenueConfig
	}{
		{"upbit", c.Upbit},
		{"bithumb", c.Bithumb},
		{"binance", c.Binance},
		{"mexc", c.MEXC},
	} {
		if !v.cfg.Enabled {
			continue
		}
		if v.cfg.WsURL == "" {
			errs = append(errs, v.name+": ws_url must not be empty when enabled")
		}
		if v.cfg.Symbol == "" {
			errs = append(errs, v.name+": symbol must not be empty when enabled")
		}
		if v.cfg.MakerFee < 0 || v.cfg.MakerFee >= 1 {
			errs = append(errs, fmt.Sprintf("%s: maker_fee must be a fraction within [0, 1), got %g", v.name, v.cfg.MakerFee))
		}
		if v.cfg.TakerFee < 0 || v.cfg.TakerFee >= 1 {
			errs = append(errs, fmt.Sprintf("%s: taker_fee must be a fraction within [0, 1), got %g", v.name, v.cfg.TakerFee))
		}
	}

	// Trading mode needs credentials for at least one KRW venue and one
	// overseas venue, otherwise no premium can be captured.
	if strings.ToLower(c.Mode) == "trade" {
		if !c.Upbit.Tradable() && !c.Bithumb.Tradable() {
			errs = append(errs, "trade mode: at least one KRW venue (upbit, bithumb) needs api_key and secret_key")
		}
		if !c.Binance.Tradable() && !c.MEXC.Tradable() {
			errs = append(errs, "trade mode: at least one overseas venue (binance, mexc) needs api_key and secret_key")
		}
		if c.Executor.OrderQuantity <= 0 {
			errs = append(errs, "executor: order_quantity must be > 0 in trade mode")
		}
	}

	if c.Fx.URL == "" {
		errs = append(errs, "fx: url must not be empty")
	}
	if c.Fx.DefaultRate <= 0 {
		errs = append(errs, "fx: default_rate must be > 0")
	}
	if c.Fx.PollInterval.Duration <= 0 {
		errs = append(errs, "fx: poll_interval must be > 0")
	}

	if c.Premium.ThresholdPct <= 0 {
		errs = append(errs, "premium: threshold_pct must be > 0")
	}

	if c.Analyzer.DepthBandPct <= 0 {
		errs = append(errs, "analyzer: depth_band_pct must be > 0")
	}
	if c.Analyzer.MakerFillProbability < 0 || c.Analyzer.MakerFillProbability > 1 {
		errs = append(errs, "analyzer: maker_fill_probability must be within [0, 1]")
	}
	if c.Analyzer.MakerLeg != "buy" && c.Analyzer.MakerLeg != "sell" {
		errs = append(errs, fmt.Sprintf("analyzer: maker_leg must be \"buy\" or \"sell\", got %q", c.Analyzer.MakerLeg))
	}

	if c.Executor.LegTimeout.Duration <= 0 {
		errs = append(errs, "executor: leg_timeout must be > 0")
	}

	if c.Recovery.MaxRetries < 1 {
		errs = append(errs, "recovery: max_retries must be >= 1")
	}
	if c.Recovery.SlippageTolerancePct < 0 {
		errs = append(errs, "recovery: slippage_tolerance_pct must be >= 0")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
