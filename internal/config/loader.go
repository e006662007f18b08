package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KIMPARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KIMPARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	for _, v := range []struct {
		prefix string
		cfg    *VenueConfig
	}{
		{"KIMPARB_UPBIT", &cfg.Upbit},
		{"KIMPARB_BITHUMB", &cfg.Bithumb},
		{"KIMPARB_BINANCE", &cfg.Binance},
		{"KIMPARB_MEXC", &cfg.MEXC},
	} {
		setBool(&v.cfg.Enabled, v.prefix+"_ENABLED")
		setStr(&v.cfg.RestURL, v.prefix+"_REST_URL")
		setStr(&v.cfg.WsURL, v.prefix+"_WS_URL")
		setStr(&v.cfg.ApiKey, v.prefix+"_API_KEY")
		setStr(&v.cfg.SecretKey, v.prefix+"_SECRET_KEY")
		setStr(&v.cfg.Symbol, v.prefix+"_SYMBOL")
		setFloat64(&v.cfg.MakerFee, v.prefix+"_MAKER_FEE")
		setFloat64(&v.cfg.TakerFee, v.prefix+"_TAKER_FEE")
	}

	// ── Fx ──
	setStr(&cfg.Fx.URL, "KIMPARB_FX_URL")
	setDuration(&cfg.Fx.PollInterval, "KIMPARB_FX_POLL_INTERVAL")
	setFloat64(&cfg.Fx.DefaultRate, "KIMPARB_FX_DEFAULT_RATE")
	setDuration(&cfg.Fx.StaleAfter, "KIMPARB_FX_STALE_AFTER")

	// ── Premium ──
	setFloat64(&cfg.Premium.ThresholdPct, "KIMPARB_PREMIUM_THRESHOLD_PCT")

	// ── Analyzer ──
	setFloat64(&cfg.Analyzer.DepthBandPct, "KIMPARB_ANALYZER_DEPTH_BAND_PCT")
	setFloat64(&cfg.Analyzer.MinDepthValue, "KIMPARB_ANALYZER_MIN_DEPTH_VALUE")
	setFloat64(&cfg.Analyzer.MaxSpreadBps, "KIMPARB_ANALYZER_MAX_SPREAD_BPS")
	setFloat64(&cfg.Analyzer.ImbalanceLimit, "KIMPARB_ANALYZER_IMBALANCE_LIMIT")
	setFloat64(&cfg.Analyzer.MakerFillProbability, "KIMPARB_ANALYZER_MAKER_FILL_PROBABILITY")
	setDuration(&cfg.Analyzer.MakerMaxWait, "KIMPARB_ANALYZER_MAKER_MAX_WAIT")
	setFloat64(&cfg.Analyzer.BreakevenSlippagePct, "KIMPARB_ANALYZER_BREAKEVEN_SLIPPAGE_PCT")
	setStr(&cfg.Analyzer.MakerLeg, "KIMPARB_ANALYZER_MAKER_LEG")

	// ── Executor ──
	setBool(&cfg.Executor.Enabled, "KIMPARB_EXECUTOR_ENABLED")
	setFloat64(&cfg.Executor.OrderQuantity, "KIMPARB_EXECUTOR_ORDER_QUANTITY")
	setDuration(&cfg.Executor.LegTimeout, "KIMPARB_EXECUTOR_LEG_TIMEOUT")
	setBool(&cfg.Executor.AutoRecovery, "KIMPARB_EXECUTOR_AUTO_RECOVERY")
	setDuration(&cfg.Executor.DedupTTL, "KIMPARB_EXECUTOR_DEDUP_TTL")
	setDuration(&cfg.Executor.Cooldown, "KIMPARB_EXECUTOR_COOLDOWN")

	// ── Recovery ──
	setInt(&cfg.Recovery.MaxRetries, "KIMPARB_RECOVERY_MAX_RETRIES")
	setDuration(&cfg.Recovery.RetryDelay, "KIMPARB_RECOVERY_RETRY_DELAY")
	setFloat64(&cfg.Recovery.SlippageTolerancePct, "KIMPARB_RECOVERY_SLIPPAGE_TOLERANCE_PCT")
	setInt(&cfg.Recovery.QueueSize, "KIMPARB_RECOVERY_QUEUE_SIZE")
	setBool(&cfg.Recovery.DryRun, "KIMPARB_RECOVERY_DRY_RUN")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KIMPARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KIMPARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KIMPARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KIMPARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KIMPARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KIMPARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KIMPARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KIMPARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KIMPARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KIMPARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KIMPARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KIMPARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KIMPARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KIMPARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KIMPARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KIMPARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "KIMPARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "KIMPARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KIMPARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "KIMPARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KIMPARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KIMPARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KIMPARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KIMPARB_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.FlushInterval, "KIMPARB_S3_FLUSH_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KIMPARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KIMPARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "KIMPARB_NOTIFY_EVENTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "KIMPARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "KIMPARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "KIMPARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "KIMPARB_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Symbol, "KIMPARB_SYMBOL")
	setStr(&cfg.Mode, "KIMPARB_MODE")
	setStr(&cfg.LogLevel, "KIMPARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
