package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol = "BTC"
mode = "monitor"

[premium]
threshold_pct = 2.5

[executor]
leg_timeout = "3s"

[upbit]
symbol = "KRW-BTC"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BTC", cfg.Symbol)
	assert.Equal(t, 2.5, cfg.Premium.ThresholdPct)
	assert.Equal(t, "3s", cfg.Executor.LegTimeout.Duration.String())
	assert.Equal(t, "KRW-BTC", cfg.Upbit.Symbol)
	// Untouched sections keep defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Recovery.MaxRetries)
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[premium]
threshold_pct = 2.5
`), 0o600))

	t.Setenv("KIMPARB_PREMIUM_THRESHOLD_PCT", "4.0")
	t.Setenv("KIMPARB_UPBIT_API_KEY", "from-env")
	t.Setenv("KIMPARB_MODE", "trade")
	t.Setenv("KIMPARB_SERVER_ENABLED", "true")
	t.Setenv("KIMPARB_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4.0, cfg.Premium.ThresholdPct)
	assert.Equal(t, "from-env", cfg.Upbit.ApiKey)
	assert.Equal(t, "trade", cfg.Mode)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Premium.ThresholdPct = 0
	cfg.Analyzer.MakerLeg = "middle"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "threshold_pct")
	assert.Contains(t, err.Error(), "maker_leg")
}

func TestDefaultsCarryBaseTierFees(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 0.0005, cfg.Upbit.MakerFee)
	assert.Equal(t, 0.0004, cfg.Bithumb.TakerFee)
	assert.Equal(t, 0.0, cfg.MEXC.MakerFee)
	assert.Equal(t, 0.0002, cfg.MEXC.TakerFee)
}

func TestLoadOverridesVenueFees(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[upbit]
maker_fee = 0.00025
`), 0o600))

	t.Setenv("KIMPARB_BINANCE_TAKER_FEE", "0.00075")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.00025, cfg.Upbit.MakerFee)
	assert.Equal(t, 0.00075, cfg.Binance.TakerFee)
	// Untouched venues keep the base-tier defaults.
	assert.Equal(t, 0.0004, cfg.Bithumb.MakerFee)
}

func TestValidateRejectsBadVenueFees(t *testing.T) {
	cfg := Defaults()
	cfg.Upbit.MakerFee = -0.1
	cfg.Binance.TakerFee = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upbit: maker_fee")
	assert.Contains(t, err.Error(), "binance: taker_fee")
}

func TestValidateRejectsBadServerPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Enabled = true
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be 1-65535")
}

func TestValidateTradeModeNeedsCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KRW venue")
	assert.Contains(t, err.Error(), "overseas venue")

	cfg.Upbit.ApiKey, cfg.Upbit.SecretKey = "k", "s"
	cfg.Binance.ApiKey, cfg.Binance.SecretKey = "k", "s"
	require.NoError(t, cfg.Validate())
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Upbit.ApiKey = "access"
	cfg.Upbit.SecretKey = "secret"
	cfg.Postgres.Password = "pw"
	cfg.Notify.TelegramToken = "token"
	cfg.Server.APIKey = "apikey"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Upbit.ApiKey)
	assert.Equal(t, "***", red.Upbit.SecretKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "***", red.Server.APIKey)
	// Original untouched.
	assert.Equal(t, "access", cfg.Upbit.ApiKey)
}
