package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sim/pkg/currency"
)

const validYAML = `
instrument:
  ticker: BTCUSD
  pairing: linear
  min_price: "0"
  max_price: "1000000"
  tick_size: "0.01"
  min_qty: "0.001"
  max_qty: "1000"
  qty_tick_size: "0.001"
  init_margin_req: 0.1
  maintenance_margin: 0.05
  fee_maker: 0.0002
  fee_taker: 0.0006
account:
  starting_balance: "10000"
  max_active_orders_per_side: 10
replay:
  events_file: testdata/seed_scenario_1.json
logging:
  level: info
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesValidConfig(t *testing.T) {
	path := writeConfig(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTCUSD", cfg.Instrument.Ticker)
	assert.Equal(t, "linear", cfg.Instrument.Pairing)
	assert.Equal(t, "10000", cfg.Account.StartingBalance)
	assert.Equal(t, 10, cfg.Account.MaxActiveOrdersPerSide)
}

func TestLoadReturnsErrorOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestStartingBalanceEnvOverride(t *testing.T) {
	path := writeConfig(t, validYAML)

	t.Setenv("FUTURES_SIM_STARTING_BALANCE", "5000")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Account.StartingBalance)
}

func TestLogLevelEnvOverride(t *testing.T) {
	path := writeConfig(t, validYAML)

	t.Setenv("FUTURES_SIM_LOG_LEVEL", "debug")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsBadPairing(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Instrument.Pairing = "cross"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresTicker(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Instrument.Ticker = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeInitMarginReq(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Instrument.InitMarginReq = 0
	assert.Error(t, cfg.Validate())

	cfg.Instrument.InitMarginReq = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresMaintenanceBelowInitMargin(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Instrument.MaintenanceMargin = cfg.Instrument.InitMarginReq
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresMaxActiveOrdersPerSidePositive(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Account.MaxActiveOrdersPerSide = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresEventsFile(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Replay.EventsFile = ""
	assert.Error(t, cfg.Validate())
}

func TestParseMoneyRejectsEmptyField(t *testing.T) {
	_, err := ParseMoney[currency.Quote]("instrument.min_price", "")
	assert.Error(t, err)
}

func TestParseMoneyParsesValue(t *testing.T) {
	m, err := ParseMoney[currency.Quote]("instrument.min_price", "101.5")
	require.NoError(t, err)
	want, _ := currency.NewFromString[currency.Quote]("101.5")
	assert.True(t, m.Equal(want))
}
