// Package config defines the backtest driver's configuration. Config is
// loaded from a YAML file (default: configs/config.yaml) with the
// starting balance and logging level overridable via FUTURES_SIM_* env
// vars, following the teacher's viper-based Load/Validate pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"futures-sim/pkg/currency"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Instrument InstrumentConfig `mapstructure:"instrument"`
	Account    AccountConfig    `mapstructure:"account"`
	Replay     ReplayConfig     `mapstructure:"replay"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// InstrumentConfig describes the single futures contract the backtest
// trades: which currency pairing (linear or inverse), its filters, margin
// requirements, and fee schedule.
type InstrumentConfig struct {
	Ticker            string  `mapstructure:"ticker"`
	Pairing           string  `mapstructure:"pairing"` // "linear" or "inverse"
	MinPrice          string  `mapstructure:"min_price"`
	MaxPrice          string  `mapstructure:"max_price"`
	TickSize          string  `mapstructure:"tick_size"`
	MinQty            string  `mapstructure:"min_qty"`
	MaxQty            string  `mapstructure:"max_qty"`
	QtyTickSize       string  `mapstructure:"qty_tick_size"`
	InitMarginReq     float64 `mapstructure:"init_margin_req"`
	MaintenanceMargin float64 `mapstructure:"maintenance_margin"`
	FeeMaker          float64 `mapstructure:"fee_maker"`
	FeeTaker          float64 `mapstructure:"fee_taker"`
}

// AccountConfig sets the account's starting collateral and book capacity.
type AccountConfig struct {
	StartingBalance        string `mapstructure:"starting_balance"`
	MaxActiveOrdersPerSide int    `mapstructure:"max_active_orders_per_side"`
}

// ReplayConfig points at the fixture the backtest replays.
type ReplayConfig struct {
	EventsFile string `mapstructure:"events_file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FUTURES_SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if bal := os.Getenv("FUTURES_SIM_STARTING_BALANCE"); bal != "" {
		cfg.Account.StartingBalance = bal
	}
	if level := os.Getenv("FUTURES_SIM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	switch c.Instrument.Pairing {
	case "linear", "inverse":
	default:
		return fmt.Errorf("instrument.pairing must be \"linear\" or \"inverse\", got %q", c.Instrument.Pairing)
	}
	if c.Instrument.Ticker == "" {
		return fmt.Errorf("instrument.ticker is required")
	}
	if _, err := parseDecimalField("instrument.min_price", c.Instrument.MinPrice); err != nil {
		return err
	}
	if _, err := parseDecimalField("instrument.max_price", c.Instrument.MaxPrice); err != nil {
		return err
	}
	if _, err := parseDecimalField("instrument.tick_size", c.Instrument.TickSize); err != nil {
		return err
	}
	if c.Instrument.InitMarginReq <= 0 || c.Instrument.InitMarginReq > 1 {
		return fmt.Errorf("instrument.init_margin_req must be in (0, 1]")
	}
	if c.Instrument.MaintenanceMargin <= 0 || c.Instrument.MaintenanceMargin >= c.Instrument.InitMarginReq {
		return fmt.Errorf("instrument.maintenance_margin must be in (0, init_margin_req)")
	}
	if _, err := parseDecimalField("account.starting_balance", c.Account.StartingBalance); err != nil {
		return err
	}
	if c.Account.MaxActiveOrdersPerSide <= 0 {
		return fmt.Errorf("account.max_active_orders_per_side must be > 0")
	}
	if c.Replay.EventsFile == "" {
		return fmt.Errorf("replay.events_file is required")
	}
	return nil
}

func parseDecimalField(field, value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid decimal %q: %w", field, value, err)
	}
	return f, nil
}

// ParseMoney parses a decimal string config field into Money[U], sharing
// one helper so every price/quantity/balance field in the file is parsed
// the same way.
func ParseMoney[U currency.Unit](field, value string) (currency.Money[U], error) {
	if value == "" {
		return currency.Money[U]{}, fmt.Errorf("%s is required", field)
	}
	m, err := currency.NewFromString[U](value)
	if err != nil {
		return currency.Money[U]{}, fmt.Errorf("%s: %w", field, err)
	}
	return m, nil
}
