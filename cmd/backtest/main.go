// futures-sim backtest — a deterministic, single-instrument leveraged
// futures matching/margining simulator. It loads an instrument
// specification and a starting account from a YAML config, replays a
// fixed sequence of orders and market updates from a JSON scenario file,
// and reports the account's final balances, position, and trade stats.
//
// Architecture:
//
//	main.go                    — entry point: loads config, runs the replay loop, reports the result
//	internal/config            — viper-backed YAML config + JSON scenario fixture loading
//	internal/exchange          — the facade: submit/cancel/amend orders, feed market updates
//	internal/book              — the active-order book (price-time priority, incremental notional)
//	internal/position          — position accounting (direction, weighted-average entry, realized PnL)
//	internal/margin            — the balances ledger and the order-margin pricing function
//	internal/risk              — pre-trade and maintenance-margin checks
//	internal/futuresmath       — linear vs. inverse contract math behind one interface
//	internal/account           — the trade-stats tracker
//
// There is no concurrency here: a backtest replays one event at a time,
// in order, on a single goroutine — the teacher's live multi-market bot
// needed goroutines because markets move in real time and independently
// of each other; a replay has neither property.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"futures-sim/internal/config"
	"futures-sim/internal/contracts"
	"futures-sim/internal/exchange"
	"futures-sim/internal/filters"
	"futures-sim/internal/futuresmath"
	"futures-sim/internal/orderstate"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/marketupdate"
	"futures-sim/pkg/timeutil"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a scenario against the futures matching/margining core",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := newLogger(cfg.Logging)

			switch cfg.Instrument.Pairing {
			case "linear":
				return runBacktest[currency.Base, currency.Quote](cfg, futuresmath.Linear{}, logger)
			case "inverse":
				return runBacktest[currency.Quote, currency.Base](cfg, futuresmath.Inverse{}, logger)
			default:
				return fmt.Errorf("instrument.pairing must be \"linear\" or \"inverse\"")
			}
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "configs/config.yaml", "path to the scenario config file")

	if err := root.Execute(); err != nil {
		slog.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildSpecification assembles a contract Specification[Q] from cfg's
// string-encoded filter and fee fields.
func buildSpecification[Q currency.Unit](cfg *config.Config) (contracts.Specification[Q], error) {
	var zero contracts.Specification[Q]

	minPrice, err := config.ParseMoney[currency.Quote]("instrument.min_price", cfg.Instrument.MinPrice)
	if err != nil {
		return zero, err
	}
	maxPrice, err := config.ParseMoney[currency.Quote]("instrument.max_price", cfg.Instrument.MaxPrice)
	if err != nil {
		return zero, err
	}
	priceTick, err := config.ParseMoney[currency.Quote]("instrument.tick_size", cfg.Instrument.TickSize)
	if err != nil {
		return zero, err
	}

	qtyFilter := filters.QuantityFilter[Q]{}
	if cfg.Instrument.MinQty != "" {
		minQty, err := config.ParseMoney[Q]("instrument.min_qty", cfg.Instrument.MinQty)
		if err != nil {
			return zero, err
		}
		qtyFilter.MinQty, qtyFilter.HasMin = minQty, true
	}
	if cfg.Instrument.MaxQty != "" {
		maxQty, err := config.ParseMoney[Q]("instrument.max_qty", cfg.Instrument.MaxQty)
		if err != nil {
			return zero, err
		}
		qtyFilter.MaxQty, qtyFilter.HasMax = maxQty, true
	}
	if cfg.Instrument.QtyTickSize != "" {
		qtyTick, err := config.ParseMoney[Q]("instrument.qty_tick_size", cfg.Instrument.QtyTickSize)
		if err != nil {
			return zero, err
		}
		qtyFilter.TickSize = qtyTick
	}

	return contracts.Specification[Q]{
		Ticker:      cfg.Instrument.Ticker,
		PriceFilter: filters.PriceFilter{MinPrice: minPrice, MaxPrice: maxPrice, TickSize: priceTick},
		QuantityFilter:    qtyFilter,
		InitMarginReq:     decimalFromFloat(cfg.Instrument.InitMarginReq),
		MaintenanceMargin: decimalFromFloat(cfg.Instrument.MaintenanceMargin),
		FeeMaker:          decimalFromFloat(cfg.Instrument.FeeMaker),
		FeeTaker:          decimalFromFloat(cfg.Instrument.FeeTaker),
	}, nil
}

// runBacktest drives one pairing's replay loop: it assembles the
// instrument and account from cfg, replays the scenario's events against
// an Exchange[Q, M], and logs the final account state.
func runBacktest[Q currency.Unit, M currency.Unit](cfg *config.Config, math futuresmath.Math[Q, M], logger *slog.Logger) error {
	spec, err := buildSpecification[Q](cfg)
	if err != nil {
		return fmt.Errorf("build instrument spec: %w", err)
	}

	startingBalance, err := config.ParseMoney[M]("account.starting_balance", cfg.Account.StartingBalance)
	if err != nil {
		return err
	}

	ex, err := exchange.New[Q, M](math, exchange.Config[Q, M]{
		StartingBalance:        startingBalance,
		MaxActiveOrdersPerSide: cfg.Account.MaxActiveOrdersPerSide,
		ContractSpec:           spec,
	})
	if err != nil {
		return fmt.Errorf("open exchange: %w", err)
	}

	scenario, err := config.LoadScenario(cfg.Replay.EventsFile)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	for i, ev := range scenario.Events {
		if err := applyEvent(ex, ev, logger); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, ev.Kind, err)
		}
	}

	bal, pos, tracker := ex.Balances(), ex.Position(), ex.AccountTracker()
	logger.Info("backtest complete",
		"ticker", spec.Ticker,
		"available", bal.Available().String(),
		"position_margin", bal.PositionMargin().String(),
		"order_margin", bal.OrderMargin().String(),
		"equity", bal.Equity().String(),
		"total_fees_paid", bal.TotalFeesPaid().String(),
		"position_direction", pos.Direction(),
		"position_quantity", pos.Quantity().String(),
		"num_trades", tracker.NumTrades(),
		"realized_pnl", tracker.RealizedPnL().String(),
		"win_rate", tracker.WinRate().String(),
	)
	return nil
}

// applyEvent parses and dispatches one scenario event against ex.
func applyEvent[Q currency.Unit, M currency.Unit](ex *exchange.Exchange[Q, M], ev config.ScenarioEvent, logger *slog.Logger) error {
	ts := timeutil.TimestampNs(ev.TimestampNs)

	switch ev.Kind {
	case "bba":
		bid, err := config.ParseMoney[currency.Quote]("bid", ev.Bid)
		if err != nil {
			return err
		}
		ask, err := config.ParseMoney[currency.Quote]("ask", ev.Ask)
		if err != nil {
			return err
		}
		updates, err := ex.UpdateState(marketupdate.Bba[Q]{Bid: bid, Ask: ask, TimestampNs: ts})
		logFillUpdates(logger, updates)
		return err

	case "trade":
		price, err := config.ParseMoney[currency.Quote]("price", ev.Price)
		if err != nil {
			return err
		}
		qty, err := config.ParseMoney[Q]("quantity", ev.Quantity)
		if err != nil {
			return err
		}
		side, err := config.ParseSide(ev.Side)
		if err != nil {
			return err
		}
		updates, err := ex.UpdateState(marketupdate.Trade[Q]{Price: price, Quantity: qty, Side: side, TimestampNs: ts})
		logFillUpdates(logger, updates)
		return err

	case "submit_limit":
		price, err := config.ParseMoney[currency.Quote]("price", ev.Price)
		if err != nil {
			return err
		}
		qty, err := config.ParseMoney[Q]("quantity", ev.Quantity)
		if err != nil {
			return err
		}
		side, err := config.ParseSide(ev.Side)
		if err != nil {
			return err
		}
		order, err := orderstate.NewLimit(side, price, qty)
		if err != nil {
			return err
		}
		pending, err := ex.SubmitLimitOrder(order, ts)
		if err != nil {
			return err
		}
		logger.Info("limit order accepted", "order_id", pending.Meta().OrderID, "side", side, "price", price.String(), "quantity", qty.String())
		return nil

	case "submit_market":
		qty, err := config.ParseMoney[Q]("quantity", ev.Quantity)
		if err != nil {
			return err
		}
		side, err := config.ParseSide(ev.Side)
		if err != nil {
			return err
		}
		order, err := orderstate.NewMarket(side, qty)
		if err != nil {
			return err
		}
		filled, err := ex.SubmitMarketOrder(order, ts)
		if err != nil {
			return err
		}
		logger.Info("market order filled", "order_id", filled.Meta().OrderID, "side", side, "fill_price", filled.FillPrice().String())
		return nil

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func logFillUpdates[Q currency.Unit](logger *slog.Logger, updates []exchange.LimitOrderUpdate[Q]) {
	for _, u := range updates {
		if u.Kind == exchange.FullyFilled {
			logger.Info("resting order fully filled", "order_id", u.Filled.Meta().OrderID, "fill_price", u.Filled.FillPrice().String())
		} else {
			logger.Info("resting order partially filled", "order_id", u.Partial.Meta().OrderID, "remaining", u.Partial.RemainingQuantity().String())
		}
	}
}
