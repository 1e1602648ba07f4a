package config

import (
	"encoding/json"
	"fmt"
	"os"

	"futures-sim/pkg/types"
)

// ScenarioEvent is one line of a replay fixture: either a submitted order
// or a market update, in the order the backtest driver should apply them.
// Parsed at the file-system boundary with encoding/json — the engine core
// never sees this shape, only the typed marketupdate.Update/orderstate
// values the driver constructs from it.
type ScenarioEvent struct {
	Kind string `json:"kind"` // "submit_limit", "submit_market", "bba", "trade"

	// submit_limit / submit_market
	Side     string `json:"side,omitempty"`
	Price    string `json:"price,omitempty"`
	Quantity string `json:"quantity,omitempty"`

	// bba
	Bid string `json:"bid,omitempty"`
	Ask string `json:"ask,omitempty"`

	TimestampNs int64 `json:"ts_ns"`
}

// Scenario is a replay fixture's full event sequence.
type Scenario struct {
	Events []ScenarioEvent `json:"events"`
}

// LoadScenario reads and parses a replay fixture.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// ParseSide parses a scenario event's side field.
func ParseSide(s string) (types.Side, error) {
	switch s {
	case "buy":
		return types.Buy, nil
	case "sell":
		return types.Sell, nil
	default:
		return "", fmt.Errorf("scenario: invalid side %q", s)
	}
}
