// Package timeutil holds the small newtypes the engine uses instead of
// raw int64/time.Time: an exchange-clock timestamp and a monotonically
// increasing order identifier.
package timeutil

// TimestampNs is a nanosecond timestamp on the simulated exchange clock.
// It's driven entirely by incoming market updates, never by time.Now, so
// replays are deterministic regardless of wall-clock time.
type TimestampNs int64

// OrderID identifies an order within the exchange, assigned on submission.
type OrderID uint64

// OrderIDGenerator hands out strictly increasing OrderID values.
type OrderIDGenerator struct {
	next OrderID
}

// Next returns the next unused OrderID.
func (g *OrderIDGenerator) Next() OrderID {
	g.next++
	return g.next
}
