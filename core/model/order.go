package model

import (
	"fmt"
	"time"
)

// Tick identifies one simulation round. Ticks increase monotonically and
// every message on the bus carries the tick it belongs to.
type Tick = int64

// Side defines the direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// String returns a human-readable representation of the order side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Order is a single agent's buy or sell intent for one tick. An agent
// submits exactly one order per tick; a zero-quantity order is a no-op.
// Unmatched quantity expires at the end of the tick window.
type Order struct {
	Tick        Tick          `json:"tick"`
	AgentID     string        `json:"agent_id"`
	Side        Side          `json:"side"`
	QuantityKWh float64       `json:"quantity_kwh"`
	LimitPrice  float64       `json:"limit_price"` // price per kWh
	TTL         time.Duration `json:"ttl"`
}

// Validate checks the order against the market's admission rules.
func (o Order) Validate() error {
	if o.AgentID == "" {
		return fmt.Errorf("order: missing agent id")
	}
	if o.QuantityKWh < 0 {
		return fmt.Errorf("order %s: negative quantity %.3f", o.AgentID, o.QuantityKWh)
	}
	if o.LimitPrice < 0 {
		return fmt.Errorf("order %s: negative price %.4f", o.AgentID, o.LimitPrice)
	}
	return nil
}

// IsNoop reports whether the order carries no tradable quantity.
func (o Order) IsNoop() bool { return o.QuantityKWh == 0 }

// NoopOrder returns the zero-quantity order used when an agent cannot or
// does not want to trade in a tick.
func NoopOrder(tick Tick, agentID string, side Side) Order {
	return Order{Tick: tick, AgentID: agentID, Side: side}
}
