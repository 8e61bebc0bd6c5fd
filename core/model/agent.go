package model

import "fmt"

// Role identifies what an agent does in the market.
type Role int

const (
	RoleForecaster Role = iota
	RoleProducer
	RoleConsumer
	RoleMarket
	RoleGrid
)

// String returns a human-readable representation of the role.
func (r Role) String() string {
	switch r {
	case RoleForecaster:
		return "forecaster"
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	case RoleMarket:
		return "market"
	case RoleGrid:
		return "grid"
	default:
		return "unknown"
	}
}

// AgentState is the local state an agent owns exclusively. Other components
// only ever see copies: the clearing engine reads a snapshot to validate
// order feasibility and must never mutate it.
type AgentState struct {
	AgentID            string  `json:"agent_id"`
	Role               Role    `json:"role"`
	BatteryKWh         float64 `json:"battery_kwh"`          // current stored energy
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"` // total storage capacity
	BatteryEfficiency  float64 `json:"battery_efficiency"`   // round-trip, (0,1]
	ProductionKWh      float64 `json:"production_kwh"`       // generation this tick
	BaseLoadKWh        float64 `json:"base_load_kwh"`        // inflexible demand this tick
	FlexibleLoadKWh    float64 `json:"flexible_load_kwh"`    // demand that can shift
}

// Validate checks that the state is internally consistent.
func (s AgentState) Validate() error {
	if s.AgentID == "" {
		return fmt.Errorf("agent state: missing agent id")
	}
	if s.BatteryCapacityKWh < 0 {
		return fmt.Errorf("agent %s: negative battery capacity", s.AgentID)
	}
	if s.BatteryKWh < 0 || s.BatteryKWh > s.BatteryCapacityKWh {
		return fmt.Errorf("agent %s: battery level %.2f outside [0, %.2f]", s.AgentID, s.BatteryKWh, s.BatteryCapacityKWh)
	}
	if s.BatteryEfficiency <= 0 || s.BatteryEfficiency > 1 {
		return fmt.Errorf("agent %s: battery efficiency must be in (0,1]", s.AgentID)
	}
	return nil
}

// BatteryReserve returns the stored energy as a fraction of capacity.
func (s AgentState) BatteryReserve() float64 {
	if s.BatteryCapacityKWh <= 0 {
		return 0
	}
	return s.BatteryKWh / s.BatteryCapacityKWh
}

// SellableKWh returns the energy the agent could offer this tick: current
// production plus what the battery can discharge after round-trip losses.
func (s AgentState) SellableKWh() float64 {
	return s.ProductionKWh + s.BatteryKWh*s.BatteryEfficiency
}

// PurchasableKWh returns the maximum energy the agent could absorb this
// tick: its load plus the remaining battery headroom.
func (s AgentState) PurchasableKWh() float64 {
	return s.BaseLoadKWh + s.FlexibleLoadKWh + (s.BatteryCapacityKWh - s.BatteryKWh)
}
