package model

// Directive instructs traders how to adjust their next-tick decisions.
type Directive int

const (
	DirectiveNone Directive = iota
	DirectiveReduceDemand
	DirectiveIncreaseSupply
	DirectiveEmergency
)

// String returns a human-readable representation of the directive.
func (d Directive) String() string {
	switch d {
	case DirectiveNone:
		return "none"
	case DirectiveReduceDemand:
		return "reduce_demand"
	case DirectiveIncreaseSupply:
		return "increase_supply"
	case DirectiveEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Curtails reports whether the directive asks consumers to shed load.
func (d Directive) Curtails() bool {
	return d == DirectiveReduceDemand || d == DirectiveEmergency
}

// BoostsSupply reports whether the directive asks producers to sell harder.
func (d Directive) BoostsSupply() bool {
	return d == DirectiveIncreaseSupply || d == DirectiveEmergency
}

// GridState is the stability monitor's verdict for one tick. It is produced
// once per tick and read by traders in the following tick only.
type GridState struct {
	Tick               Tick      `json:"tick"`
	FrequencyHz        float64   `json:"frequency_hz"`
	VoltageV           float64   `json:"voltage_v"`
	NetPowerBalanceKWh float64   `json:"net_power_balance_kwh"`
	StabilityScore     float64   `json:"stability_score"` // bounded [0,1]
	Directive          Directive `json:"directive"`
	// Stale marks a carried-forward state from a degraded tick.
	Stale bool `json:"stale,omitempty"`
}
