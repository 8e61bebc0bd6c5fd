package grid

import (
	"math"

	"github.com/gridwise/energysim/core/logger"
	"github.com/gridwise/energysim/core/model"
)

// Config defines the monitor's nominal bands and escalation thresholds.
type Config struct {
	NominalFrequencyHz    float64 `json:"nominal_frequency_hz"`
	NominalVoltageV       float64 `json:"nominal_voltage_v"`
	FrequencyDeviationPct float64 `json:"frequency_deviation_pct"` // band width as fraction of nominal
	VoltageDeviationPct   float64 `json:"voltage_deviation_pct"`
	// BalanceScaleKWh normalizes the net power balance term: an imbalance
	// of this magnitude drives the balance component to zero.
	BalanceScaleKWh float64 `json:"balance_scale_kwh"`
	// ReduceDemandBelow and EmergencyBelow are descending stability-score
	// thresholds for the directive ladder.
	ReduceDemandBelow float64 `json:"reduce_demand_below"`
	EmergencyBelow    float64 `json:"emergency_below"`
	// SupplyHeadroomKWh bounds the shortfall producers are assumed able to
	// cover; smaller shortfalls escalate to increase_supply instead of
	// reduce_demand. Defaults to a quarter of BalanceScaleKWh.
	SupplyHeadroomKWh float64 `json:"supply_headroom_kwh"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.NominalFrequencyHz == 0 {
		c.NominalFrequencyHz = 50.0
	}
	if c.NominalVoltageV == 0 {
		c.NominalVoltageV = 230.0
	}
	if c.FrequencyDeviationPct == 0 {
		c.FrequencyDeviationPct = 0.002
	}
	if c.VoltageDeviationPct == 0 {
		c.VoltageDeviationPct = 0.05
	}
	if c.BalanceScaleKWh == 0 {
		c.BalanceScaleKWh = 100
	}
	if c.SupplyHeadroomKWh == 0 {
		c.SupplyHeadroomKWh = c.BalanceScaleKWh / 4
	}
	if c.ReduceDemandBelow == 0 {
		c.ReduceDemandBelow = 0.8
	}
	if c.EmergencyBelow == 0 {
		c.EmergencyBelow = 0.5
	}
}

// Monitor evaluates grid stability each tick and escalates directives with
// hysteresis: escalation requires two consecutive breach ticks,
// de-escalation two consecutive healthy ticks, to avoid oscillation.
type Monitor struct {
	cfg Config
	log logger.Logger

	directive    model.Directive
	breachTicks  int
	panicTicks   int
	healthyTicks int
	lastTick     model.Tick
}

// NewMonitor creates a Monitor with defaults applied.
func NewMonitor(cfg Config, log logger.Logger) *Monitor {
	cfg.SetDefaults()
	return &Monitor{cfg: cfg, log: log}
}

// Evaluate computes the grid verdict for one tick. Trades of the current
// tick and telemetry are the only inputs; the verdict becomes an input to
// ticks strictly after it was published.
func (m *Monitor) Evaluate(tick model.Tick, trades []model.Trade, tel model.Telemetry) model.GridState {
	var supplied, served float64
	for _, t := range trades {
		supplied += t.QuantityKWh
		served += t.QuantityKWh
	}
	balance := supplied - served + tel.SupplyDeltaKWh - tel.DemandDeltaKWh
	score := m.score(tel, balance)
	directive := m.advance(tick, score, balance)

	gs := model.GridState{
		Tick:               tick,
		FrequencyHz:        tel.FrequencyHz,
		VoltageV:           tel.VoltageV,
		NetPowerBalanceKWh: balance,
		StabilityScore:     score,
		Directive:          directive,
	}
	gridStability.Set(score)
	gridDirective.Set(float64(directive))
	if directive != model.DirectiveNone {
		m.log.Warnf("tick %d grid score %.3f balance %.2f kWh directive %s", tick, score, balance, directive)
	} else {
		m.log.Debugf("tick %d grid score %.3f balance %.2f kWh", tick, score, balance)
	}
	return gs
}

// score is bounded to [0,1]: a weighted blend of frequency, voltage and
// balance deviation terms. Weights follow the reference tuning
// (0.4 / 0.3 / 0.3).
func (m *Monitor) score(tel model.Telemetry, balance float64) float64 {
	freqDev := math.Abs(tel.FrequencyHz-m.cfg.NominalFrequencyHz) / m.cfg.NominalFrequencyHz
	freqTerm := clamp01(1 - freqDev/m.cfg.FrequencyDeviationPct)

	voltDev := math.Abs(tel.VoltageV-m.cfg.NominalVoltageV) / m.cfg.NominalVoltageV
	voltTerm := clamp01(1 - voltDev/m.cfg.VoltageDeviationPct)

	balTerm := clamp01(1 - math.Abs(balance)/m.cfg.BalanceScaleKWh)

	return 0.4*freqTerm + 0.3*voltTerm + 0.3*balTerm
}

// advance runs the directive ladder none → reduce_demand → emergency.
// increase_supply replaces reduce_demand when the shortfall is small enough
// for producers to cover.
func (m *Monitor) advance(tick model.Tick, score, balance float64) model.Directive {
	if score < m.cfg.EmergencyBelow {
		m.panicTicks++
	} else {
		m.panicTicks = 0
	}
	if score < m.cfg.ReduceDemandBelow {
		m.breachTicks++
		m.healthyTicks = 0
	} else {
		m.breachTicks = 0
		m.healthyTicks++
	}
	m.lastTick = tick

	switch {
	case m.panicTicks >= 2:
		m.directive = model.DirectiveEmergency
	case m.breachTicks >= 2 && m.directive == model.DirectiveNone:
		if balance < 0 && -balance <= m.cfg.SupplyHeadroomKWh {
			m.directive = model.DirectiveIncreaseSupply
		} else {
			m.directive = model.DirectiveReduceDemand
		}
	case m.healthyTicks >= 2:
		m.directive = model.DirectiveNone
	}
	return m.directive
}

// Directive returns the currently active directive.
func (m *Monitor) Directive() model.Directive { return m.directive }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
