package trading

import (
	"fmt"

	"github.com/gridwise/energysim/core/agent"
	"github.com/gridwise/energysim/core/logger"
	"github.com/gridwise/energysim/core/model"
)

// ProducerConfig defines a sell-side agent.
type ProducerConfig struct {
	ID                 string         `json:"id"`
	BatteryCapacityKWh float64        `json:"battery_capacity_kwh"`
	BatteryKWh         float64        `json:"battery_kwh"`
	BatteryEfficiency  float64        `json:"battery_efficiency"`
	ProductionKWh      float64        `json:"production_kwh"` // generation per tick
	ReserveFraction    float64        `json:"reserve_fraction"`
	Pricing            ReservePricing `json:"pricing"`
}

// SetDefaults applies sane defaults.
func (c *ProducerConfig) SetDefaults() {
	if c.BatteryCapacityKWh == 0 {
		c.BatteryCapacityKWh = 50
	}
	if c.BatteryEfficiency == 0 {
		c.BatteryEfficiency = 0.9
	}
	if c.ReserveFraction == 0 {
		c.ReserveFraction = 0.2
	}
	c.Pricing.SetDefaults()
}

// Validate checks mandatory fields.
func (c ProducerConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("producer: id is required")
	}
	if c.BatteryKWh > c.BatteryCapacityKWh {
		return fmt.Errorf("producer %s: battery level above capacity", c.ID)
	}
	return nil
}

// Producer decides sell-side offers from the forecast and its own battery
// and production state. It owns its state exclusively; settlement mutates
// it locally and nothing else ever writes to it.
type Producer struct {
	cfg    ProducerConfig
	policy PricingPolicy
	log    logger.Logger
	state  model.AgentState
}

// NewProducer creates a Producer; cfg defaults and validation are applied.
func NewProducer(cfg ProducerConfig, log logger.Logger) (*Producer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Producer{
		cfg:    cfg,
		policy: cfg.Pricing,
		log:    log,
		state: model.AgentState{
			AgentID:            cfg.ID,
			Role:               model.RoleProducer,
			BatteryKWh:         cfg.BatteryKWh,
			BatteryCapacityKWh: cfg.BatteryCapacityKWh,
			BatteryEfficiency:  cfg.BatteryEfficiency,
			ProductionKWh:      cfg.ProductionKWh,
		},
	}
	return p, nil
}

// ID implements agent.Role.
func (p *Producer) ID() string { return p.cfg.ID }

// Snapshot returns a read-only copy of the producer's state.
func (p *Producer) Snapshot() model.AgentState { return p.state }

// Decide computes this tick's sell offer. Quantity is the current
// production plus dischargeable battery above the configured reserve,
// clamped to what the battery and generation can actually deliver; a
// supply-boosting directive releases the reserve as well.
func (p *Producer) Decide(tick model.Tick, in agent.Inputs) (any, error) {
	if in.Forecast == nil {
		return nil, fmt.Errorf("producer %s: no forecast for tick %d", p.cfg.ID, tick)
	}
	reserve := p.cfg.ReserveFraction * p.state.BatteryCapacityKWh
	if directive(in.Grid).BoostsSupply() {
		reserve = 0
	}
	dischargeable := p.state.BatteryKWh - reserve
	if dischargeable < 0 {
		dischargeable = 0
	}
	qty := p.state.ProductionKWh + dischargeable*p.state.BatteryEfficiency
	qty = clamp(qty, 0, p.state.SellableKWh())

	price := p.policy.Price(*in.Forecast, p.state, in.Grid)
	order := model.Order{
		Tick:        tick,
		AgentID:     p.cfg.ID,
		Side:        model.SideSell,
		QuantityKWh: qty,
		LimitPrice:  price,
		TTL:         in.Forecast.Horizon,
	}
	p.log.Debugw("producer offer", map[string]any{
		"tick": tick, "agent": p.cfg.ID, "qty_kwh": qty, "price": price,
	})
	return order, nil
}

// Missing implements agent.Role: without a forecast the producer offers its
// plain production at the last-known reserve price, never blocking.
func (p *Producer) Missing(tick model.Tick, in agent.Inputs) any {
	price := p.policy.Price(model.Forecast{ExpectedPrice: p.cfg.Pricing.CeilingPrice}, p.state, in.Grid)
	return model.Order{
		Tick:        tick,
		AgentID:     p.cfg.ID,
		Side:        model.SideSell,
		QuantityKWh: clamp(p.state.ProductionKWh, 0, p.state.SellableKWh()),
		LimitPrice:  price,
	}
}

// Noop implements agent.Role.
func (p *Producer) Noop(tick model.Tick) any {
	return model.NoopOrder(tick, p.cfg.ID, model.SideSell)
}

// Settle applies the tick's trades to the producer's own state: energy
// sold beyond current production is drawn from the battery, accounting for
// round-trip losses. Unsold production charges the battery.
func (p *Producer) Settle(tick model.Tick, ts model.TradeSet) {
	sold := ts.SoldKWh(p.cfg.ID)
	fromProduction := sold
	if fromProduction > p.state.ProductionKWh {
		fromProduction = p.state.ProductionKWh
	}
	fromBattery := (sold - fromProduction) / p.state.BatteryEfficiency
	surplus := (p.state.ProductionKWh - fromProduction) * p.state.BatteryEfficiency

	p.state.BatteryKWh = clamp(p.state.BatteryKWh-fromBattery+surplus, 0, p.state.BatteryCapacityKWh)
	if sold > 0 {
		p.log.Debugf("producer %s settled %.2f kWh at tick %d, battery %.2f kWh", p.cfg.ID, sold, tick, p.state.BatteryKWh)
	}
}
