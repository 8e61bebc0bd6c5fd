package trading

import (
	"fmt"

	"github.com/gridwise/energysim/core/agent"
	"github.com/gridwise/energysim/core/logger"
	"github.com/gridwise/energysim/core/model"
)

// ConsumerConfig defines a buy-side agent.
type ConsumerConfig struct {
	ID                 string         `json:"id"`
	BatteryCapacityKWh float64        `json:"battery_capacity_kwh"`
	BatteryKWh         float64        `json:"battery_kwh"`
	BatteryEfficiency  float64        `json:"battery_efficiency"`
	BaseLoadKWh        float64        `json:"base_load_kwh"`     // inflexible demand per tick
	FlexibleLoadKWh    float64        `json:"flexible_load_kwh"` // shiftable demand per tick
	CurtailFraction    float64        `json:"curtail_fraction"`  // flexible load shed under reduce_demand
	Pricing            ElasticPricing `json:"pricing"`
}

// SetDefaults applies sane defaults.
func (c *ConsumerConfig) SetDefaults() {
	if c.BatteryCapacityKWh == 0 {
		c.BatteryCapacityKWh = 30
	}
	if c.BatteryEfficiency == 0 {
		c.BatteryEfficiency = 0.9
	}
	if c.CurtailFraction == 0 {
		c.CurtailFraction = 0.5
	}
	c.Pricing.SetDefaults()
}

// Validate checks mandatory fields.
func (c ConsumerConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("consumer: id is required")
	}
	if c.BatteryKWh > c.BatteryCapacityKWh {
		return fmt.Errorf("consumer %s: battery level above capacity", c.ID)
	}
	return nil
}

// Consumer decides buy-side bids from the forecast and its own load and
// battery state, mirroring the producer with a demand-elasticity policy.
type Consumer struct {
	cfg    ConsumerConfig
	policy PricingPolicy
	log    logger.Logger
	state  model.AgentState
}

// NewConsumer creates a Consumer; cfg defaults and validation are applied.
func NewConsumer(cfg ConsumerConfig, log logger.Logger) (*Consumer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Consumer{
		cfg:    cfg,
		policy: cfg.Pricing,
		log:    log,
		state: model.AgentState{
			AgentID:            cfg.ID,
			Role:               model.RoleConsumer,
			BatteryKWh:         cfg.BatteryKWh,
			BatteryCapacityKWh: cfg.BatteryCapacityKWh,
			BatteryEfficiency:  cfg.BatteryEfficiency,
			BaseLoadKWh:        cfg.BaseLoadKWh,
			FlexibleLoadKWh:    cfg.FlexibleLoadKWh,
		},
	}
	return c, nil
}

// ID implements agent.Role.
func (c *Consumer) ID() string { return c.cfg.ID }

// Snapshot returns a read-only copy of the consumer's state.
func (c *Consumer) Snapshot() model.AgentState { return c.state }

// Decide computes this tick's bid. The battery covers what it can; the
// bid is the uncovered load, with flexible demand curtailed under a
// reduce_demand directive and dropped entirely in an emergency.
func (c *Consumer) Decide(tick model.Tick, in agent.Inputs) (any, error) {
	if in.Forecast == nil {
		return nil, fmt.Errorf("consumer %s: no forecast for tick %d", c.cfg.ID, tick)
	}
	flexible := c.state.FlexibleLoadKWh
	switch directive(in.Grid) {
	case model.DirectiveReduceDemand:
		flexible *= 1 - c.cfg.CurtailFraction
	case model.DirectiveEmergency:
		flexible = 0
	}
	need := c.state.BaseLoadKWh + flexible

	covered := c.state.BatteryKWh * c.state.BatteryEfficiency
	if covered > need {
		covered = need
	}
	qty := need - covered
	// Opportunistic storage charging when the forecast price sits below
	// the anchor and no curtailment is active.
	if !directive(in.Grid).Curtails() && in.Forecast.ExpectedPrice < c.cfg.Pricing.AnchorPrice {
		qty += c.state.BatteryCapacityKWh - c.state.BatteryKWh
	}
	qty = clamp(qty, 0, c.state.PurchasableKWh())

	price := c.policy.Price(*in.Forecast, c.state, in.Grid)
	order := model.Order{
		Tick:        tick,
		AgentID:     c.cfg.ID,
		Side:        model.SideBuy,
		QuantityKWh: qty,
		LimitPrice:  price,
		TTL:         in.Forecast.Horizon,
	}
	c.log.Debugw("consumer bid", map[string]any{
		"tick": tick, "agent": c.cfg.ID, "qty_kwh": qty, "price": price,
	})
	return order, nil
}

// Missing implements agent.Role: with no forecast the consumer bids its
// base load at the anchor price from last-known state.
func (c *Consumer) Missing(tick model.Tick, in agent.Inputs) any {
	return model.Order{
		Tick:        tick,
		AgentID:     c.cfg.ID,
		Side:        model.SideBuy,
		QuantityKWh: clamp(c.state.BaseLoadKWh, 0, c.state.PurchasableKWh()),
		LimitPrice:  c.cfg.Pricing.AnchorPrice,
	}
}

// Noop implements agent.Role.
func (c *Consumer) Noop(tick model.Tick) any {
	return model.NoopOrder(tick, c.cfg.ID, model.SideBuy)
}

// Settle applies the tick's trades locally: bought energy serves the load
// first, the remainder charges the battery; uncovered load drains it.
func (c *Consumer) Settle(tick model.Tick, ts model.TradeSet) {
	bought := ts.BoughtKWh(c.cfg.ID)
	need := c.state.BaseLoadKWh + c.state.FlexibleLoadKWh
	if bought >= need {
		c.state.BatteryKWh = clamp(c.state.BatteryKWh+(bought-need)*c.state.BatteryEfficiency, 0, c.state.BatteryCapacityKWh)
	} else {
		deficit := (need - bought) / c.state.BatteryEfficiency
		c.state.BatteryKWh = clamp(c.state.BatteryKWh-deficit, 0, c.state.BatteryCapacityKWh)
	}
	if bought > 0 {
		c.log.Debugf("consumer %s settled %.2f kWh at tick %d, battery %.2f kWh", c.cfg.ID, bought, tick, c.state.BatteryKWh)
	}
}
