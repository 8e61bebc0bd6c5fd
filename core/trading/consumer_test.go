package trading

import (
	"math"
	"testing"

	"github.com/gridwise/energysim/core/agent"
	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

func newTestConsumer(t *testing.T, batteryKWh float64) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerConfig{
		ID:                 "c1",
		BatteryCapacityKWh: 30,
		BatteryKWh:         batteryKWh,
		BatteryEfficiency:  0.9,
		BaseLoadKWh:        8,
		FlexibleLoadKWh:    4,
		CurtailFraction:    0.5,
	}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

// Expensive forecast: above the anchor, so no opportunistic charging.
func dearForecast(tick model.Tick) *model.Forecast {
	return &model.Forecast{Tick: tick, ExpectedPrice: 0.10}
}

func TestConsumerBidsUncoveredLoad(t *testing.T) {
	c := newTestConsumer(t, 0)
	o := decideOrder(t, c, 1, agent.Inputs{Tick: 1, Forecast: dearForecast(1)})
	if o.Side != model.SideBuy || o.AgentID != "c1" {
		t.Fatalf("unexpected order %+v", o)
	}
	if o.QuantityKWh != 12 {
		t.Fatalf("quantity = %.2f, want full 12 kWh load", o.QuantityKWh)
	}
}

func TestConsumerBatteryCoversLoad(t *testing.T) {
	c := newTestConsumer(t, 10)
	o := decideOrder(t, c, 1, agent.Inputs{Tick: 1, Forecast: dearForecast(1)})
	// 10 kWh at 0.9 efficiency covers 9 of the 12 kWh load.
	if want := 3.0; math.Abs(o.QuantityKWh-want) > 1e-9 {
		t.Fatalf("quantity = %.2f, want %.2f", o.QuantityKWh, want)
	}
}

func TestConsumerCurtailsUnderReduceDemand(t *testing.T) {
	c := newTestConsumer(t, 0)
	in := agent.Inputs{
		Tick:     1,
		Forecast: dearForecast(1),
		Grid:     &model.GridState{Directive: model.DirectiveReduceDemand},
	}
	o := decideOrder(t, c, 1, in)
	// Half the flexible load is shed: 8 + 4*0.5 = 10.
	if o.QuantityKWh != 10 {
		t.Fatalf("quantity = %.2f, want 10 under reduce_demand", o.QuantityKWh)
	}
}

func TestConsumerDropsFlexibleLoadInEmergency(t *testing.T) {
	c := newTestConsumer(t, 0)
	in := agent.Inputs{
		Tick:     1,
		Forecast: dearForecast(1),
		Grid:     &model.GridState{Directive: model.DirectiveEmergency},
	}
	o := decideOrder(t, c, 1, in)
	if o.QuantityKWh != 8 {
		t.Fatalf("quantity = %.2f, want base load only in an emergency", o.QuantityKWh)
	}
}

func TestConsumerChargesWhenCheap(t *testing.T) {
	c := newTestConsumer(t, 10)
	cheap := &model.Forecast{Tick: 1, ExpectedPrice: 0.03}
	o := decideOrder(t, c, 1, agent.Inputs{Tick: 1, Forecast: cheap})
	// Uncovered load (3) plus the full 20 kWh battery headroom.
	if want := 23.0; math.Abs(o.QuantityKWh-want) > 1e-9 {
		t.Fatalf("quantity = %.2f, want %.2f with opportunistic charging", o.QuantityKWh, want)
	}
}

func TestConsumerNoChargingWhileCurtailed(t *testing.T) {
	c := newTestConsumer(t, 10)
	cheap := &model.Forecast{Tick: 1, ExpectedPrice: 0.03}
	in := agent.Inputs{Tick: 1, Forecast: cheap, Grid: &model.GridState{Directive: model.DirectiveReduceDemand}}
	o := decideOrder(t, c, 1, in)
	// Curtailed need is 10, battery covers 9: bid 1, no headroom filling.
	if want := 1.0; math.Abs(o.QuantityKWh-want) > 1e-9 {
		t.Fatalf("quantity = %.2f, want %.2f", o.QuantityKWh, want)
	}
}

func TestConsumerMissingBidsBaseLoad(t *testing.T) {
	c := newTestConsumer(t, 0)
	o := c.Missing(1, agent.Inputs{Tick: 1}).(model.Order)
	if o.QuantityKWh != 8 || o.Side != model.SideBuy {
		t.Fatalf("fallback order %+v, want base-load bid", o)
	}
}

func TestConsumerSettleSurplusChargesBattery(t *testing.T) {
	c := newTestConsumer(t, 0)
	ts := model.TradeSet{Tick: 1, Trades: []model.Trade{
		{Tick: 1, BuyerID: "c1", SellerID: "p1", QuantityKWh: 15},
	}}
	c.Settle(1, ts)
	// 12 kWh serve the load, 3 kWh charge at 0.9 efficiency.
	if want := 2.7; math.Abs(c.Snapshot().BatteryKWh-want) > 1e-9 {
		t.Fatalf("battery = %.4f, want %.4f", c.Snapshot().BatteryKWh, want)
	}
}

func TestConsumerSettleDeficitDrainsBattery(t *testing.T) {
	c := newTestConsumer(t, 10)
	ts := model.TradeSet{Tick: 1, Trades: []model.Trade{
		{Tick: 1, BuyerID: "c1", SellerID: "p1", QuantityKWh: 5},
	}}
	c.Settle(1, ts)
	want := 10 - 7/0.9
	if got := c.Snapshot().BatteryKWh; math.Abs(got-want) > 1e-9 {
		t.Fatalf("battery = %.4f, want %.4f", got, want)
	}
}

func TestConsumerConfigValidate(t *testing.T) {
	if _, err := NewConsumer(ConsumerConfig{}, logger.NopLogger{}); err == nil {
		t.Fatal("missing id must fail validation")
	}
}
