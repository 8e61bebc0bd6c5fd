package trading

import (
	"math"
	"testing"

	"github.com/gridwise/energysim/core/agent"
	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

func newTestProducer(t *testing.T) *Producer {
	t.Helper()
	p, err := NewProducer(ProducerConfig{
		ID:                 "p1",
		BatteryCapacityKWh: 50,
		BatteryKWh:         20,
		BatteryEfficiency:  0.9,
		ProductionKWh:      10,
		ReserveFraction:    0.2,
	}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	return p
}

func decideOrder(t *testing.T, r agent.Role, tick model.Tick, in agent.Inputs) model.Order {
	t.Helper()
	msg, err := r.Decide(tick, in)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	o, ok := msg.(model.Order)
	if !ok {
		t.Fatalf("decide returned %T, want model.Order", msg)
	}
	return o
}

func TestProducerOffersProductionPlusBatteryAboveReserve(t *testing.T) {
	p := newTestProducer(t)
	in := agent.Inputs{Tick: 1, Forecast: &model.Forecast{Tick: 1, ExpectedPrice: 0.05}}

	o := decideOrder(t, p, 1, in)
	if o.Side != model.SideSell || o.AgentID != "p1" {
		t.Fatalf("unexpected order %+v", o)
	}
	// Reserve holds back 10 kWh; 10 dischargeable at 0.9 efficiency plus
	// 10 kWh production.
	if want := 10 + 10*0.9; math.Abs(o.QuantityKWh-want) > 1e-9 {
		t.Fatalf("quantity = %.2f, want %.2f", o.QuantityKWh, want)
	}
}

func TestProducerReleasesReserveOnSupplyDirective(t *testing.T) {
	p := newTestProducer(t)
	in := agent.Inputs{
		Tick:     1,
		Forecast: &model.Forecast{Tick: 1, ExpectedPrice: 0.05},
		Grid:     &model.GridState{Directive: model.DirectiveIncreaseSupply},
	}
	o := decideOrder(t, p, 1, in)
	if want := 10 + 20*0.9; math.Abs(o.QuantityKWh-want) > 1e-9 {
		t.Fatalf("quantity = %.2f, want %.2f with reserve released", o.QuantityKWh, want)
	}
}

func TestProducerDecideRequiresForecast(t *testing.T) {
	p := newTestProducer(t)
	if _, err := p.Decide(1, agent.Inputs{Tick: 1}); err == nil {
		t.Fatal("expected error without forecast")
	}
}

func TestProducerMissingOffersProduction(t *testing.T) {
	p := newTestProducer(t)
	msg := p.Missing(1, agent.Inputs{Tick: 1})
	o := msg.(model.Order)
	if o.QuantityKWh != 10 || o.Side != model.SideSell {
		t.Fatalf("fallback order %+v, want plain production offer", o)
	}
	if o.LimitPrice <= 0 {
		t.Fatalf("fallback price must be positive, got %.4f", o.LimitPrice)
	}
}

func TestProducerNoop(t *testing.T) {
	p := newTestProducer(t)
	o := p.Noop(3).(model.Order)
	if !o.IsNoop() || o.Tick != 3 {
		t.Fatalf("expected no-op order for tick 3, got %+v", o)
	}
}

func TestProducerSettleDrawsBatteryBeyondProduction(t *testing.T) {
	p := newTestProducer(t)
	ts := model.TradeSet{Tick: 1, Trades: []model.Trade{
		{Tick: 1, BuyerID: "c1", SellerID: "p1", QuantityKWh: 15},
	}}
	p.Settle(1, ts)

	// 10 kWh came from production, 5 kWh from the battery at 0.9
	// round-trip efficiency.
	want := 20 - 5/0.9
	if got := p.Snapshot().BatteryKWh; math.Abs(got-want) > 1e-9 {
		t.Fatalf("battery = %.4f, want %.4f", got, want)
	}
}

func TestProducerSettleChargesSurplus(t *testing.T) {
	p := newTestProducer(t)
	p.Settle(1, model.TradeSet{Tick: 1})

	want := 20 + 10*0.9
	if got := p.Snapshot().BatteryKWh; math.Abs(got-want) > 1e-9 {
		t.Fatalf("battery = %.4f, want %.4f", got, want)
	}
}

func TestProducerConfigValidate(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}, logger.NopLogger{}); err == nil {
		t.Fatal("missing id must fail validation")
	}
	if _, err := NewProducer(ProducerConfig{ID: "p", BatteryCapacityKWh: 10, BatteryKWh: 20}, logger.NopLogger{}); err == nil {
		t.Fatal("battery above capacity must fail validation")
	}
}
