package grid

import (
	"testing"

	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

func nominal() model.Telemetry {
	return model.Telemetry{FrequencyHz: 50.0, VoltageV: 230.0}
}

// shortage produces a telemetry sample with a large supply deficit, enough
// to pull the stability score below the reduce_demand threshold.
func shortage() model.Telemetry {
	t := nominal()
	t.DemandDeltaKWh = 120
	return t
}

func TestScoreNominalIsHealthy(t *testing.T) {
	m := NewMonitor(Config{}, logger.NopLogger{})
	gs := m.Evaluate(1, nil, nominal())
	if gs.StabilityScore < 0.99 {
		t.Fatalf("nominal grid should score ~1, got %.3f", gs.StabilityScore)
	}
	if gs.Directive != model.DirectiveNone {
		t.Fatalf("expected no directive got %s", gs.Directive)
	}
}

func TestScoreBounded(t *testing.T) {
	m := NewMonitor(Config{}, logger.NopLogger{})
	tel := model.Telemetry{FrequencyHz: 48, VoltageV: 100, DemandDeltaKWh: 1e6}
	gs := m.Evaluate(1, nil, tel)
	if gs.StabilityScore < 0 || gs.StabilityScore > 1 {
		t.Fatalf("score out of bounds: %.3f", gs.StabilityScore)
	}
}

func TestEscalationHysteresis(t *testing.T) {
	// Three consecutive breach ticks: the directive must appear on the
	// second, not the first, and persist on the third.
	m := NewMonitor(Config{}, logger.NopLogger{})
	if gs := m.Evaluate(1, nil, shortage()); gs.Directive != model.DirectiveNone {
		t.Fatalf("tick 1: expected none got %s", gs.Directive)
	}
	if gs := m.Evaluate(2, nil, shortage()); gs.Directive != model.DirectiveReduceDemand {
		t.Fatalf("tick 2: expected reduce_demand got %s", gs.Directive)
	}
	if gs := m.Evaluate(3, nil, shortage()); gs.Directive != model.DirectiveReduceDemand {
		t.Fatalf("tick 3: expected reduce_demand got %s", gs.Directive)
	}
}

func TestDeEscalationNeedsTwoHealthyTicks(t *testing.T) {
	m := NewMonitor(Config{}, logger.NopLogger{})
	m.Evaluate(1, nil, shortage())
	m.Evaluate(2, nil, shortage())
	if m.Directive() != model.DirectiveReduceDemand {
		t.Fatalf("setup failed: %s", m.Directive())
	}
	if gs := m.Evaluate(3, nil, nominal()); gs.Directive != model.DirectiveReduceDemand {
		t.Fatalf("one healthy tick must not clear the directive, got %s", gs.Directive)
	}
	if gs := m.Evaluate(4, nil, nominal()); gs.Directive != model.DirectiveNone {
		t.Fatalf("two healthy ticks should clear the directive, got %s", gs.Directive)
	}
}

func TestEmergencyEscalation(t *testing.T) {
	m := NewMonitor(Config{}, logger.NopLogger{})
	severe := model.Telemetry{FrequencyHz: 48.5, VoltageV: 180, DemandDeltaKWh: 500}
	m.Evaluate(1, nil, severe)
	gs := m.Evaluate(2, nil, severe)
	if gs.Directive != model.DirectiveEmergency {
		t.Fatalf("expected emergency got %s", gs.Directive)
	}
}

func TestIncreaseSupplyForCoverableShortfall(t *testing.T) {
	m := NewMonitor(Config{SupplyHeadroomKWh: 200}, logger.NopLogger{})
	m.Evaluate(1, nil, shortage())
	gs := m.Evaluate(2, nil, shortage())
	if gs.Directive != model.DirectiveIncreaseSupply {
		t.Fatalf("coverable shortfall should ask for supply, got %s", gs.Directive)
	}
}

func TestDefaultHeadroomEnablesSupplyDirective(t *testing.T) {
	// Default headroom is a quarter of the balance scale, so a small
	// shortfall paired with an off-band frequency asks for supply without
	// any explicit headroom configuration.
	m := NewMonitor(Config{}, logger.NopLogger{})
	tel := model.Telemetry{FrequencyHz: 49.8, VoltageV: 230.0, DemandDeltaKWh: 20}
	m.Evaluate(1, nil, tel)
	gs := m.Evaluate(2, nil, tel)
	if gs.Directive != model.DirectiveIncreaseSupply {
		t.Fatalf("coverable shortfall should ask for supply, got %s", gs.Directive)
	}
}

func TestNetBalanceFromTradesIsConservative(t *testing.T) {
	// Trades are balanced by construction, so the net balance must come
	// entirely from telemetry deltas.
	m := NewMonitor(Config{}, logger.NopLogger{})
	trades := []model.Trade{{Tick: 1, BuyerID: "c1", SellerID: "p1", QuantityKWh: 25, ClearingPrice: 0.05}}
	tel := nominal()
	tel.SupplyDeltaKWh = 10
	gs := m.Evaluate(1, trades, tel)
	if gs.NetPowerBalanceKWh != 10 {
		t.Fatalf("expected balance 10 got %.2f", gs.NetPowerBalanceKWh)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	a := NewMonitor(Config{}, logger.NopLogger{})
	b := NewMonitor(Config{}, logger.NopLogger{})
	tel := shortage()
	for tick := model.Tick(1); tick <= 5; tick++ {
		ga := a.Evaluate(tick, nil, tel)
		gb := b.Evaluate(tick, nil, tel)
		if ga != gb {
			t.Fatalf("tick %d diverged: %+v vs %+v", tick, ga, gb)
		}
	}
}
