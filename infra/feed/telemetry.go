package feed

import (
	"math/rand"

	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

// TelemetryConfig tunes the synthetic grid telemetry generator.
type TelemetryConfig struct {
	Seed               int64   `json:"seed"`
	NominalFrequencyHz float64 `json:"nominal_frequency_hz"`
	NominalVoltageV    float64 `json:"nominal_voltage_v"`
	FrequencyNoiseHz   float64 `json:"frequency_noise_hz"`
	VoltageNoiseV      float64 `json:"voltage_noise_v"`
	// ImbalanceKWh bounds the random exogenous supply/demand deltas.
	ImbalanceKWh float64 `json:"imbalance_kwh"`
	DropoutPct   float64 `json:"dropout_pct"`
}

// SetDefaults applies sane defaults.
func (c *TelemetryConfig) SetDefaults() {
	if c.NominalFrequencyHz == 0 {
		c.NominalFrequencyHz = 50.0
	}
	if c.NominalVoltageV == 0 {
		c.NominalVoltageV = 230.0
	}
	if c.FrequencyNoiseHz == 0 {
		c.FrequencyNoiseHz = 0.03
	}
	if c.VoltageNoiseV == 0 {
		c.VoltageNoiseV = 3
	}
	if c.ImbalanceKWh == 0 {
		c.ImbalanceKWh = 10
	}
}

// TelemetryGenerator produces seeded grid measurements with gaussian noise
// around the nominal operating point.
type TelemetryGenerator struct {
	cfg  TelemetryConfig
	log  logger.Logger
	rand *rand.Rand
}

// NewTelemetryGenerator creates a generator with defaults applied.
func NewTelemetryGenerator(cfg TelemetryConfig) *TelemetryGenerator {
	cfg.SetDefaults()
	return &TelemetryGenerator{
		cfg:  cfg,
		log:  logger.New("telemetry-feed"),
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Sample returns the tick's grid measurements, or ErrUnavailable during a
// simulated outage.
func (g *TelemetryGenerator) Sample(tick model.Tick) (model.Telemetry, error) {
	if g.cfg.DropoutPct > 0 && g.rand.Float64() < g.cfg.DropoutPct {
		g.log.Warnf("tick %d: simulated telemetry outage", tick)
		return model.Telemetry{}, ErrUnavailable
	}
	return model.Telemetry{
		Tick:           tick,
		FrequencyHz:    g.cfg.NominalFrequencyHz + g.rand.NormFloat64()*g.cfg.FrequencyNoiseHz,
		VoltageV:       g.cfg.NominalVoltageV + g.rand.NormFloat64()*g.cfg.VoltageNoiseV,
		SupplyDeltaKWh: g.rand.Float64() * g.cfg.ImbalanceKWh,
		DemandDeltaKWh: g.rand.Float64() * g.cfg.ImbalanceKWh,
	}, nil
}
