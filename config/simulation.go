package config

import (
	"fmt"
	"time"

	"github.com/gridwise/energysim/core/agent"
	"github.com/gridwise/energysim/core/sim"
)

// SimulationConfig defines the tick loop timing. Durations are expressed
// in plain units so that config files stay readable.
type SimulationConfig struct {
	TickIntervalSeconds float64 `json:"tick_interval_seconds"`
	OrderWindowMS       int     `json:"order_window_ms"`
	TickTimeoutMS       int     `json:"tick_timeout_ms"`
	PublishRetries      int     `json:"publish_retries"`
	PublishBackoffMS    int     `json:"publish_backoff_ms"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.TickIntervalSeconds == 0 {
		c.TickIntervalSeconds = 1
	}
	if c.OrderWindowMS == 0 {
		c.OrderWindowMS = 500
	}
	if c.TickTimeoutMS == 0 {
		c.TickTimeoutMS = 1000
	}
	if c.PublishRetries == 0 {
		c.PublishRetries = 3
	}
	if c.PublishBackoffMS == 0 {
		c.PublishBackoffMS = 10
	}
}

// Validate checks mandatory fields.
func (c SimulationConfig) Validate() error {
	if c.TickIntervalSeconds <= 0 {
		return fmt.Errorf("simulation: tick_interval_seconds must be positive")
	}
	if c.OrderWindowMS <= 0 {
		return fmt.Errorf("simulation: order_window_ms must be positive")
	}
	return nil
}

// SimConfig converts to the coordinator's configuration.
func (c SimulationConfig) SimConfig() sim.Config {
	return sim.Config{
		TickInterval: time.Duration(c.TickIntervalSeconds * float64(time.Second)),
		OrderWindow:  time.Duration(c.OrderWindowMS) * time.Millisecond,
		Agent: agent.Config{
			TickTimeout:    time.Duration(c.TickTimeoutMS) * time.Millisecond,
			PublishRetries: c.PublishRetries,
			PublishBackoff: time.Duration(c.PublishBackoffMS) * time.Millisecond,
		},
	}
}

// StoreConfig defines the persistent record store.
type StoreConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "energysim.jsonl"
	}
}

// APIConfig defines the HTTP API server.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
