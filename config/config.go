package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gridwise/energysim/core/forecast"
	"github.com/gridwise/energysim/core/grid"
	"github.com/gridwise/energysim/core/trading"
	"github.com/gridwise/energysim/infra/feed"
	"github.com/gridwise/energysim/infra/metrics"
	"github.com/gridwise/energysim/infra/mqtt"
)

type Config struct {
	Simulation SimulationConfig         `json:"simulation"`
	Forecast   forecast.Config          `json:"forecast"`
	Grid       grid.Config              `json:"grid"`
	Producers  []trading.ProducerConfig `json:"producers"`
	Consumers  []trading.ConsumerConfig `json:"consumers"`
	Weather    feed.WeatherConfig       `json:"weather"`
	Telemetry  feed.TelemetryConfig     `json:"telemetry"`
	Metrics    metrics.Config           `json:"metrics"`
	Store      StoreConfig              `json:"store"`
	MQTT       mqtt.Config              `json:"mqtt"`
	API        APIConfig                `json:"api"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("ES_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "es_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Simulation.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the sections that carry mandatory fields.
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i := range c.Producers {
		p := c.Producers[i]
		p.SetDefaults()
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate agent id %s", p.ID)
		}
		seen[p.ID] = true
	}
	for i := range c.Consumers {
		cc := c.Consumers[i]
		cc.SetDefaults()
		if err := cc.Validate(); err != nil {
			return err
		}
		if seen[cc.ID] {
			return fmt.Errorf("duplicate agent id %s", cc.ID)
		}
		seen[cc.ID] = true
	}
	return nil
}
