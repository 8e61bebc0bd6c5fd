package metrics

import (
	coremetrics "github.com/gridwise/energysim/core/metrics"
)

// InfluxConfig holds the InfluxDB endpoint settings.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// Config selects which sinks to build.
type Config struct {
	Prometheus     bool         `json:"prometheus"`
	PrometheusAddr string       `json:"prometheus_addr"`
	Influx         InfluxConfig `json:"influx"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":2112"
	}
}

// NewFromConfig builds the configured sinks and fans them out through a
// MultiSink. With nothing enabled it returns a NopSink. An unreachable
// InfluxDB degrades to a NopSink member rather than failing startup.
func NewFromConfig(cfg Config) (coremetrics.Sink, error) {
	var sinks []coremetrics.Sink
	if cfg.Prometheus {
		prom, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.Influx.Enabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
