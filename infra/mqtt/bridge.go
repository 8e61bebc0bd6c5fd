package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

// Bridge publishes simulation outcomes to an MQTT broker for external
// consumers. It is strictly one-way: nothing received over MQTT flows back
// into the simulation. The bridge implements the metrics recorder
// interfaces so it hangs off the same sink fan-out as observability.
type Bridge struct {
	cfg Config
	cli pahoClient
	log logger.Logger
}

// NewBridge connects to the broker and returns the bridge.
func NewBridge(cfg Config) (*Bridge, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt-bridge")
	cli, err := connect(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("mqtt bridge: %w", err)
	}
	return &Bridge{cfg: cfg, cli: cli, log: log}, nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}

func (b *Bridge) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	full := b.cfg.TopicPrefix + "/" + topic
	var publishErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		token := b.cli.Publish(full, b.cfg.QoS, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		b.log.Errorf("publish %s attempt %d failed: %v", full, attempt+1, publishErr)
		time.Sleep(backoff(b.cfg, attempt))
	}
	return publishErr
}

// RecordClearing publishes the tick's clearing summary.
func (b *Bridge) RecordClearing(ev coremetrics.ClearingEvent) error {
	return b.publish("clearing", ev)
}

// RecordTrades publishes the settled trades as one message.
func (b *Bridge) RecordTrades(trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return b.publish("trades", trades)
}

// RecordGridState publishes the stability verdict.
func (b *Bridge) RecordGridState(gs model.GridState) error {
	return b.publish("grid", gs)
}

// RecordForecast publishes the tick's forecast.
func (b *Bridge) RecordForecast(f model.Forecast) error {
	return b.publish("forecast", f)
}
