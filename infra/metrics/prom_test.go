package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new prom sink: %v", err)
	}
	ev := coremetrics.ClearingEvent{Tick: 1, ClearingPrice: 0.05, MatchedKWh: 12, Time: time.Now()}
	if err := sink.RecordClearing(ev); err != nil {
		t.Fatalf("record clearing: %v", err)
	}
	if err := sink.RecordForecast(model.Forecast{Tick: 1, Confidence: 0.7}); err != nil {
		t.Fatalf("record forecast: %v", err)
	}
	if err := sink.RecordTickDuration(1, 10*time.Millisecond); err != nil {
		t.Fatalf("record duration: %v", err)
	}

	mf, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(mf))
	for _, m := range mf {
		names[m.GetName()] = true
	}
	for _, want := range []string{
		"energysim_sink_clearings_total",
		"energysim_sink_matched_kwh_total",
		"energysim_sink_clearing_price",
		"energysim_sink_forecast_confidence",
		"energysim_sink_tick_seconds",
	} {
		if !names[want] {
			t.Fatalf("metric %s not gathered", want)
		}
	}
}

func TestPromSinkDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Re-registering on the same registry reuses the existing collectors.
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second: %v", err)
	}
}
