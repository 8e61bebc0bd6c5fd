package metrics

import (
	"time"

	"github.com/gridwise/energysim/core/model"
)

// ClearingEvent summarizes one tick's market clearing.
type ClearingEvent struct {
	Tick          model.Tick
	ClearingPrice float64
	MatchedKWh    float64
	BuyOrders     int
	SellOrders    int
	Rejected      int
	Degraded      bool
	Time          time.Time
}

// Sink records clearing results for observability purposes.
type Sink interface {
	RecordClearing(ev ClearingEvent) error
}

// TradeRecorder records individual trades.
type TradeRecorder interface {
	RecordTrades(trades []model.Trade) error
}

// GridStateRecorder records the stability monitor's verdicts.
type GridStateRecorder interface {
	RecordGridState(gs model.GridState) error
}

// ForecastRecorder records published forecasts.
type ForecastRecorder interface {
	RecordForecast(f model.Forecast) error
}

// OrderRecorder records submitted orders, including rejected ones.
type OrderRecorder interface {
	RecordOrder(o model.Order, accepted bool) error
}

// TickDurationRecorder records how long each simulation tick took.
type TickDurationRecorder interface {
	RecordTickDuration(tick model.Tick, d time.Duration) error
}

// NopSink implements Sink and all recorder interfaces with no-op methods.
type NopSink struct{}

func (NopSink) RecordClearing(ClearingEvent) error                 { return nil }
func (NopSink) RecordTrades([]model.Trade) error                   { return nil }
func (NopSink) RecordGridState(model.GridState) error              { return nil }
func (NopSink) RecordForecast(model.Forecast) error                { return nil }
func (NopSink) RecordOrder(model.Order, bool) error                { return nil }
func (NopSink) RecordTickDuration(model.Tick, time.Duration) error { return nil }
