package metrics

import (
	"time"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordClearing forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordClearing(ev coremetrics.ClearingEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordClearing(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTrades forwards trades to sinks that record them.
func (m *MultiSink) RecordTrades(trades []model.Trade) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.TradeRecorder); ok {
			if err := rec.RecordTrades(trades); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordGridState forwards grid verdicts.
func (m *MultiSink) RecordGridState(gs model.GridState) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.GridStateRecorder); ok {
			if err := rec.RecordGridState(gs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordForecast forwards forecasts.
func (m *MultiSink) RecordForecast(f model.Forecast) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ForecastRecorder); ok {
			if err := rec.RecordForecast(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOrder forwards submitted orders.
func (m *MultiSink) RecordOrder(o model.Order, accepted bool) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.OrderRecorder); ok {
			if err := rec.RecordOrder(o, accepted); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTickDuration forwards tick durations when supported by the sink.
func (m *MultiSink) RecordTickDuration(tick model.Tick, d time.Duration) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.TickDurationRecorder); ok {
			if err := rec.RecordTickDuration(tick, d); err != nil {
				return err
			}
		}
	}
	return nil
}
