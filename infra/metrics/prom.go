package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
)

// PromSink records clearing outcomes in Prometheus metrics.
type PromSink struct {
	clearings  *prometheus.CounterVec
	matched    prometheus.Counter
	price      prometheus.Gauge
	confidence prometheus.Gauge
	tickTime   prometheus.Histogram
}

// NewPromSink registers market metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	clearings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "energysim_sink_clearings_total",
		Help: "Clearing events recorded by the sink",
	}, []string{"degraded"})
	matched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "energysim_sink_matched_kwh_total",
		Help: "Total matched energy recorded by the sink",
	})
	price := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "energysim_sink_clearing_price",
		Help: "Clearing price of the most recent recorded tick",
	})
	confidence := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "energysim_sink_forecast_confidence",
		Help: "Confidence of the most recent recorded forecast",
	})
	tickTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "energysim_sink_tick_seconds",
		Help:    "Recorded simulation tick durations",
		Buckets: prometheus.DefBuckets,
	})

	if err := reg.Register(clearings); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			clearings = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(matched); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			matched = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(price); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			price = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(confidence); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			confidence = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(tickTime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			tickTime = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{clearings: clearings, matched: matched, price: price, confidence: confidence, tickTime: tickTime}, nil
}

// RecordClearing increments the counters for one tick's clearing.
func (s *PromSink) RecordClearing(ev coremetrics.ClearingEvent) error {
	s.clearings.WithLabelValues(strconv.FormatBool(ev.Degraded)).Inc()
	s.matched.Add(ev.MatchedKWh)
	if ev.MatchedKWh > 0 {
		s.price.Set(ev.ClearingPrice)
	}
	return nil
}

// RecordForecast sets the confidence gauge.
func (s *PromSink) RecordForecast(f model.Forecast) error {
	s.confidence.Set(f.Confidence)
	return nil
}

// RecordTickDuration observes the tick duration histogram.
func (s *PromSink) RecordTickDuration(_ model.Tick, d time.Duration) error {
	s.tickTime.Observe(d.Seconds())
	return nil
}
