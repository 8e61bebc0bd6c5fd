package sim

import "github.com/prometheus/client_golang/prometheus"

var (
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "energysim_tick_duration_seconds",
		Help:    "Wall-clock duration of one simulation tick.",
		Buckets: prometheus.DefBuckets,
	})
	degradedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "energysim_degraded_ticks_total",
		Help: "Ticks settled with an empty trade set after a coordinator error.",
	})
)

func init() {
	prometheus.MustRegister(tickDuration, degradedTicks)
}
