package market

import "github.com/prometheus/client_golang/prometheus"

var (
	clearingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_clearings_total",
		Help: "Total number of market clearings",
	})
	matchedEnergy = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_matched_energy_kwh_total",
		Help: "Total energy matched across all clearings",
	})
	clearingPrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "market_clearing_price",
		Help: "Clearing price of the last tick with trades",
	})
	rejectedOrders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_rejected_orders_total",
		Help: "Orders rejected during admission",
	}, []string{"side"})
)

func init() {
	prometheus.MustRegister(clearingsTotal, matchedEnergy, clearingPrice, rejectedOrders)
}
