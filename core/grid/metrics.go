package grid

import "github.com/prometheus/client_golang/prometheus"

var (
	gridStability = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grid_stability_score",
		Help: "Stability score of the last evaluated tick",
	})
	gridDirective = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grid_directive_level",
		Help: "Active directive level (0 none, 1 reduce_demand, 2 increase_supply, 3 emergency)",
	})
)

func init() {
	prometheus.MustRegister(gridStability, gridDirective)
}
