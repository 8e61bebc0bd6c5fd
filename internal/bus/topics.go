package bus

// Topic names used by the simulation. Each topic is an independent ordered
// log; reconciliation across topics happens on the embedded tick.
const (
	TopicTicks     = "ticks"
	TopicForecasts = "forecasts"
	TopicOrders    = "orders"
	TopicTrades    = "trades"
	TopicGrid      = "grid"
	TopicTelemetry = "telemetry"
)
