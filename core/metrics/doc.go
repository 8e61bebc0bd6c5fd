// Package metrics defines interfaces for collecting simulation metrics.
// Sinks like PromSink and InfluxSink record events such as tick clearings
// or grid verdicts and can be combined with NewMultiSink. Recorders beyond
// the base Sink are optional interfaces discovered by type assertion.
package metrics
