package store

import (
	"context"
	"encoding/json"
	"time"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
)

// Recorder adapts a Store to the metrics sink interfaces, so persistence
// hangs off the same fan-out as the observability sinks.
type Recorder struct {
	store Store
}

// NewRecorder wraps a Store.
func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

func (r *Recorder) append(tick model.Tick, agentID string, kind Kind, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.store.Append(ctx, Record{
		Tick:    tick,
		AgentID: agentID,
		Kind:    kind,
		Time:    time.Now(),
		Payload: payload,
	})
}

// RecordClearing persists the tick's clearing summary.
func (r *Recorder) RecordClearing(ev coremetrics.ClearingEvent) error {
	return r.append(ev.Tick, "", KindClearing, ev)
}

// RecordTrades persists each trade, keyed by its trade ID.
func (r *Recorder) RecordTrades(trades []model.Trade) error {
	for _, t := range trades {
		if err := r.append(t.Tick, t.ID, KindTrade, t); err != nil {
			return err
		}
	}
	return nil
}

// RecordGridState persists the stability verdict.
func (r *Recorder) RecordGridState(gs model.GridState) error {
	return r.append(gs.Tick, "", KindGridState, gs)
}

// RecordForecast persists the published forecast.
func (r *Recorder) RecordForecast(f model.Forecast) error {
	return r.append(f.Tick, "", KindForecast, f)
}

// RecordOrder persists a submitted order.
func (r *Recorder) RecordOrder(o model.Order, accepted bool) error {
	rec := struct {
		model.Order
		Accepted bool `json:"accepted"`
	}{Order: o, Accepted: accepted}
	return r.append(o.Tick, o.AgentID, KindOrder, rec)
}
