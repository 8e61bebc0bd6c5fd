package metrics

import (
	"testing"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
)

type recordSink struct {
	clearings int
	trades    int
}

func (r *recordSink) RecordClearing(coremetrics.ClearingEvent) error {
	r.clearings++
	return nil
}

func (r *recordSink) RecordTrades([]model.Trade) error {
	r.trades++
	return nil
}

type clearingOnlySink struct {
	clearings int
}

func (r *clearingOnlySink) RecordClearing(coremetrics.ClearingEvent) error {
	r.clearings++
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordClearing(coremetrics.ClearingEvent{}); err != nil {
		t.Fatalf("record clearing: %v", err)
	}
	if err := m.RecordTrades(nil); err != nil {
		t.Fatalf("record trades: %v", err)
	}
	if s1.clearings != 1 || s2.clearings != 1 || s1.trades != 1 || s2.trades != 1 {
		t.Fatalf("records not forwarded: %+v %+v", s1, s2)
	}
}

func TestMultiSinkSkipsUnsupportedRecorders(t *testing.T) {
	s := &clearingOnlySink{}
	m := NewMultiSink(s)
	if err := m.RecordTrades([]model.Trade{{ID: "t1"}}); err != nil {
		t.Fatalf("record trades: %v", err)
	}
	if err := m.RecordGridState(model.GridState{}); err != nil {
		t.Fatalf("record grid state: %v", err)
	}
	if s.clearings != 0 {
		t.Fatalf("unexpected clearing records: %d", s.clearings)
	}
}
