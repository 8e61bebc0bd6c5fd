package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridwise/energysim/core/model"
)

func appendRaw(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteString(line)
	return err
}

func newTestStore(t *testing.T) *JSONLStore {
	t.Helper()
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "sim.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func rec(tick model.Tick, agent string, kind Kind) Record {
	return Record{Tick: tick, AgentID: agent, Kind: kind, Time: time.Now(), Payload: json.RawMessage(`{}`)}
}

func TestAppendAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, r := range []Record{
		rec(1, "p1", KindOrder),
		rec(1, "c1", KindOrder),
		rec(1, "", KindGridState),
		rec(2, "p1", KindOrder),
	} {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Query(ctx, Query{Kind: KindOrder})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(got))
	}

	got, err = s.Query(ctx, Query{FromTick: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].AgentID != "p1" || got[0].Tick != 2 {
		t.Fatalf("unexpected result %+v", got)
	}

	got, err = s.Query(ctx, Query{AgentID: "c1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record for c1, got %d", len(got))
	}
}

func TestReplayedAppendIsIdempotentOnQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := rec(3, "p1", KindOrder)
	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected deduplicated single record, got %d", len(got))
	}
}

func TestQuerySkipsCorruptLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Append(ctx, rec(1, "p1", KindOrder)); err != nil {
		t.Fatalf("append: %v", err)
	}
	// A torn write must not poison the rest of the file.
	f := s.path
	if err := appendRaw(f, "{not json\n"); err != nil {
		t.Fatalf("raw append: %v", err)
	}
	if err := s.Append(ctx, rec(2, "p1", KindOrder)); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
}

func TestRecorderPersistsTrades(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	trades := []model.Trade{
		{ID: "t1", Tick: 1, BuyerID: "c1", SellerID: "p1", QuantityKWh: 5, ClearingPrice: 0.05},
		{ID: "t2", Tick: 1, BuyerID: "c2", SellerID: "p1", QuantityKWh: 3, ClearingPrice: 0.05},
	}
	if err := r.RecordTrades(trades); err != nil {
		t.Fatalf("record trades: %v", err)
	}
	got, err := s.Query(context.Background(), Query{Kind: KindTrade})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	var back model.Trade
	if err := json.Unmarshal(got[0].Payload, &back); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if back.QuantityKWh != 5 {
		t.Fatalf("payload round trip lost data: %+v", back)
	}
}
