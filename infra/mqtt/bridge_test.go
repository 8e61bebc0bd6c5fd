package mqtt

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

type published struct {
	topic   string
	payload []byte
}

type mockClient struct {
	published   []published
	publishErrs []error
}

func (m *mockClient) IsConnected() bool   { return true }
func (m *mockClient) Connect() paho.Token { return &dummyToken{} }
func (m *mockClient) Disconnect(uint)     {}
func (m *mockClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	m.published = append(m.published, published{topic, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

func newTestBridge(cli *mockClient) *Bridge {
	cfg := Config{BackoffMS: 1}
	cfg.SetDefaults()
	cfg.BackoffMS = 1
	return &Bridge{cfg: cfg, cli: cli, log: logger.NopLogger{}}
}

func TestBridgePublishesTrades(t *testing.T) {
	cli := &mockClient{}
	b := newTestBridge(cli)
	trades := []model.Trade{{ID: "t1", Tick: 3, BuyerID: "c1", SellerID: "p1", QuantityKWh: 5, ClearingPrice: 0.05}}
	if err := b.RecordTrades(trades); err != nil {
		t.Fatalf("record trades: %v", err)
	}
	if len(cli.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(cli.published))
	}
	if cli.published[0].topic != "energysim/trades" {
		t.Fatalf("topic = %s", cli.published[0].topic)
	}
	var back []model.Trade
	if err := json.Unmarshal(cli.published[0].payload, &back); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(back) != 1 || back[0].ID != "t1" {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestBridgeSkipsEmptyTradeSets(t *testing.T) {
	cli := &mockClient{}
	b := newTestBridge(cli)
	if err := b.RecordTrades(nil); err != nil {
		t.Fatalf("record trades: %v", err)
	}
	if len(cli.published) != 0 {
		t.Fatalf("empty trade set must not publish")
	}
}

func TestBridgeRetriesOnPublishError(t *testing.T) {
	cli := &mockClient{publishErrs: []error{fmt.Errorf("broker hiccup")}}
	b := newTestBridge(cli)
	if err := b.RecordGridState(model.GridState{Tick: 1}); err != nil {
		t.Fatalf("record grid state should succeed on retry: %v", err)
	}
	if len(cli.published) != 2 {
		t.Fatalf("expected retry, got %d publishes", len(cli.published))
	}
}

func TestBridgeTopicPrefix(t *testing.T) {
	cli := &mockClient{}
	b := newTestBridge(cli)
	b.cfg.TopicPrefix = "campus/energy"
	if err := b.RecordClearing(coremetrics.ClearingEvent{Tick: 1}); err != nil {
		t.Fatalf("record clearing: %v", err)
	}
	if got := cli.published[0].topic; got != "campus/energy/clearing" {
		t.Fatalf("topic = %s", got)
	}
}

func TestLoadTLSConfigRequiresPaths(t *testing.T) {
	cfg := Config{UseTLS: true}
	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Fatal("expected error without cert paths")
	}
}
