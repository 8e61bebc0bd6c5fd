package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

// InfluxSink writes simulation events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordClearing writes the tick's clearing summary.
func (s *InfluxSink) RecordClearing(ev coremetrics.ClearingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("market_clearing").
		AddTag("degraded", strconv.FormatBool(ev.Degraded)).
		AddTag("component", "market_engine").
		AddField("tick", int64(ev.Tick)).
		AddField("clearing_price", round4(ev.ClearingPrice)).
		AddField("matched_kwh", round4(ev.MatchedKWh)).
		AddField("buy_orders", ev.BuyOrders).
		AddField("sell_orders", ev.SellOrders).
		AddField("rejected", ev.Rejected).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTrades writes each settled trade as its own point.
func (s *InfluxSink) RecordTrades(trades []model.Trade) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, t := range trades {
		p := write.NewPointWithMeasurement("trade").
			AddTag("trade_id", t.ID).
			AddTag("buyer_id", t.BuyerID).
			AddTag("seller_id", t.SellerID).
			AddTag("component", "market_engine").
			AddField("tick", int64(t.Tick)).
			AddField("quantity_kwh", round4(t.QuantityKWh)).
			AddField("clearing_price", round4(t.ClearingPrice)).
			SetTime(time.Now())
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordGridState writes the stability monitor's verdict.
func (s *InfluxSink) RecordGridState(gs model.GridState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("grid_state").
		AddTag("directive", gs.Directive.String()).
		AddTag("stale", strconv.FormatBool(gs.Stale)).
		AddTag("component", "grid_monitor").
		AddField("tick", int64(gs.Tick)).
		AddField("frequency_hz", round4(gs.FrequencyHz)).
		AddField("voltage_v", round4(gs.VoltageV)).
		AddField("net_balance_kwh", round4(gs.NetPowerBalanceKWh)).
		AddField("stability_score", round4(gs.StabilityScore)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordForecast writes a published forecast.
func (s *InfluxSink) RecordForecast(f model.Forecast) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast").
		AddTag("component", "forecaster").
		AddField("tick", int64(f.Tick)).
		AddField("expected_demand_kwh", round4(f.ExpectedDemandKWh)).
		AddField("expected_supply_kwh", round4(f.ExpectedSupplyKWh)).
		AddField("expected_price", round4(f.ExpectedPrice)).
		AddField("confidence", round4(f.Confidence)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
